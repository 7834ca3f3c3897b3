package structs

import "time"

type Config struct {
	Server   *ServerConfig   `validate:"required"`
	Database *DatabaseConfig `validate:"required"`
	Cache    *CacheConfig    `validate:"required"`
	Crawler  *CrawlerConfig  `validate:"required"`
	Metrics  *MetricsConfig  `validate:"required"`
}

type ServerConfig struct {
	AppName     string `validate:"required"` // Diffly
	Environment string // development, production
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	MaxConns     int
	MaxLifetime  time.Duration
	MaxIdleTime  time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CacheConfig configures the optional redis instance used for lookup caching
// and the crawl lock. An empty Address disables both.
type CacheConfig struct {
	Address         string
	Username        string
	Password        string
	DB              int
	PoolSize        int
	MinIdleConns    int
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	LookupTTL       time.Duration
	LockExpiry      time.Duration
}

type CrawlerConfig struct {
	Regions       []string `validate:"min=1,dive,required"` // locale tags, e.g. en-US
	PrimaryRegion string   `validate:"required"`            // locale tag authoritative for descriptive fields
	MaxPages      int      `validate:"gte=1"`
	PlatformName  string   `validate:"required"`

	BrowseBaseURL string `validate:"required,url"` // https://www.xbox.com
	APIBaseURL    string `validate:"required,url"` // https://emerald.xboxservices.com
	TraceBase     string `validate:"required"`     // MS-CV base id

	QueueSize int `validate:"gte=1"`
	Workers   int `validate:"gte=1"`

	Politeness *PolitenessConfig `validate:"required"`
}

// PolitenessConfig is the request policy handed to the crawl transport.
type PolitenessConfig struct {
	MaxConcurrent          int           `validate:"gte=1"`
	MaxConcurrentPerDomain int           `validate:"gte=1"`
	Delay                  time.Duration `validate:"gte=0"`
	RandomizeDelay         bool

	AutoThrottle           bool
	AutoThrottleStartDelay time.Duration
	AutoThrottleMaxDelay   time.Duration
	AutoThrottleTargetConc float64 `validate:"gt=0"`

	RetryTimes     int           `validate:"gte=0"`
	RetryHTTPCodes []int         `validate:"dive,gte=100,lte=599"`
	RetryBackoff   time.Duration `validate:"gte=0"`
	Timeout        time.Duration `validate:"gt=0"`

	ObeyRobotsTxt  bool
	UserAgent      string
	DefaultHeaders map[string]string
}

type MetricsConfig struct {
	Address string // :9102, empty disables the metrics server
}
