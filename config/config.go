package config

import (
	"diffly_crawler/lib"
	"diffly_crawler/structs"
	"sync"
	"time"
)

var (
	configInstance *structs.Config
	configOnce     sync.Once
)

var defaultRequestHeaders = map[string]string{
	"Accept":           "*/*",
	"Accept-Language":  "en-US,en;q=0.9",
	"Content-Type":     "application/json",
	"Referer":          "https://www.xbox.com/",
	"x-ms-api-version": "1.1",
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func GetConfig() *structs.Config {
	configOnce.Do(func() {
		configInstance = Load()
	})
	return configInstance
}

// Load builds a fresh configuration from the environment. GetConfig caches
// the first result for the lifetime of the process.
func Load() *structs.Config {
	return &structs.Config{
		Server: &structs.ServerConfig{
			AppName:     getEnvAsString("APP_NAME", "Diffly"),
			Environment: getEnvAsString("APP_ENV", "development"),
		},
		Database: &structs.DatabaseConfig{
			Host:         getEnvAsString("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnvAsString("DB_USER", "postgres"),
			Password:     getEnvAsString("DB_PASSWORD", "password"),
			Name:         getEnvAsString("DB_NAME", "diffly"),
			MaxConns:     getEnvAsInt("DB_MAX_CONNS", 10),
			MaxLifetime:  getEnvAsTimeDuration("DB_MAX_LIFETIME", 30*time.Minute),
			MaxIdleTime:  getEnvAsTimeDuration("DB_MAX_IDLE_TIME", 5*time.Minute),
			DialTimeout:  getEnvAsTimeDuration("DB_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsTimeDuration("DB_READ_TIMEOUT", 5*time.Second),
			WriteTimeout: getEnvAsTimeDuration("DB_WRITE_TIMEOUT", 5*time.Second),
		},
		Cache: &structs.CacheConfig{
			Address:         getEnvAsString("CACHE_ADDRESS", ""),
			Username:        getEnvAsString("CACHE_USERNAME", ""),
			Password:        getEnvAsString("CACHE_PASSWORD", ""),
			DB:              getEnvAsInt("CACHE_DB", 0),
			PoolSize:        getEnvAsInt("CACHE_POOL_SIZE", 10),
			MinIdleConns:    getEnvAsInt("CACHE_MIN_IDLE_CONNS", 1),
			DialTimeout:     getEnvAsTimeDuration("CACHE_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:     getEnvAsTimeDuration("CACHE_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:    getEnvAsTimeDuration("CACHE_WRITE_TIMEOUT", 3*time.Second),
			MaxRetries:      getEnvAsInt("CACHE_MAX_RETRIES", 3),
			MinRetryBackoff: getEnvAsTimeDuration("CACHE_MIN_RETRY_BACKOFF", 8*time.Millisecond),
			MaxRetryBackoff: getEnvAsTimeDuration("CACHE_MAX_RETRY_BACKOFF", 512*time.Millisecond),
			LookupTTL:       getEnvAsTimeDuration("CACHE_LOOKUP_TTL", time.Hour),
			LockExpiry:      getEnvAsTimeDuration("CACHE_LOCK_EXPIRY", 2*time.Hour),
		},
		Crawler: &structs.CrawlerConfig{
			Regions:       getEnvAsSlice("CRAWL_REGIONS", []string{"en-US", "tr-TR"}),
			PrimaryRegion: getEnvAsString("CRAWL_PRIMARY_REGION", "en-US"),
			MaxPages:      getEnvAsInt("CRAWL_MAX_PAGES", 3),
			PlatformName:  getEnvAsString("CRAWL_PLATFORM_NAME", "Xbox"),
			BrowseBaseURL: getEnvAsString("CRAWL_BROWSE_BASE_URL", "https://www.xbox.com"),
			APIBaseURL:    getEnvAsString("CRAWL_API_BASE_URL", "https://emerald.xboxservices.com"),
			TraceBase:     getEnvAsString("CRAWL_TRACE_BASE", "DSK6KO20k6Y7NXCBkdtipF"),
			QueueSize:     getEnvAsInt("CRAWL_QUEUE_SIZE", 64),
			Workers:       getEnvAsInt("CRAWL_WORKERS", 4),
			Politeness: &structs.PolitenessConfig{
				MaxConcurrent:          getEnvAsInt("CRAWL_CONCURRENT_REQUESTS", 4),
				MaxConcurrentPerDomain: getEnvAsInt("CRAWL_CONCURRENT_REQUESTS_PER_DOMAIN", 2),
				Delay:                  getEnvAsTimeDuration("CRAWL_DOWNLOAD_DELAY", 1500*time.Millisecond),
				RandomizeDelay:         getEnvAsBool("CRAWL_RANDOMIZE_DOWNLOAD_DELAY", true),
				AutoThrottle:           getEnvAsBool("CRAWL_AUTOTHROTTLE", true),
				AutoThrottleStartDelay: getEnvAsTimeDuration("CRAWL_AUTOTHROTTLE_START_DELAY", 2*time.Second),
				AutoThrottleMaxDelay:   getEnvAsTimeDuration("CRAWL_AUTOTHROTTLE_MAX_DELAY", 10*time.Second),
				AutoThrottleTargetConc: getEnvAsFloat("CRAWL_AUTOTHROTTLE_TARGET_CONCURRENCY", 1.0),
				RetryTimes:             getEnvAsInt("CRAWL_RETRY_TIMES", 3),
				RetryHTTPCodes:         getEnvAsIntSlice("CRAWL_RETRY_HTTP_CODES", []int{500, 502, 503, 504, 408, 429, 520, 521, 522, 524}),
				RetryBackoff:           getEnvAsTimeDuration("CRAWL_RETRY_BACKOFF", 500*time.Millisecond),
				Timeout:                getEnvAsTimeDuration("CRAWL_DOWNLOAD_TIMEOUT", 20*time.Second),
				ObeyRobotsTxt:          getEnvAsBool("CRAWL_ROBOTSTXT_OBEY", true),
				UserAgent:              getEnvAsString("CRAWL_USER_AGENT", defaultUserAgent),
				DefaultHeaders:         defaultRequestHeaders,
			},
		},
		Metrics: &structs.MetricsConfig{
			Address: getEnvAsString("METRICS_ADDR", ""),
		},
	}
}

func GetLogLevel() string {
	if IsProduction() {
		return "info"
	}
	return "debug"
}

func IsProduction() bool {
	return GetConfig().Server.Environment == "production"
}

// Validate reports every out-of-range setting in cfg at once.
func Validate(cfg *structs.Config) error {
	return lib.ValidateStruct(cfg)
}
