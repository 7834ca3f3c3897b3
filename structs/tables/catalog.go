package tables

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Platform struct {
	bun.BaseModel `bun:"table:platforms,alias:pl"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid(),nullzero" json:"id"`
	Name      string    `bun:"name,notnull,unique" json:"name"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp,nullzero" json:"created_at"`
}

type Game struct {
	bun.BaseModel `bun:"table:games,alias:g"`

	ID               uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid(),nullzero" json:"id"`
	ProductID        string     `bun:"product_id,notnull,unique" json:"product_id"`
	Title            string     `bun:"title,notnull" json:"title"`
	Description      string     `bun:"description,notnull,default:''" json:"description"`
	ShortDescription string     `bun:"short_description,notnull,default:''" json:"short_description"`
	DeveloperName    string     `bun:"developer_name,notnull,default:''" json:"developer_name"`
	PublisherName    string     `bun:"publisher_name,notnull,default:''" json:"publisher_name"`
	ReleaseDate      *time.Time `bun:"release_date,type:date,nullzero" json:"release_date,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp,nullzero" json:"created_at"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull,default:current_timestamp,nullzero" json:"updated_at"`
}

// GamePlatform is unique on (platform_id, game_id).
type GamePlatform struct {
	bun.BaseModel `bun:"table:game_platforms,alias:gp"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid(),nullzero" json:"id"`
	GameID     uuid.UUID `bun:"game_id,type:uuid,notnull" json:"game_id"`
	PlatformID uuid.UUID `bun:"platform_id,type:uuid,notnull" json:"platform_id"`
}

// GameImage is unique on (game_id, image_type).
type GameImage struct {
	bun.BaseModel `bun:"table:game_images,alias:gi"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid(),nullzero" json:"id"`
	GameID    uuid.UUID `bun:"game_id,type:uuid,notnull" json:"game_id"`
	ImageType string    `bun:"image_type,notnull" json:"image_type"`
	URL       string    `bun:"url,notnull" json:"url"`
	Width     *int      `bun:"width" json:"width,omitempty"`
	Height    *int      `bun:"height" json:"height,omitempty"`
}

type Region struct {
	bun.BaseModel `bun:"table:regions,alias:r"`

	ID             uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid(),nullzero" json:"id"`
	Name           string    `bun:"name,notnull" json:"name"`
	Code           string    `bun:"code,notnull,unique" json:"code"`
	CurrencyCode   string    `bun:"currency_code,notnull" json:"currency_code"`
	CurrencySymbol string    `bun:"currency_symbol,notnull" json:"currency_symbol"`
}

type Store struct {
	bun.BaseModel `bun:"table:stores,alias:s"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid(),nullzero" json:"id"`
	Name      string    `bun:"name,notnull,unique" json:"name"`
	BaseURL   string    `bun:"base_url,notnull" json:"base_url"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp,nullzero" json:"created_at"`
}

// StorePlatform links a store to the platforms it sells for.
type StorePlatform struct {
	bun.BaseModel `bun:"table:store_platforms,alias:sp"`

	StoreID    uuid.UUID `bun:"store_id,pk,type:uuid" json:"store_id"`
	PlatformID uuid.UUID `bun:"platform_id,pk,type:uuid" json:"platform_id"`
}

// Price is unique on (game_id, platform_id, region_id, store_id). Sale fields
// are derived from the two prices on every write.
type Price struct {
	bun.BaseModel `bun:"table:prices,alias:pr"`

	ID                 uuid.UUID       `bun:"id,pk,type:uuid,default:gen_random_uuid(),nullzero" json:"id"`
	GameID             uuid.UUID       `bun:"game_id,type:uuid,notnull" json:"game_id"`
	PlatformID         uuid.UUID       `bun:"platform_id,type:uuid,notnull" json:"platform_id"`
	RegionID           uuid.UUID       `bun:"region_id,type:uuid,notnull" json:"region_id"`
	StoreID            uuid.UUID       `bun:"store_id,type:uuid,notnull" json:"store_id"`
	BasePrice          decimal.Decimal `bun:"base_price,type:numeric(10,2),notnull" json:"base_price"`
	CurrentPrice       decimal.Decimal `bun:"current_price,type:numeric(10,2),notnull" json:"current_price"`
	DiscountPercentage decimal.Decimal `bun:"discount_percentage,type:numeric(5,2),notnull,default:0" json:"discount_percentage"`
	IsOnSale           bool            `bun:"is_on_sale,notnull,default:false" json:"is_on_sale"`
	SaleStartDate      *time.Time      `bun:"sale_start_date,nullzero" json:"sale_start_date,omitempty"`
	SaleEndDate        *time.Time      `bun:"sale_end_date,nullzero" json:"sale_end_date,omitempty"`
	LastUpdated        time.Time       `bun:"last_updated,notnull,default:current_timestamp,nullzero" json:"last_updated"`
	CreatedAt          time.Time       `bun:"created_at,notnull,default:current_timestamp,nullzero" json:"created_at"`
}
