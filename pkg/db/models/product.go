package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/threshingfloor/roastery-backend/pkg/types"
)

// Product is a catalog entry. Flat products use Price and Quantity; sized
// products carry their price and stock on each variant instead.
type Product struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name         string           `gorm:"column:name;not null"`
	Description  string           `gorm:"column:description;not null;default:''"`
	ImageURL     string           `gorm:"column:image_url;not null;default:''"`
	Price        decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null;default:0"`
	Quantity     int              `gorm:"column:quantity;not null;default:0"`
	Roasts       types.StringList `gorm:"column:roasts;type:jsonb;not null"`
	DefaultRoast *string          `gorm:"column:default_roast"`
	Variants     []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductVariant is one (size, price, stock) option of a product.
type ProductVariant struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_variants_product_size,priority:1"`
	Size      string          `gorm:"column:size;not null;uniqueIndex:ux_product_variants_product_size,priority:2"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null;default:0"`
	Position  int             `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
