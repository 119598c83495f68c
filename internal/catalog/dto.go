package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/threshingfloor/roastery-backend/pkg/db/models"
)

// ProductInput is the admin payload for creating or replacing a product.
type ProductInput struct {
	Name         string          `json:"name" validate:"required,max=200"`
	Description  string          `json:"description" validate:"max=4000"`
	ImageURL     string          `json:"image_url" validate:"omitempty,url"`
	Price        decimal.Decimal `json:"price" validate:"money"`
	Quantity     int             `json:"quantity" validate:"min=0"`
	Roasts       []string        `json:"roasts" validate:"dive,required,max=60"`
	DefaultRoast string          `json:"default_roast" validate:"max=60"`
	Variants     []VariantInput  `json:"variants" validate:"dive"`
}

// VariantInput is one size option in a ProductInput.
type VariantInput struct {
	Size     string          `json:"size" validate:"required,max=60"`
	Price    decimal.Decimal `json:"price" validate:"money"`
	Quantity int             `json:"quantity" validate:"min=0"`
}

// ProductDTO is the public view of a catalog entry.
type ProductDTO struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"image_url,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Roasts       []string        `json:"roasts"`
	DefaultRoast string          `json:"default_roast,omitempty"`
	Variants     []VariantDTO    `json:"variants"`
	InStock      bool            `json:"in_stock"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// VariantDTO is the public view of one size option.
type VariantDTO struct {
	ID       uuid.UUID       `json:"id"`
	Size     string          `json:"size"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// StockLevel is a point-in-time read of one purchasable (product, size) pair.
// LabelSeparator joins product id, size and roast in cart line keys, so
// size and roast labels may not contain it.
const LabelSeparator = "_"

type StockLevel struct {
	ProductID uuid.UUID
	Name      string
	Size      string
	Price     decimal.Decimal
	Quantity  int
	Roasts    []string
	// DefaultRoast is preselected when a shopper picks no roast.
	DefaultRoast string
}

// AcceptsRoast reports whether roast may be chosen for this product. Products
// without roast options only accept an empty roast.
func (s StockLevel) AcceptsRoast(roast string) bool {
	if len(s.Roasts) == 0 {
		return roast == ""
	}
	for _, r := range s.Roasts {
		if r == roast {
			return true
		}
	}
	return false
}

// FromModel maps a product row and its variants to the public view.
func FromModel(p models.Product) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Roasts:      append([]string{}, p.Roasts...),
		Variants:    make([]VariantDTO, 0, len(p.Variants)),
		InStock:     p.Quantity > 0,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.DefaultRoast != nil {
		dto.DefaultRoast = *p.DefaultRoast
	}
	if len(p.Variants) > 0 {
		dto.InStock = false
	}
	for _, v := range p.Variants {
		dto.Variants = append(dto.Variants, VariantDTO{
			ID:       v.ID,
			Size:     v.Size,
			Price:    v.Price,
			Quantity: v.Quantity,
		})
		if v.Quantity > 0 {
			dto.InStock = true
		}
	}
	return dto
}
