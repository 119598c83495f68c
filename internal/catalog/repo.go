package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threshingfloor/roastery-backend/pkg/db/models"
)

// decrementExpr lowers quantity by the requested amount and floors it at zero.
const decrementExpr = "CASE WHEN quantity > ? THEN quantity - ? ELSE 0 END"

// Repository persists products and their size variants.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func withVariants(db *gorm.DB) *gorm.DB {
	return db.Preload("Variants", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC").Order("size ASC")
	})
}

// List returns every product with its variants, oldest first.
func (r *Repository) List(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := withVariants(r.db.WithContext(ctx)).
		Order("created_at ASC").
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// FindByID loads a product with its variants.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := withVariants(r.db.WithContext(ctx)).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Create inserts the product and its variants.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// SaveFields updates the product's own columns, leaving variants untouched.
func (r *Repository) SaveFields(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"name":          product.Name,
			"description":   product.Description,
			"image_url":     product.ImageURL,
			"price":         product.Price,
			"quantity":      product.Quantity,
			"roasts":        product.Roasts,
			"default_roast": product.DefaultRoast,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// ReplaceVariants makes the stored variants match the given list. Variants
// are matched by size so existing ids survive an edit.
func (r *Repository) ReplaceVariants(ctx context.Context, productID uuid.UUID, variants []models.ProductVariant) error {
	db := r.db.WithContext(ctx)

	var existing []models.ProductVariant
	if err := db.Where("product_id = ?", productID).Find(&existing).Error; err != nil {
		return err
	}
	bySize := make(map[string]models.ProductVariant, len(existing))
	for _, v := range existing {
		bySize[v.Size] = v
	}

	keep := make([]uuid.UUID, 0, len(variants))
	for i := range variants {
		v := variants[i]
		v.ProductID = productID
		if current, ok := bySize[v.Size]; ok {
			err := db.Model(&models.ProductVariant{}).
				Where("id = ?", current.ID).
				Updates(map[string]any{
					"price":      v.Price,
					"quantity":   v.Quantity,
					"position":   v.Position,
					"updated_at": time.Now().UTC(),
				}).Error
			if err != nil {
				return err
			}
			keep = append(keep, current.ID)
			continue
		}
		if err := db.Create(&v).Error; err != nil {
			return err
		}
		keep = append(keep, v.ID)
	}

	stale := db.Where("product_id = ?", productID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	return stale.Delete(&models.ProductVariant{}).Error
}

// Delete removes the product and its variants. It reports whether a row existed.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	db := r.db.WithContext(ctx)
	if err := db.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
		return false, err
	}
	res := db.Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DecrementTx lowers stock for a flat product (empty size) or one variant.
// It reports false when no matching row exists.
func (r *Repository) DecrementTx(tx *gorm.DB, productID uuid.UUID, size string, qty int) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	var res *gorm.DB
	if size == "" {
		res = tx.Model(&models.Product{}).
			Where("id = ?", productID).
			UpdateColumn("quantity", gorm.Expr(decrementExpr, qty, qty))
	} else {
		res = tx.Model(&models.ProductVariant{}).
			Where("product_id = ? AND size = ?", productID, size).
			UpdateColumn("quantity", gorm.Expr(decrementExpr, qty, qty))
	}
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
