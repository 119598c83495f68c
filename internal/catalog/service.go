package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threshingfloor/roastery-backend/internal/access"
	"github.com/threshingfloor/roastery-backend/pkg/db"
	"github.com/threshingfloor/roastery-backend/pkg/db/models"
	pkgerrors "github.com/threshingfloor/roastery-backend/pkg/errors"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
	"github.com/threshingfloor/roastery-backend/pkg/metrics"
	"github.com/threshingfloor/roastery-backend/pkg/types"
)

// Service exposes the product catalog. Reads are public; writes require the admin.
type Service interface {
	List(ctx context.Context) ([]ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Create(ctx context.Context, id *access.Identity, input ProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id *access.Identity, productID uuid.UUID, input ProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, id *access.Identity, productID uuid.UUID) error
	Stock(ctx context.Context, productID uuid.UUID, size string) (*StockLevel, error)
	DecrementStockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) (bool, error)
}

// ServiceParams bundles the catalog dependencies.
type ServiceParams struct {
	Repo    *Repository
	DB      db.TxRunner
	Policy  *access.Policy
	Metrics *metrics.StoreMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    *Repository
	db      db.TxRunner
	policy  *access.Policy
	metrics *metrics.StoreMetrics
	logg    *logger.Logger
}

// NewService constructs the catalog service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Policy == nil {
		return nil, fmt.Errorf("access policy required")
	}
	return &service{
		repo:    params.Repo,
		db:      params.DB,
		policy:  params.Policy,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (s *service) List(ctx context.Context) ([]ProductDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.BackingStore(err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, FromModel(p))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*product)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, id *access.Identity, input ProductInput) (*ProductDTO, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}
	product, err := buildProduct(input)
	if err != nil {
		return nil, err
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, product)
	})
	if err != nil {
		return nil, pkgerrors.BackingStore(err, "create product")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "product_id", product.ID.String()), "product created")
	}
	return s.Get(ctx, product.ID)
}

func (s *service) Update(ctx context.Context, id *access.Identity, productID uuid.UUID, input ProductInput) (*ProductDTO, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}
	product, err := buildProduct(input)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, productID); err != nil {
		return nil, err
	}
	product.ID = productID

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SaveFields(ctx, product); err != nil {
			return err
		}
		return repo.ReplaceVariants(ctx, productID, product.Variants)
	})
	if err != nil {
		return nil, pkgerrors.BackingStore(err, "update product")
	}
	return s.Get(ctx, productID)
}

func (s *service) Delete(ctx context.Context, id *access.Identity, productID uuid.UUID) error {
	if err := s.policy.RequireAdmin(id); err != nil {
		return err
	}
	var existed bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		existed, err = s.repo.WithTx(tx).Delete(ctx, productID)
		return err
	})
	if err != nil {
		return pkgerrors.BackingStore(err, "delete product")
	}
	if !existed {
		return pkgerrors.NotFound("product")
	}
	return nil
}

// Stock reads the current price and quantity for a product size. An empty
// size addresses a product without variants.
func (s *service) Stock(ctx context.Context, productID uuid.UUID, size string) (*StockLevel, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	level := &StockLevel{
		ProductID: product.ID,
		Name:      product.Name,
		Roasts:    append([]string{}, product.Roasts...),
	}
	if product.DefaultRoast != nil {
		level.DefaultRoast = *product.DefaultRoast
	}
	size = strings.TrimSpace(size)
	if len(product.Variants) == 0 {
		if size != "" {
			return nil, pkgerrors.NotFound("product size")
		}
		level.Price = product.Price
		level.Quantity = product.Quantity
		return level, nil
	}
	if size == "" {
		return nil, pkgerrors.Validation("size is required for " + product.Name)
	}
	for _, v := range product.Variants {
		if v.Size == size {
			level.Size = v.Size
			level.Price = v.Price
			level.Quantity = v.Quantity
			return level, nil
		}
	}
	return nil, pkgerrors.NotFound("product size")
}

// DecrementStockTx takes qty out of stock inside the caller's transaction,
// never going below zero. A product or size that no longer exists is not an
// error; it reports false.
func (s *service) DecrementStockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction required")
	}
	if qty <= 0 {
		return false, pkgerrors.Validation("decrement quantity must be positive")
	}
	applied, err := s.repo.DecrementTx(tx.WithContext(ctx), productID, size, qty)
	if err != nil {
		return false, pkgerrors.BackingStore(err, "decrement stock")
	}
	s.metrics.StockDecrement(applied)
	if !applied && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"size":       size,
		})
		s.logg.Warn(logCtx, "stock decrement skipped for missing product")
	}
	return applied, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("product")
		}
		return nil, pkgerrors.BackingStore(err, "load product")
	}
	return product, nil
}

func buildProduct(input ProductInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.Validation("name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.Validation("price must not be negative")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.Validation("quantity must not be negative")
	}

	roasts := make(types.StringList, 0, len(input.Roasts))
	for _, r := range input.Roasts {
		r = strings.TrimSpace(r)
		if r == "" {
			return nil, pkgerrors.Validation("roast names must not be blank")
		}
		if strings.Contains(r, LabelSeparator) {
			return nil, labelError("roast", r)
		}
		if roasts.Contains(r) {
			return nil, pkgerrors.Validation(fmt.Sprintf("roast %q is listed twice", r))
		}
		roasts = append(roasts, r)
	}

	product := &models.Product{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		ImageURL:    strings.TrimSpace(input.ImageURL),
		Price:       input.Price,
		Quantity:    input.Quantity,
		Roasts:      roasts,
	}
	if def := strings.TrimSpace(input.DefaultRoast); def != "" {
		match := ""
		for _, r := range roasts {
			if strings.EqualFold(r, def) {
				match = r
				break
			}
		}
		if match == "" {
			return nil, pkgerrors.Validation("default roast must be one of the product's roasts")
		}
		product.DefaultRoast = &match
	}

	seen := map[string]bool{}
	for i, in := range input.Variants {
		size := strings.TrimSpace(in.Size)
		if size == "" {
			return nil, pkgerrors.Validation("variant size is required")
		}
		if strings.Contains(size, LabelSeparator) {
			return nil, labelError("size", size)
		}
		if seen[size] {
			return nil, pkgerrors.Validation(fmt.Sprintf("size %q is listed twice", size))
		}
		seen[size] = true
		if in.Price.IsNegative() {
			return nil, pkgerrors.Validation("variant price must not be negative")
		}
		if in.Quantity < 0 {
			return nil, pkgerrors.Validation("variant quantity must not be negative")
		}
		product.Variants = append(product.Variants, models.ProductVariant{
			Size:     size,
			Price:    in.Price,
			Quantity: in.Quantity,
			Position: i,
		})
	}
	return product, nil
}

func labelError(field, label string) error {
	return pkgerrors.Validation(fmt.Sprintf("%s %q must not contain %q", field, label, LabelSeparator)).
		WithDetails(map[string]any{"field": field})
}
