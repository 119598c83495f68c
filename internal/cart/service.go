package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/threshingfloor/roastery-backend/internal/catalog"
	pkgerrors "github.com/threshingfloor/roastery-backend/pkg/errors"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
	redisclient "github.com/threshingfloor/roastery-backend/pkg/redis"
)

// DefaultTTL keeps an idle cart for thirty days.
const DefaultTTL = 30 * 24 * time.Hour

// Store is the redis surface the cart needs.
type Store interface {
	redisclient.KV
	CartKey(userID string) string
}

type stockReader interface {
	Stock(ctx context.Context, productID uuid.UUID, size string) (*catalog.StockLevel, error)
}

// Service manages per-user carts.
type Service interface {
	Get(ctx context.Context, owner uuid.UUID) (*Cart, error)
	AddLine(ctx context.Context, owner, productID uuid.UUID, size, roast string) (*Cart, bool, error)
	SetQuantity(ctx context.Context, owner uuid.UUID, key string, quantity int) (*Cart, error)
	RemoveLine(ctx context.Context, owner uuid.UUID, key string) (*Cart, error)
	Clear(ctx context.Context, owner uuid.UUID) error
}

// ServiceParams bundles the cart dependencies.
type ServiceParams struct {
	Store   Store
	Catalog stockReader
	TTL     time.Duration
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	store   Store
	catalog stockReader
	ttl     time.Duration
	logg    *logger.Logger
	now     func() time.Time
}

// NewService constructs the cart service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		store:   params.Store,
		catalog: params.Catalog,
		ttl:     ttl,
		logg:    params.Logger,
		now:     now,
	}, nil
}

func (s *service) Get(ctx context.Context, owner uuid.UUID) (*Cart, error) {
	if owner == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	raw, err := s.store.Get(ctx, s.key(owner))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &Cart{OwnerID: owner, Lines: []Line{}}, nil
		}
		return nil, pkgerrors.BackingStore(err, "load cart")
	}
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithUserID(ctx, owner.String()), "discarding unreadable cart")
		}
		return &Cart{OwnerID: owner, Lines: []Line{}}, nil
	}
	if c.OwnerID != owner {
		return &Cart{OwnerID: owner, Lines: []Line{}}, nil
	}
	if c.Lines == nil {
		c.Lines = []Line{}
	}
	return &c, nil
}

// AddLine adds one unit of the selection. A sold-out selection leaves the cart
// unchanged and reports added=false.
func (s *service) AddLine(ctx context.Context, owner, productID uuid.UUID, size, roast string) (*Cart, bool, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, false, err
	}
	size = strings.TrimSpace(size)
	roast = strings.TrimSpace(roast)

	level, err := s.catalog.Stock(ctx, productID, size)
	if err != nil {
		return nil, false, err
	}
	if roast == "" {
		roast = level.DefaultRoast
	}
	if !level.AcceptsRoast(roast) {
		return nil, false, pkgerrors.Validation(fmt.Sprintf("roast %q is not offered for %s", roast, level.Name))
	}
	if level.Quantity <= 0 {
		return c, false, nil
	}

	key := LineKey(productID, size, roast)
	if i := c.find(key); i >= 0 {
		c.Lines[i].Quantity++
		c.Lines[i].UnitPrice = level.Price
		c.Lines[i].Name = level.Name
	} else {
		c.Lines = append(c.Lines, Line{
			Key:       key,
			ProductID: productID,
			Name:      level.Name,
			Size:      size,
			Roast:     roast,
			UnitPrice: level.Price,
			Quantity:  1,
		})
	}
	if err := s.save(ctx, c); err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// SetQuantity sets a line's quantity, capped at current stock. Zero or less removes it.
func (s *service) SetQuantity(ctx context.Context, owner uuid.UUID, key string, quantity int) (*Cart, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	i := c.find(key)
	if i < 0 {
		return nil, pkgerrors.NotFound("cart line")
	}
	if quantity <= 0 {
		c.remove(i)
		return c, s.save(ctx, c)
	}

	line := c.Lines[i]
	level, err := s.catalog.Stock(ctx, line.ProductID, line.Size)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			c.remove(i)
			return c, s.save(ctx, c)
		}
		return nil, err
	}
	if quantity > level.Quantity {
		quantity = level.Quantity
	}
	if quantity <= 0 {
		c.remove(i)
	} else {
		c.Lines[i].Quantity = quantity
		c.Lines[i].UnitPrice = level.Price
	}
	return c, s.save(ctx, c)
}

// RemoveLine drops a line. An unknown key is not an error.
func (s *service) RemoveLine(ctx context.Context, owner uuid.UUID, key string) (*Cart, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	i := c.find(key)
	if i < 0 {
		return c, nil
	}
	c.remove(i)
	return c, s.save(ctx, c)
}

func (s *service) Clear(ctx context.Context, owner uuid.UUID) error {
	if owner == uuid.Nil {
		return nil
	}
	if err := s.store.Del(ctx, s.key(owner)); err != nil {
		return pkgerrors.BackingStore(err, "clear cart")
	}
	return nil
}

func (s *service) save(ctx context.Context, c *Cart) error {
	c.UpdatedAt = s.now().UTC()
	if len(c.Lines) == 0 {
		if err := s.store.Del(ctx, s.key(c.OwnerID)); err != nil {
			return pkgerrors.BackingStore(err, "save cart")
		}
		return nil
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.store.Set(ctx, s.key(c.OwnerID), payload, s.ttl); err != nil {
		return pkgerrors.BackingStore(err, "save cart")
	}
	return nil
}

func (s *service) key(owner uuid.UUID) string {
	return s.store.CartKey(owner.String())
}
