package cart

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/threshingfloor/roastery-backend/internal/catalog"
)

// Line is one (product, size, roast) selection. Key identifies it within a cart.
type Line struct {
	Key       string          `json:"key"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Roast     string          `json:"roast,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is UnitPrice times Quantity, unrounded.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the pending selection of one signed-in user.
type Cart struct {
	OwnerID   uuid.UUID `json:"owner_id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineKey builds the identity key for a cart line. The catalog keeps the
// separator out of size and roast labels, so keys never collide.
func LineKey(productID uuid.UUID, size, roast string) string {
	return strings.Join([]string{productID.String(), size, roast}, catalog.LabelSeparator)
}

// Total sums every line without intermediate rounding.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// TotalItems sums the quantities of every line.
func (c Cart) TotalItems() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) find(key string) int {
	for i, l := range c.Lines {
		if l.Key == key {
			return i
		}
	}
	return -1
}

func (c *Cart) remove(i int) {
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}

// View is the JSON shape returned to clients. Money is rounded to cents here only.
type View struct {
	Lines      []LineView `json:"lines"`
	Total      string     `json:"total"`
	TotalItems int        `json:"total_items"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// LineView is one line in a View.
type LineView struct {
	Key       string    `json:"key"`
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Size      string    `json:"size,omitempty"`
	Roast     string    `json:"roast,omitempty"`
	UnitPrice string    `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	Subtotal  string    `json:"subtotal"`
}

// ToView renders the cart for API responses.
func (c Cart) ToView() View {
	view := View{
		Lines:      make([]LineView, 0, len(c.Lines)),
		Total:      c.Total().StringFixed(2),
		TotalItems: c.TotalItems(),
		UpdatedAt:  c.UpdatedAt,
	}
	for _, l := range c.Lines {
		view.Lines = append(view.Lines, LineView{
			Key:       l.Key,
			ProductID: l.ProductID,
			Name:      l.Name,
			Size:      l.Size,
			Roast:     l.Roast,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal().StringFixed(2),
		})
	}
	return view
}
