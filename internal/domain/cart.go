package domain

import "github.com/shopspring/decimal"

type CartItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id" validate:"notblank"`
	Name      string          `json:"name" validate:"notblank"`
	Image     string          `json:"image,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gt=0"`
	Flavor    string          `json:"flavor"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity" validate:"min=1"`
}

// SameVariant reports whether both items refer to the same product, flavor and size.
func (i CartItem) SameVariant(other CartItem) bool {
	return i.ProductID == other.ProductID && i.Flavor == other.Flavor && i.Size == other.Size
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func CartSubtotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}
