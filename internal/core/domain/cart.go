package domain

// Product carries the catalog fields a cart line copies at add time. Later
// changes to the canonical product do not retroactively change stored lines.
type Product struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unit_price"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// CartItem is one line of the browser-local cart, unique per ProductID.
// Quantity is always positive: a quantity of zero is represented by the line's
// absence, never by a zero-quantity record.
type CartItem struct {
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unit_price"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// Subtotal returns unit price times quantity for this line.
func (it CartItem) Subtotal() float64 {
	return it.UnitPrice * float64(it.Quantity)
}

// CartTotals recomputes the derived cart values from the current lines.
// They are never stored.
func CartTotals(items []CartItem) (count int, amount float64) {
	for _, it := range items {
		count += it.Quantity
		amount += it.Subtotal()
	}
	return count, amount
}
