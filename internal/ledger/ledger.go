package ledger

import "github.com/shopspring/decimal"

// Tax and discount are fixed at zero percent.
const (
	TaxPercent      = 0
	DiscountPercent = 0
)

var hundred = decimal.NewFromInt(100)

// LineItem is one priced order entry. Total is Quantity × Rate.
type LineItem struct {
	Item     string          `json:"item"`
	Quantity int             `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`
	Total    decimal.Decimal `json:"total"`
}

func NewLineItem(item string, qty int, rate decimal.Decimal) LineItem {
	return LineItem{
		Item:     item,
		Quantity: qty,
		Rate:     rate,
		Total:    rate.Mul(decimal.NewFromInt(int64(qty))),
	}
}

// Summary holds totals derived from the ledger.
type Summary struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxPct      int             `json:"tax_pct"`
	Tax         decimal.Decimal `json:"tax"`
	DiscountPct int             `json:"discount_pct"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// Ledger is the ordered list of line items for the current bill. It is not
// safe for concurrent use; the till session is its only writer.
type Ledger struct {
	items []LineItem
}

func New() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Append(item LineItem) {
	l.items = append(l.items, item)
}

func (l *Ledger) Clear() {
	l.items = nil
}

func (l *Ledger) Len() int {
	return len(l.items)
}

// Items returns a copy in arrival order.
func (l *Ledger) Items() []LineItem {
	out := make([]LineItem, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Ledger) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range l.items {
		sum = sum.Add(it.Total)
	}
	return sum
}

// Summary computes tax and discount as percentages of the subtotal.
func (l *Ledger) Summary(taxPct, discountPct int) Summary {
	sub := l.Subtotal()
	tax := sub.Mul(decimal.NewFromInt(int64(taxPct))).Div(hundred)
	disc := sub.Mul(decimal.NewFromInt(int64(discountPct))).Div(hundred)
	return Summary{
		Subtotal:    sub,
		TaxPct:      taxPct,
		Tax:         tax,
		DiscountPct: discountPct,
		Discount:    disc,
		Total:       sub.Add(tax).Sub(disc),
	}
}
