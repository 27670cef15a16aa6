package bill

import (
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-till/internal/ledger"
)

// NoPhone is printed when no phone number was captured.
const NoPhone = "-"

// Document is everything needed to render one bill.
type Document struct {
	ID       string
	Store    string
	Customer string
	Phone    string
	Items    []ledger.LineItem
	Summary  ledger.Summary
	IssuedAt time.Time
}

func NewDocument(store, customer string, items []ledger.LineItem, summary ledger.Summary, issuedAt time.Time) Document {
	return Document{
		ID:       uuid.NewString(),
		Store:    store,
		Customer: customer,
		Phone:    NoPhone,
		Items:    items,
		Summary:  summary,
		IssuedAt: issuedAt,
	}
}

// FileName is Bill_YYYYMMDD_HHMMSS.pdf for the issue time.
func (d Document) FileName() string {
	return "Bill_" + d.IssuedAt.Format("20060102_150405") + ".pdf"
}

// Handle locates an exported bill.
type Handle struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	URL  string `json:"url,omitempty"`
}
