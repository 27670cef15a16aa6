package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loqalabs/loqa-till/internal/config"
	"github.com/loqalabs/loqa-till/internal/ledger"
	"github.com/shopspring/decimal"
)

// Bill is an exported bill as recorded for audit. Archived bills are never
// loaded back into a ledger.
type Bill struct {
	ID       string            `json:"id"`
	Store    string            `json:"store"`
	Customer string            `json:"customer"`
	Items    []ledger.LineItem `json:"items"`
	Subtotal decimal.Decimal   `json:"subtotal"`
	Total    decimal.Decimal   `json:"total"`
	Path     string            `json:"path"`
	URL      string            `json:"url,omitempty"`
	IssuedAt time.Time         `json:"issued_at"`
}

// Archive records exported bills.
type Archive interface {
	Record(ctx context.Context, b Bill) error
	Recent(ctx context.Context, limit int) ([]Bill, error)
	Prune(ctx context.Context) error
	Close() error
}

// Open selects the driver named in cfg.
func Open(ctx context.Context, cfg config.ArchiveConfig, log *slog.Logger) (Archive, error) {
	log = log.With(slog.String("component", "archive"), slog.String("driver", cfg.Driver))
	switch cfg.Driver {
	case "ephemeral", "":
		return Ephemeral{}, nil
	case "sqlite":
		return OpenSQLite(ctx, cfg, log)
	case "postgres":
		return OpenPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}

// Ephemeral discards everything.
type Ephemeral struct{}

func (Ephemeral) Record(context.Context, Bill) error          { return nil }
func (Ephemeral) Recent(context.Context, int) ([]Bill, error) { return nil, nil }
func (Ephemeral) Prune(context.Context) error                 { return nil }
func (Ephemeral) Close() error                                { return nil }

const schema = `
CREATE TABLE IF NOT EXISTS bills (
    bill_id TEXT PRIMARY KEY,
    store TEXT NOT NULL,
    customer TEXT NOT NULL,
    subtotal TEXT NOT NULL,
    total TEXT NOT NULL,
    path TEXT NOT NULL,
    url TEXT,
    issued_at BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS bill_lines (
    bill_id TEXT NOT NULL REFERENCES bills(bill_id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    item TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    rate TEXT NOT NULL,
    total TEXT NOT NULL,
    PRIMARY KEY (bill_id, position)
);
CREATE INDEX IF NOT EXISTS idx_bills_issued ON bills(issued_at);
`

func retentionCutoff(now time.Time, days int) int64 {
	return now.Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
