package archive

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-till/internal/config"
	"github.com/loqalabs/loqa-till/internal/ledger"
	"github.com/shopspring/decimal"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleBill(id string, issued time.Time) Bill {
	items := []ledger.LineItem{
		ledger.NewLineItem("coffee", 2, decimal.NewFromInt(50)),
		ledger.NewLineItem("tea", 1, decimal.RequireFromString("30.5")),
	}
	return Bill{
		ID:       id,
		Store:    "ASB Cafeteria",
		Customer: "alice",
		Items:    items,
		Subtotal: decimal.RequireFromString("130.5"),
		Total:    decimal.RequireFromString("130.5"),
		Path:     "/tmp/" + id + ".pdf",
		IssuedAt: issued,
	}
}

func TestOpenEphemeral(t *testing.T) {
	a, err := Open(context.Background(), config.ArchiveConfig{Driver: "ephemeral"}, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	if err := a.Record(context.Background(), sampleBill("b1", time.Now())); err != nil {
		t.Fatalf("record: %v", err)
	}
	bills, _ := a.Recent(context.Background(), 10)
	if len(bills) != 0 {
		t.Fatal("ephemeral archive should not retain bills")
	}
}

func TestSQLiteRecordAndRecent(t *testing.T) {
	cfg := config.ArchiveConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "nested", "bills.db")}
	a, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := a.Record(ctx, sampleBill("b1", base)); err != nil {
		t.Fatalf("record b1: %v", err)
	}
	if err := a.Record(ctx, sampleBill("b2", base.Add(time.Minute))); err != nil {
		t.Fatalf("record b2: %v", err)
	}

	bills, err := a.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(bills) != 2 || bills[0].ID != "b2" {
		t.Fatalf("expected newest first, got %+v", bills)
	}
	if len(bills[1].Items) != 2 || bills[1].Items[1].Item != "tea" {
		t.Fatalf("unexpected lines %+v", bills[1].Items)
	}
	if !bills[1].Items[1].Rate.Equal(decimal.RequireFromString("30.5")) {
		t.Fatalf("rate not preserved: %s", bills[1].Items[1].Rate)
	}
	if !bills[0].IssuedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("issued time not preserved: %v", bills[0].IssuedAt)
	}
}

func TestSQLitePrune(t *testing.T) {
	cfg := config.ArchiveConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "bills.db"), RetentionDays: 1, MaxBills: 1}
	s, err := OpenSQLite(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	s.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.Record(ctx, sampleBill("old", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, sampleBill("new-1", time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC))); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, sampleBill("new-2", time.Date(2025, 1, 2, 13, 0, 0, 0, time.UTC))); err != nil {
		t.Fatal(err)
	}
	if err := s.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	bills, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(bills) != 1 || bills[0].ID != "new-2" {
		t.Fatalf("expected only newest bill retained, got %+v", bills)
	}

	var lines int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bill_lines`).Scan(&lines); err != nil {
		t.Fatal(err)
	}
	if lines != 2 {
		t.Fatalf("expected pruned bill lines to cascade, got %d rows", lines)
	}
}

func TestPostgresRecord(t *testing.T) {
	dsn := os.Getenv("LOQA_TILL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LOQA_TILL_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	p, err := OpenPostgres(ctx, config.ArchiveConfig{Driver: "postgres", DSN: dsn}, newLogger())
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	id := "test-" + time.Now().Format("20060102150405.000000000")
	if err := p.Record(ctx, sampleBill(id, time.Now())); err != nil {
		t.Fatalf("record: %v", err)
	}
	bills, err := p.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(bills) == 0 || bills[0].ID != id || len(bills[0].Items) != 2 {
		t.Fatalf("unexpected bills %+v", bills)
	}
	if _, err := p.pool.Exec(ctx, `DELETE FROM bills WHERE bill_id = $1`, id); err != nil {
		t.Fatal(err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.ArchiveConfig{Driver: "tape"}, newLogger()); err == nil {
		t.Fatal("expected error")
	}
}
