package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/loqalabs/loqa-till/internal/config"
	"github.com/loqalabs/loqa-till/internal/ledger"
	_ "modernc.org/sqlite"
)

// SQLite stores bills in a local WAL-mode database.
type SQLite struct {
	db    *sql.DB
	cfg   config.ArchiveConfig
	log   *slog.Logger
	clock func() time.Time
}

func OpenSQLite(ctx context.Context, cfg config.ArchiveConfig, log *slog.Logger) (*SQLite, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLite{db: db, cfg: cfg, log: log, clock: time.Now}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("archive vacuum failed", slogError(err))
		}
	}
	if err := s.Prune(ctx); err != nil {
		log.Warn("archive prune on start failed", slogError(err))
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Record(ctx context.Context, b Bill) (err error) {
	if b.IssuedAt.IsZero() {
		b.IssuedAt = s.clock()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bills(bill_id, store, customer, subtotal, total, path, url, issued_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Store, b.Customer, b.Subtotal.String(), b.Total.String(), b.Path, b.URL, b.IssuedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	for i, it := range b.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bill_lines(bill_id, position, item, quantity, rate, total) VALUES(?, ?, ?, ?, ?, ?)`,
			b.ID, i, it.Item, it.Quantity, it.Rate.String(), it.Total.String())
		if err != nil {
			return fmt.Errorf("insert bill line: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit bills, newest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Bill, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT bill_id, store, customer, subtotal, total, path, COALESCE(url, ''), issued_at
		 FROM bills ORDER BY issued_at DESC, bill_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var bills []Bill
	for rows.Next() {
		var (
			b               Bill
			subtotal, total string
			issued          int64
		)
		if err := rows.Scan(&b.ID, &b.Store, &b.Customer, &subtotal, &total, &b.Path, &b.URL, &issued); err != nil {
			rows.Close()
			return nil, err
		}
		b.Subtotal = parseDecimal(subtotal)
		b.Total = parseDecimal(total)
		b.IssuedAt = time.UnixMilli(issued)
		bills = append(bills, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range bills {
		items, err := s.lines(ctx, bills[i].ID)
		if err != nil {
			return nil, err
		}
		bills[i].Items = items
	}
	return bills, nil
}

func (s *SQLite) lines(ctx context.Context, billID string) ([]ledger.LineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item, quantity, rate, total FROM bill_lines WHERE bill_id = ? ORDER BY position`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ledger.LineItem
	for rows.Next() {
		var (
			it          ledger.LineItem
			rate, total string
		)
		if err := rows.Scan(&it.Item, &it.Quantity, &rate, &total); err != nil {
			return nil, err
		}
		it.Rate = parseDecimal(rate)
		it.Total = parseDecimal(total)
		items = append(items, it)
	}
	return items, rows.Err()
}

// Prune applies retention_days and max_bills.
func (s *SQLite) Prune(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := retentionCutoff(s.clock(), s.cfg.RetentionDays)
		if _, err = tx.ExecContext(ctx, `DELETE FROM bills WHERE issued_at < ?`, cutoff); err != nil {
			return err
		}
	}
	if s.cfg.MaxBills > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM bills WHERE bill_id IN (
			SELECT bill_id FROM bills ORDER BY issued_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxBills)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
