package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loqalabs/loqa-till/internal/config"
	"github.com/loqalabs/loqa-till/internal/ledger"
)

// Postgres stores bills in a shared database, for tills that report to a
// back office.
type Postgres struct {
	pool  *pgxpool.Pool
	cfg   config.ArchiveConfig
	log   *slog.Logger
	clock func() time.Time
}

func OpenPostgres(ctx context.Context, cfg config.ArchiveConfig, log *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	p := &Postgres{pool: pool, cfg: cfg, log: log, clock: time.Now}
	if err := p.Prune(ctx); err != nil {
		log.Warn("archive prune on start failed", slogError(err))
	}
	return p, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Record(ctx context.Context, b Bill) error {
	if b.IssuedAt.IsZero() {
		b.IssuedAt = p.clock()
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO bills(bill_id, store, customer, subtotal, total, path, url, issued_at)
			 VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
			b.ID, b.Store, b.Customer, b.Subtotal.String(), b.Total.String(), b.Path, b.URL, b.IssuedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert bill: %w", err)
		}
		batch := &pgx.Batch{}
		for i, it := range b.Items {
			batch.Queue(`INSERT INTO bill_lines(bill_id, position, item, quantity, rate, total) VALUES($1, $2, $3, $4, $5, $6)`,
				b.ID, i, it.Item, it.Quantity, it.Rate.String(), it.Total.String())
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert bill lines: %w", err)
		}
		return nil
	})
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]Bill, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.pool.Query(ctx,
		`SELECT bill_id, store, customer, subtotal, total, path, COALESCE(url, ''), issued_at
		 FROM bills ORDER BY issued_at DESC, bill_id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	bills, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Bill, error) {
		var (
			b               Bill
			subtotal, total string
			issued          int64
		)
		if err := row.Scan(&b.ID, &b.Store, &b.Customer, &subtotal, &total, &b.Path, &b.URL, &issued); err != nil {
			return Bill{}, err
		}
		b.Subtotal = parseDecimal(subtotal)
		b.Total = parseDecimal(total)
		b.IssuedAt = time.UnixMilli(issued)
		return b, nil
	})
	if err != nil {
		return nil, err
	}

	for i := range bills {
		lineRows, err := p.pool.Query(ctx,
			`SELECT item, quantity, rate, total FROM bill_lines WHERE bill_id = $1 ORDER BY position`, bills[i].ID)
		if err != nil {
			return nil, err
		}
		items, err := pgx.CollectRows(lineRows, func(row pgx.CollectableRow) (ledger.LineItem, error) {
			var (
				it          ledger.LineItem
				rate, total string
			)
			if err := row.Scan(&it.Item, &it.Quantity, &rate, &total); err != nil {
				return ledger.LineItem{}, err
			}
			it.Rate = parseDecimal(rate)
			it.Total = parseDecimal(total)
			return it, nil
		})
		if err != nil {
			return nil, err
		}
		bills[i].Items = items
	}
	return bills, nil
}

func (p *Postgres) Prune(ctx context.Context) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if p.cfg.RetentionDays > 0 {
			cutoff := retentionCutoff(p.clock(), p.cfg.RetentionDays)
			if _, err := tx.Exec(ctx, `DELETE FROM bills WHERE issued_at < $1`, cutoff); err != nil {
				return err
			}
		}
		if p.cfg.MaxBills > 0 {
			_, err := tx.Exec(ctx, `DELETE FROM bills WHERE bill_id IN (
				SELECT bill_id FROM bills ORDER BY issued_at DESC OFFSET $1
			)`, p.cfg.MaxBills)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
