package till

import (
	"context"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-till/internal/activity"
	"github.com/loqalabs/loqa-till/internal/archive"
	"github.com/loqalabs/loqa-till/internal/bill"
	"github.com/loqalabs/loqa-till/internal/catalog"
	"github.com/loqalabs/loqa-till/internal/ledger"
	"github.com/loqalabs/loqa-till/internal/protocol"
)

// StartListening starts the capture producer. It reports false if the till
// was already listening.
func (s *Session) StartListening(ctx context.Context) (bool, error) {
	var started bool
	err := s.do(ctx, func() {
		started = s.deps.Listener.Start()
		if started {
			s.addLog("Listening started")
			s.say("Listening started")
		}
	})
	return started, err
}

// StopListening signals the producer to stop after its current cycle. It
// reports false if the till was already idle.
func (s *Session) StopListening(ctx context.Context) (bool, error) {
	var stopped bool
	err := s.do(ctx, func() {
		stopped = s.deps.Listener.Stop()
		if stopped {
			s.addLog("Listening stopped")
			s.say("Listening stopped")
		}
	})
	return stopped, err
}

// LoadCatalog replaces the active catalog. Parsing happens before this call,
// so a malformed table never disturbs the catalog in use.
func (s *Session) LoadCatalog(ctx context.Context, name string, c *catalog.Catalog) error {
	if c == nil {
		return fmt.Errorf("load %s: %w", name, catalog.ErrEmptyCatalog)
	}
	return s.do(ctx, func() {
		s.catalog.Publish(c)
		s.addLog(fmt.Sprintf("Loaded %s successfully.", name))
		s.say("Price list loaded.")
	})
}

// PrintBill exports the current bill. On success the ledger, activity log and
// customer are reset; on failure all state is kept so the export can be
// retried. Cancelling ctx after the print has started does not abort it.
func (s *Session) PrintBill(ctx context.Context) (bill.Handle, error) {
	var (
		handle bill.Handle
		result error
	)
	exportCtx := context.WithoutCancel(ctx)
	err := s.do(ctx, func() {
		handle, result = s.printBill(exportCtx)
	})
	if err != nil {
		return bill.Handle{}, err
	}
	return handle, result
}

func (s *Session) printBill(ctx context.Context) (bill.Handle, error) {
	if s.ledger.Len() == 0 {
		s.addLog("Cannot print empty bill.")
		return bill.Handle{}, ErrEmptyBill
	}

	summary := s.ledger.Summary(ledger.TaxPercent, ledger.DiscountPercent)
	doc := bill.NewDocument(s.opts.StoreName, s.customer, s.ledger.Items(), summary, s.clock())
	handle, err := s.deps.Exporter.Export(ctx, doc)
	if err != nil {
		s.addLog(fmt.Sprintf("Print error: %v", err))
		return bill.Handle{}, err
	}

	s.addLog("PDF Generated: " + doc.FileName())
	s.say("Bill generated successfully")

	s.ledger.Clear()
	s.activity.Clear()
	s.customer = NoCustomer
	s.say("Bill cleared. Ready for a new bill.")
	s.billsPrinted.Add(ctx, 1)

	record := archive.Bill{
		ID:       doc.ID,
		Store:    doc.Store,
		Customer: doc.Customer,
		Items:    doc.Items,
		Subtotal: summary.Subtotal,
		Total:    summary.Total,
		Path:     handle.Path,
		URL:      handle.URL,
		IssuedAt: doc.IssuedAt,
	}
	if err := s.deps.Archive.Record(ctx, record); err != nil {
		s.log.Warn("failed to archive bill", slogError(err))
	}
	s.publish(protocol.SubjectBillExported, protocol.BillExported{
		Register:  s.opts.Register,
		BillID:    doc.ID,
		Customer:  doc.Customer,
		Lines:     len(doc.Items),
		Total:     summary.Total.StringFixed(2),
		Path:      handle.Path,
		URL:       handle.URL,
		Timestamp: doc.IssuedAt,
	})
	return handle, nil
}

// Snapshot is a point-in-time copy of session state for display.
type Snapshot struct {
	Customer    string            `json:"customer"`
	Listening   bool              `json:"listening"`
	CatalogSize int               `json:"catalog_size"`
	Items       []ledger.LineItem `json:"items"`
	Summary     ledger.Summary    `json:"summary"`
	Logs        []string          `json:"logs"`
	Pending     int               `json:"pending"`
	TakenAt     time.Time         `json:"taken_at"`
}

// Snapshot returns current state; logs are newest first.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() {
		snap = Snapshot{
			Customer:    s.customer,
			Listening:   s.deps.Listener.Listening(),
			CatalogSize: s.catalog.Load().Len(),
			Items:       s.ledger.Items(),
			Summary:     s.ledger.Summary(ledger.TaxPercent, ledger.DiscountPercent),
			Logs:        renderLogs(s.activity.Latest()),
			Pending:     s.deps.Queue.Len(),
			TakenAt:     s.clock(),
		}
	})
	return snap, err
}

func renderLogs(entries []activity.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.String()
	}
	return out
}
