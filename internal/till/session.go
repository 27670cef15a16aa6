package till

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loqalabs/loqa-till/internal/activity"
	"github.com/loqalabs/loqa-till/internal/archive"
	"github.com/loqalabs/loqa-till/internal/bill"
	"github.com/loqalabs/loqa-till/internal/capture"
	"github.com/loqalabs/loqa-till/internal/catalog"
	"github.com/loqalabs/loqa-till/internal/ledger"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// NoCustomer is shown until a customer name is spoken.
const NoCustomer = "-"

var (
	ErrEmptyBill = errors.New("cannot print empty bill")
	ErrClosed    = errors.New("till session closed")
)

// Listener gates the capture producer.
type Listener interface {
	Start() bool
	Stop() bool
	Listening() bool
}

// Voice speaks confirmations without blocking.
type Voice interface {
	Say(text string) bool
}

// Exporter renders a bill document.
type Exporter interface {
	Export(ctx context.Context, doc bill.Document) (bill.Handle, error)
}

// Publisher emits till events on the bus.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// Options configure a session.
type Options struct {
	Register    string
	StoreName   string
	MatchCutoff float64
	LogCapacity int
	Tick        time.Duration
}

// Deps are the collaborators a session drives. Voice, Archive, Publisher and
// Meter are optional.
type Deps struct {
	Queue     *capture.Queue
	Listener  Listener
	Voice     Voice
	Exporter  Exporter
	Archive   archive.Archive
	Publisher Publisher
	Meter     metric.Meter
	Log       *slog.Logger
}

// Session is the till's single consumer. The ledger, activity log and
// customer are only touched from the Run goroutine; every public method is
// executed there.
type Session struct {
	opts Options
	deps Deps
	log  *slog.Logger

	catalog  catalog.Store
	ledger   *ledger.Ledger
	activity *activity.Log
	customer string
	clock    func() time.Time

	cmds chan func()
	done chan struct{}

	utterances   metric.Int64Counter
	linesAdded   metric.Int64Counter
	unknownItems metric.Int64Counter
	billsPrinted metric.Int64Counter
}

func New(opts Options, deps Deps) (*Session, error) {
	if deps.Queue == nil || deps.Listener == nil || deps.Exporter == nil {
		return nil, errors.New("till session requires queue, listener and exporter")
	}
	if opts.MatchCutoff <= 0 {
		opts.MatchCutoff = catalog.DefaultCutoff
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Archive == nil {
		deps.Archive = archive.Ephemeral{}
	}
	if deps.Meter == nil {
		deps.Meter = noop.NewMeterProvider().Meter("till")
	}

	s := &Session{
		opts:     opts,
		deps:     deps,
		log:      deps.Log.With(slog.String("component", "till")),
		ledger:   ledger.New(),
		activity: activity.NewLog(opts.LogCapacity),
		customer: NoCustomer,
		clock:    time.Now,
		cmds:     make(chan func()),
		done:     make(chan struct{}),
	}

	var err error
	if s.utterances, err = deps.Meter.Int64Counter("till.utterances", metric.WithDescription("Utterances processed")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	if s.linesAdded, err = deps.Meter.Int64Counter("till.lines.added", metric.WithDescription("Line items appended to the bill")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	if s.unknownItems, err = deps.Meter.Int64Counter("till.items.unknown", metric.WithDescription("Utterances that matched no catalog item")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	if s.billsPrinted, err = deps.Meter.Int64Counter("till.bills.exported", metric.WithDescription("Bills exported")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	return s, nil
}

// Run drains the capture queue every tick and executes control operations
// until ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		case fn := <-s.cmds:
			fn()
		}
	}
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// do runs fn on the session goroutine and waits for it. ctx only bounds the
// wait for the loop to accept fn; once accepted, fn always runs to completion
// and do reports its outcome.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.cmds <- wrapped:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// addLog appends to the activity log and mirrors it to the process log.
func (s *Session) addLog(msg string) {
	s.activity.Append(msg)
	s.log.Debug("activity", slog.String("message", msg))
}

func (s *Session) say(text string) {
	if s.deps.Voice != nil {
		s.deps.Voice.Say(text)
	}
}

func (s *Session) publish(subject string, v any) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.PublishJSON(subject, v); err != nil {
		s.log.Warn("failed to publish till event", slog.String("subject", subject), slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
