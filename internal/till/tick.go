package till

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/loqalabs/loqa-till/internal/capture"
	"github.com/loqalabs/loqa-till/internal/command"
	"github.com/loqalabs/loqa-till/internal/ledger"
	"github.com/loqalabs/loqa-till/internal/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcomes reported on the bus and in the utterances counter.
const (
	outcomeCustomer  = "customer"
	outcomeAdded     = "added"
	outcomeUnknown   = "unknown_item"
	outcomeNoCatalog = "no_catalog"
	outcomeInvalid   = "invalid"
	outcomeIgnored   = "ignored"
)

// tick drains every pending capture event in arrival order.
func (s *Session) tick(ctx context.Context) {
	for _, ev := range s.deps.Queue.Drain() {
		s.handle(ctx, ev)
	}
}

func (s *Session) handle(ctx context.Context, ev capture.Event) {
	if ev.IsFault() {
		s.addLog(fmt.Sprintf("Error: %v", ev.Err))
		return
	}
	outcome := s.process(ctx, ev.Text)
	s.utterances.Add(ctx, 1, metricOutcome(outcome))
	s.publish(protocol.SubjectUtterance, protocol.Utterance{
		Register:  s.opts.Register,
		Text:      ev.Text,
		Outcome:   outcome,
		Timestamp: ev.At,
	})
}

// process applies one utterance. It writes exactly one activity entry and at
// most one ledger mutation (none for blank text).
func (s *Session) process(ctx context.Context, text string) string {
	cmd, err := command.Parse(text)
	switch {
	case errors.Is(err, command.ErrEmpty):
		return outcomeIgnored
	case err != nil:
		s.addLog("Invalid quantity: " + text)
		return outcomeInvalid
	}

	if cmd.Name != nil {
		s.customer = cmd.Name.Name
		s.addLog("Customer name set to " + s.customer)
		s.say("Hello " + s.customer)
		return outcomeCustomer
	}

	order := cmd.Order
	cat := s.catalog.Load()
	if cat == nil {
		s.addLog("Error: Price list not loaded!")
		s.say("Please load price list first")
		return outcomeNoCatalog
	}

	name, price, ok := cat.Match(order.Phrase, s.opts.MatchCutoff)
	if !ok {
		s.addLog("Unknown item: " + order.Phrase)
		s.say("Could not find " + order.Phrase)
		s.unknownItems.Add(ctx, 1)
		return outcomeUnknown
	}

	item := ledger.NewLineItem(name, order.Quantity, price)
	s.ledger.Append(item)
	qty := strconv.Itoa(order.Quantity)
	s.addLog("Added: " + qty + " x " + name)
	s.say("Added " + qty + " " + name)
	s.linesAdded.Add(ctx, 1)
	s.publish(protocol.SubjectLineAdded, protocol.LineAdded{
		Register:  s.opts.Register,
		Item:      item.Item,
		Quantity:  item.Quantity,
		Rate:      item.Rate.StringFixed(2),
		Total:     item.Total.StringFixed(2),
		Customer:  s.customer,
		Timestamp: s.clock(),
	})
	return outcomeAdded
}

// ProcessPending drains the queue now instead of waiting for the next tick.
func (s *Session) ProcessPending(ctx context.Context) error {
	return s.do(ctx, func() { s.tick(ctx) })
}

func metricOutcome(outcome string) metric.AddOption {
	return metric.WithAttributes(attribute.String("outcome", outcome))
}
