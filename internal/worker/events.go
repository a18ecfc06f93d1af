// Package worker consumes domain events: it delivers login PINs to the
// messaging bot and mirrors ledger mutations into a spreadsheet.
package worker

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
)

// EventWorker dispatches events by kind. It also satisfies amqp.Publisher so
// the server can handle events in process when no broker is configured.
type EventWorker struct {
	mirror sheets.LedgerMirror
	pins   PINDeliverer
	logger *log.Logger
}

var _ amqp.Publisher = (*EventWorker)(nil)

func NewEventWorker(mirror sheets.LedgerMirror, pins PINDeliverer, logger *log.Logger) *EventWorker {
	logger = logger.WithComponent(log.ComponentWorker)
	if pins == nil {
		pins = LogDeliverer{Logger: logger}
	}
	return &EventWorker{mirror: mirror, pins: pins, logger: logger}
}

// Handle processes one event. Unknown kinds are logged and acknowledged.
func (w *EventWorker) Handle(ctx context.Context, ev amqp.Event) error {
	switch ev.Kind {
	case amqp.KindPINIssued:
		return w.deliverPIN(ctx, ev)
	case amqp.KindTransactionCreated, amqp.KindTransactionUpdated, amqp.KindTransactionDeleted:
		return w.mirrorLedger(ctx, ev)
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event", log.FieldEventKind, ev.Kind)
		return nil
	}
}

// Publish handles ev synchronously.
func (w *EventWorker) Publish(ctx context.Context, ev amqp.Event) error {
	return w.Handle(ctx, ev)
}

func (w *EventWorker) deliverPIN(ctx context.Context, ev amqp.Event) error {
	if ev.Email == "" || ev.PIN == "" {
		w.logger.WarnContext(ctx, "Dropping PIN event without recipient or PIN")
		return nil
	}
	var expiresAt time.Time
	if ev.ExpiresAt != nil {
		expiresAt = *ev.ExpiresAt
	}
	if err := w.pins.DeliverPIN(ctx, ev.Email, ev.PIN, expiresAt); err != nil {
		return fmt.Errorf("deliver PIN: %w", err)
	}
	w.logger.InfoContext(ctx, "Login PIN delivered", log.FieldEmail, ev.Email)
	return nil
}

func (w *EventWorker) mirrorLedger(ctx context.Context, ev amqp.Event) error {
	if w.mirror == nil {
		return nil
	}
	ref, err := w.mirror.AppendRow(ctx, RowFromEvent(ev))
	if err != nil {
		return fmt.Errorf("mirror %s: %w", ev.Kind, err)
	}
	w.logger.DebugContext(ctx, "Ledger event mirrored",
		log.FieldEventKind, ev.Kind,
		log.FieldTransactionID, ev.TransactionID,
		log.FieldRange, ref)
	return nil
}

// RowFromEvent flattens a ledger event into a mirror row.
func RowFromEvent(ev amqp.Event) sheets.Row {
	row := sheets.Row{
		OccurredAt:    ev.OccurredAt,
		Event:         string(ev.Kind),
		TransactionID: ev.TransactionID,
	}
	if tx := ev.Transaction; tx != nil {
		row.Date = tx.Date.String()
		row.Type = string(tx.Type)
		row.Category = tx.CategoryName
		row.Amount = tx.Amount.String()
		row.Description = tx.Description
		row.Vendor = tx.Vendor
	}
	return row
}
