package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Kind names a domain event.
type Kind string

const (
	KindPINIssued          Kind = "auth.pin_issued"
	KindTransactionCreated Kind = "ledger.transaction_created"
	KindTransactionUpdated Kind = "ledger.transaction_updated"
	KindTransactionDeleted Kind = "ledger.transaction_deleted"
)

// Event is the message body published on the exchange. Ledger events carry
// the transaction (deletes only its id); PIN events carry the delivery data.
type Event struct {
	Kind          Kind              `json:"kind"`
	TransactionID int64             `json:"transaction_id,omitempty"`
	Email         string            `json:"email,omitempty"`
	PIN           string            `json:"pin,omitempty"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
	Transaction   *core.Transaction `json:"transaction,omitempty"`
}

// NewPINIssued builds the event the messaging bot delivers.
func NewPINIssued(email, pin string, expiresAt time.Time) Event {
	exp := expiresAt.UTC()
	return Event{Kind: KindPINIssued, Email: email, PIN: pin, ExpiresAt: &exp, OccurredAt: time.Now().UTC()}
}

// NewLedgerEvent builds a transaction mutation event.
func NewLedgerEvent(kind Kind, tx core.Transaction) Event {
	ev := Event{Kind: kind, TransactionID: tx.ID, OccurredAt: time.Now().UTC()}
	if kind != KindTransactionDeleted {
		ev.Transaction = &tx
	}
	return ev
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEvent decodes a message body and rejects bodies without a kind.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	if ev.Kind == "" {
		return Event{}, fmt.Errorf("event without kind")
	}
	return ev, nil
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NoopPublisher drops events; used when no broker is configured.
type NoopPublisher struct {
	Logger *log.Logger
}

func (p NoopPublisher) Publish(ctx context.Context, ev Event) error {
	if p.Logger != nil {
		p.Logger.DebugContext(ctx, "No broker configured, dropping event", log.FieldEventKind, ev.Kind)
	}
	return nil
}
