package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{15, 30 * time.Second},
		{80, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"consumer channel", errors.New("message channel closed"), true},
		{"handler error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "fintrack", queueName: "fintrack_events"}

	if client.isCircuitOpen() {
		t.Fatal("circuit should start closed")
	}

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	if !client.isCircuitOpen() {
		t.Fatal("circuit should open after max failures")
	}

	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Error("circuit should half-open after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Error("state should be half-open")
	}

	client.recordSuccess()
	if atomic.LoadInt32(&client.state) != StateClosed || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Error("success should reset the breaker")
	}
}

func TestClient_PublishShortCircuits(t *testing.T) {
	client := &Client{exchangeName: "fintrack", queueName: "fintrack_events"}
	ev := NewPINIssued("me@example.com", "123456", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.Publish(ctx, ev); err != context.Canceled {
		t.Errorf("Publish() with cancelled context = %v, want context.Canceled", err)
	}

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now()
	err := client.Publish(context.Background(), ev)
	if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Errorf("Publish() with open circuit = %v", err)
	}
}

func TestLedgerEventBody(t *testing.T) {
	tx := core.Transaction{ID: 7, Amount: decimal.NewFromInt(300000), Date: core.NewDate(2025, 4, 3), Type: core.Expense}

	created := NewLedgerEvent(KindTransactionCreated, tx)
	if created.Transaction == nil || created.TransactionID != 7 {
		t.Fatalf("created event = %+v", created)
	}
	deleted := NewLedgerEvent(KindTransactionDeleted, tx)
	if deleted.Transaction != nil {
		t.Error("delete events should only carry the id")
	}

	body, err := created.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	parsed, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if parsed.Kind != KindTransactionCreated || !parsed.Transaction.Amount.Equal(tx.Amount) {
		t.Errorf("parsed event = %+v", parsed)
	}
	if !strings.Contains(string(body), `"amount":300000`) {
		t.Errorf("amount should encode as a number: %s", body)
	}
}

func TestParseEventRejectsMalformed(t *testing.T) {
	for _, body := range []string{`{`, `{"email":"x"}`, `{"kind":1}`} {
		if _, err := ParseEvent([]byte(body)); err == nil {
			t.Errorf("ParseEvent(%s) should fail", body)
		}
	}
}
