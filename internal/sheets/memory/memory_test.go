package memory

import (
	"context"
	"sync"
	"testing"

	"fintrack/internal/sheets"
)

func TestMemoryStoreAppendRow(t *testing.T) {
	s := New()
	ref, err := s.AppendRow(context.Background(), sheets.Row{Event: "ledger.transaction_created", TransactionID: 7})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	ref, _ = s.AppendRow(context.Background(), sheets.Row{Event: "ledger.transaction_deleted", TransactionID: 7})
	if ref != "mem:2" {
		t.Fatalf("ref = %q", ref)
	}

	rows := s.Rows()
	if len(rows) != 2 || rows[1].Event != "ledger.transaction_deleted" {
		t.Fatalf("rows = %+v", rows)
	}
	rows[0].Event = "mutated"
	if s.Rows()[0].Event == "mutated" {
		t.Fatal("Rows must return a copy")
	}
}

func TestMemoryStoreConcurrentAppends(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _ = s.AppendRow(context.Background(), sheets.Row{TransactionID: id})
		}(int64(i))
	}
	wg.Wait()
	if got := len(s.Rows()); got != 20 {
		t.Fatalf("rows = %d, want 20", got)
	}
}
