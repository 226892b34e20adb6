package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"expensetracker/internal/sheets"
)

func TestStoreAppendAndIndex(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.AppendTransaction(ctx, sheets.MirrorRow{TransactionID: 7, Amount: decimal.NewFromInt(3)})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	if ok, _ := s.HasTransaction(ctx, 7); !ok {
		t.Error("transaction 7 should be indexed")
	}
	if ok, _ := s.HasTransaction(ctx, 8); ok {
		t.Error("transaction 8 was never appended")
	}
	if len(s.Rows()) != 1 {
		t.Errorf("Rows() = %d, want 1", len(s.Rows()))
	}

	if _, err := s.AppendTransaction(ctx, sheets.MirrorRow{}); err == nil {
		t.Error("rows without an id must be rejected")
	}
}

func TestStoreFailNext(t *testing.T) {
	s := New()
	s.FailNext(1)

	_, err := s.AppendTransaction(context.Background(), sheets.MirrorRow{TransactionID: 1})
	if !errors.Is(err, ErrInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if _, err := s.AppendTransaction(context.Background(), sheets.MirrorRow{TransactionID: 1}); err != nil {
		t.Fatalf("second append should succeed: %v", err)
	}
}
