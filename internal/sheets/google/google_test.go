package google

import (
	"context"
	"strings"
	"testing"

	ports "expensetracker/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{SheetName: "Transactions"})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet ID")
	}
	if err.Error() != "missing spreadsheet ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{
		SpreadsheetID:   "test-id",
		CredentialsFile: "/non/existent/key.json",
	})
	if err == nil {
		t.Fatal("expected error for missing credentials file")
	}
	if !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Transactions"}

	if _, err := c.AppendTransaction(context.Background(), ports.MirrorRow{TransactionID: 1}); err == nil {
		t.Error("expected error with nil service")
	}
	if _, err := c.HasTransaction(context.Background(), 1); err == nil {
		t.Error("expected error with nil service")
	}
}

func TestFindTransactionRow(t *testing.T) {
	values := [][]any{
		{"ID", "User"},
		{"1", "7"},
		{},
		{" 12 ", "7"},
		{float64(40)},
	}

	tests := []struct {
		name string
		id   int64
		want int
	}{
		{name: "first data row", id: 1, want: 1},
		{name: "trimmed cell", id: 12, want: 3},
		{name: "numeric cell", id: 40, want: 4},
		{name: "prefix does not match", id: 4, want: -1},
		{name: "missing", id: 99, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findTransactionRow(values, tt.id); got != tt.want {
				t.Errorf("findTransactionRow(%d) = %d, want %d", tt.id, got, tt.want)
			}
		})
	}
}

func TestHasHeader(t *testing.T) {
	tests := []struct {
		name   string
		values [][]any
		want   bool
	}{
		{name: "empty sheet", values: nil, want: false},
		{name: "empty first row", values: [][]any{{}}, want: false},
		{name: "header present", values: [][]any{{"id", "User"}}, want: true},
		{name: "data without header", values: [][]any{{"1", "7"}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasHeader(tt.values); got != tt.want {
				t.Errorf("hasHeader() = %v, want %v", got, tt.want)
			}
		})
	}
}
