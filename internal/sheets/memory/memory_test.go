package memory

import (
	"context"
	"testing"

	ports "caixinha/internal/sheets"
)

func TestMemoryStoreUpsertAndRemove(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Upsert(ctx, ports.MirrorRow{TransactionID: 2, Category: "Lazer"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, ports.MirrorRow{TransactionID: 1, Category: "Outros"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, ports.MirrorRow{TransactionID: 2, Category: "Outros"}); err != nil {
		t.Fatal(err)
	}

	rows := s.Rows()
	if len(rows) != 2 || rows[0].TransactionID != 1 || rows[1].Category != "Outros" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if err := s.Remove(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, 99); err != nil {
		t.Fatalf("removing a missing row should succeed, got %v", err)
	}
	if _, ok := s.Get(2); ok {
		t.Fatal("row 2 should be gone")
	}
}
