package memory

import (
	"context"
	"errors"
	"testing"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
)

func testRecord(key string, status domain.ExecutionStatus) *domain.ExecutionRecord {
	return &domain.ExecutionRecord{
		IdempotencyKey: key,
		UserID:         42,
		Mint:           "mint",
		Side:           domain.SideBuy,
		Venue:          domain.VenueBondingCurve,
		Quote:          domain.QuoteNative,
		AmountIn:       1_000,
		ExpectedOut:    50_000,
		MinOut:         42_500,
		Status:         status,
		CreatedAt:      1_700_000_000_000,
	}
}

func TestExecutionRecordInsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewExecutionRecordStore()

	if err := store.Insert(ctx, testRecord("k1", domain.StatusPending)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.GetByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusPending || got.MinOut != 42_500 {
		t.Fatalf("got %+v", got)
	}
}

func TestExecutionRecordDuplicateKey(t *testing.T) {
	ctx := context.Background()
	store := NewExecutionRecordStore()

	if err := store.Insert(ctx, testRecord("k1", domain.StatusPending)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := store.Insert(ctx, testRecord("k1", domain.StatusPending))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestExecutionRecordGetMissing(t *testing.T) {
	store := NewExecutionRecordStore()

	if _, err := store.GetByKey(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestExecutionRecordUpdateTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewExecutionRecordStore()

	if err := store.Insert(ctx, testRecord("k1", domain.StatusPending)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec := testRecord("k1", domain.StatusSubmitted)
	rec.Signature = "sig1"
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("pending -> submitted: %v", err)
	}

	rec.Status = domain.StatusConfirmed
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("submitted -> confirmed: %v", err)
	}

	// Terminal: no way back.
	rec.Status = domain.StatusSubmitted
	if err := store.Update(ctx, rec); !errors.Is(err, storage.ErrStaleUpdate) {
		t.Fatalf("err = %v, want ErrStaleUpdate", err)
	}
}

func TestExecutionRecordUpdateSkipRejected(t *testing.T) {
	ctx := context.Background()
	store := NewExecutionRecordStore()

	if err := store.Insert(ctx, testRecord("k1", domain.StatusPending)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Pending may not jump straight to confirmed.
	rec := testRecord("k1", domain.StatusConfirmed)
	if err := store.Update(ctx, rec); !errors.Is(err, storage.ErrStaleUpdate) {
		t.Fatalf("err = %v, want ErrStaleUpdate", err)
	}
}

func TestExecutionRecordGetBySignature(t *testing.T) {
	ctx := context.Background()
	store := NewExecutionRecordStore()

	if err := store.Insert(ctx, testRecord("k1", domain.StatusPending)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec := testRecord("k1", domain.StatusSubmitted)
	rec.Signature = "sig1"
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetBySignature(ctx, "sig1")
	if err != nil {
		t.Fatalf("get by signature: %v", err)
	}
	if got.IdempotencyKey != "k1" {
		t.Fatalf("got key %s, want k1", got.IdempotencyKey)
	}

	if _, err := store.GetBySignature(ctx, ""); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("empty signature matched a record: %v", err)
	}
}

func TestExecutionRecordListByStatus(t *testing.T) {
	ctx := context.Background()
	store := NewExecutionRecordStore()

	a := testRecord("a", domain.StatusPending)
	a.CreatedAt = 200
	b := testRecord("b", domain.StatusPending)
	b.CreatedAt = 100
	c := testRecord("c", domain.StatusSubmitted)

	for _, r := range []*domain.ExecutionRecord{a, b, c} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("insert %s: %v", r.IdempotencyKey, err)
		}
	}

	got, err := store.ListByStatus(ctx, domain.StatusPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].IdempotencyKey != "b" || got[1].IdempotencyKey != "a" {
		t.Fatalf("got %d records, want b then a", len(got))
	}
}

func TestExecutionRecordCopyOnRead(t *testing.T) {
	ctx := context.Background()
	store := NewExecutionRecordStore()

	if err := store.Insert(ctx, testRecord("k1", domain.StatusPending)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, _ := store.GetByKey(ctx, "k1")
	got.Status = domain.StatusConfirmed

	again, _ := store.GetByKey(ctx, "k1")
	if again.Status != domain.StatusPending {
		t.Fatal("mutation through a read copy leaked into the store")
	}
}
