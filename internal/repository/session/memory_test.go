package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryExpiresAndPurges(t *testing.T) {
	repo := NewMemory(time.Minute).(*memoryRepo)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	if err := repo.Save(ctx, sampleRecord()); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Get(ctx, "sess-1"); err != nil {
		t.Fatalf("get: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := repo.Get(ctx, "sess-1"); err == nil {
		t.Fatal("expired record should not be returned")
	}
	n, err := repo.Purge(ctx)
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v", n, err)
	}
}

func TestMemoryKeepsCreatedAt(t *testing.T) {
	repo := NewMemory(time.Hour)
	ctx := context.Background()
	rec := sampleRecord()
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatal(err)
	}
	first, _ := repo.Get(ctx, rec.ID)

	rec.ThemeID = "snes"
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatal(err)
	}
	second, _ := repo.Get(ctx, rec.ID)
	if !second.CreatedAt.Equal(first.CreatedAt) || second.ThemeID != "snes" {
		t.Fatalf("unexpected record after update: %+v", second)
	}
}
