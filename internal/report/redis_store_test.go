package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/s4cindia/ninja-backend-sub007/internal/reconcile"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), ttl)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t, time.Hour)
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("not-a-url", time.Hour); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestSaveAndLatest(t *testing.T) {
	store, _ := setupTestRedis(t, time.Hour)
	defer store.Close()

	ctx := context.Background()
	ts := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	first := Report{ExportID: "e1", DocumentID: "doc-1", Mode: reconcile.ModeClean, Timestamp: ts, Applied: 2}
	second := Report{
		ExportID:   "e2",
		DocumentID: "doc-1",
		Mode:       reconcile.ModeTracked,
		Author:     "Editor",
		Timestamp:  ts.Add(time.Minute),
		Applied:    1,
		Skips: []reconcile.Skip{
			{SubjectKey: "text:(9)", Kind: reconcile.SkipAbsent, Reason: "no occurrence", Sources: []string{"r1"}},
		},
	}

	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save first: %v", err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	got, err := store.Latest(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.ExportID != "e2" || got.Author != "Editor" || got.Mode != reconcile.ModeTracked {
		t.Fatalf("unexpected report %+v", got)
	}
	if len(got.Skips) != 1 || got.Skips[0].Kind != reconcile.SkipAbsent {
		t.Fatalf("unexpected skips %+v", got.Skips)
	}
	if !got.Timestamp.Equal(second.Timestamp) {
		t.Fatalf("expected timestamp %s, got %s", second.Timestamp, got.Timestamp)
	}
}

func TestLatestMissing(t *testing.T) {
	store, _ := setupTestRedis(t, time.Hour)
	defer store.Close()

	_, err := store.Latest(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReportExpires(t *testing.T) {
	store, s := setupTestRedis(t, time.Minute)
	defer store.Close()

	ctx := context.Background()
	if err := store.Save(ctx, Report{ExportID: "e1", DocumentID: "doc-2"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s.FastForward(2 * time.Minute)

	if _, err := store.Latest(ctx, "doc-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired report, got %v", err)
	}
}

func TestReportsAreScopedByDocument(t *testing.T) {
	store, _ := setupTestRedis(t, time.Hour)
	defer store.Close()

	ctx := context.Background()
	if err := store.Save(ctx, Report{ExportID: "a", DocumentID: "doc-a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, Report{ExportID: "b", DocumentID: "doc-b"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Latest(ctx, "doc-a")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.ExportID != "a" {
		t.Fatalf("expected report a, got %s", got.ExportID)
	}
}
