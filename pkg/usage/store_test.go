package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"helioshq/meridian/pkg/backends"
)

// storeRecords is a small fixed dataset shared by the store tests.
func storeRecords(now time.Time) []Record {
	return []Record{
		{Time: now, User: "alice", Model: backends.ModelGPT4o, Backend: backends.KindOpenAI,
			PromptTokens: 100, CompletionTokens: 50, Cost: 0.01},
		{Time: now, User: "alice", Model: backends.ModelClaudeOpus, Backend: backends.KindAnthropic,
			PromptTokens: 200, CompletionTokens: 100, Cost: 0.05},
		{Time: now, User: "bob", Model: backends.ModelGPT4o, Backend: backends.KindOpenAI,
			PromptTokens: 50, CompletionTokens: 25, Cost: 0.005},
		{Time: now.Add(-48 * time.Hour), User: "carol", Model: backends.ModelGPT4o, Backend: backends.KindOpenAI,
			PromptTokens: 10, CompletionTokens: 5, Cost: 0.001},
	}
}

func verifyStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	if err := store.Append(ctx, storeRecords(now)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	since := now.Add(-time.Hour)
	totals, err := store.Sum(ctx, since)
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}
	if totals.Requests != 3 {
		t.Errorf("recent requests = %d, want 3 (old record excluded)", totals.Requests)
	}
	if totals.TotalTokens != 525 {
		t.Errorf("recent tokens = %d, want 525", totals.TotalTokens)
	}

	byUser, err := store.Aggregate(ctx, DimensionUser, since)
	if err != nil {
		t.Fatalf("Aggregate(user) error = %v", err)
	}
	if byUser["alice"].Requests != 2 {
		t.Errorf("alice requests = %d, want 2", byUser["alice"].Requests)
	}
	if _, ok := byUser["carol"]; ok {
		t.Error("carol's old record should fall outside the window")
	}

	byBackend, err := store.Aggregate(ctx, DimensionBackend, since)
	if err != nil {
		t.Fatalf("Aggregate(backend) error = %v", err)
	}
	if byBackend[string(backends.KindOpenAI)].Requests != 2 {
		t.Errorf("openai requests = %d, want 2", byBackend[string(backends.KindOpenAI)].Requests)
	}

	if _, err := store.Aggregate(ctx, "team", since); err == nil {
		t.Error("expected an error for an unknown dimension")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	verifyStore(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()
	verifyStore(t, store)
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(""); err == nil {
		t.Error("expected an error for an empty path")
	}
}

func TestMemoryStoreRejectsAppendAfterClose(t *testing.T) {
	store := NewMemoryStore()
	store.Close()
	if err := store.Append(context.Background(), storeRecords(time.Now())); err == nil {
		t.Error("expected an error after Close")
	}
}
