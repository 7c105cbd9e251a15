package testsupport

import (
	"context"
	"testing"

	"shortforge/internal/config"
	"shortforge/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewScript stores a script for tests.
func NewScript(t testing.TB, store *queue.Store, topic, text string) *queue.Script {
	t.Helper()

	script, err := store.AddScript(context.Background(), "", topic, text)
	if err != nil {
		t.Fatalf("store.AddScript: %v", err)
	}
	return script
}
