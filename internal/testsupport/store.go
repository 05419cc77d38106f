package testsupport

import (
	"context"
	"testing"

	"pmt/internal/config"
	"pmt/internal/trackingdb"
)

// MustOpenTracking opens the configured tracking database for tests and
// registers cleanup.
func MustOpenTracking(t testing.TB, cfg *config.Config) *trackingdb.Store {
	t.Helper()

	store, err := trackingdb.Open(context.Background(), cfg.Tracking.DatabasePath)
	if err != nil {
		t.Fatalf("trackingdb.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
