package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/factbase/internal/store"
)

// OpenStore opens a fresh store in a temp dir. Facts get _time = Epoch.
// The store is closed when the test ends.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facts.db")
	s, err := store.Open(path, store.WithClock(func() time.Time { return Epoch }))
	require.NoError(t, err, "open store")
	t.Cleanup(func() { _ = s.Close() })
	return s
}
