package profile

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatch(t *testing.T, s *Store) <-chan struct{} {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	changed := make(chan struct{}, 1)
	go s.Watch(ctx, func() { changed <- struct{}{} })
	time.Sleep(100 * time.Millisecond) // let the watcher attach
	return changed
}

func TestWatchReloadsExternalEdit(t *testing.T) {
	s := tempStore(t)
	// age the store's own seed write so the edit is not suppressed
	s.mu.Lock()
	s.lastWrite = time.Time{}
	s.mu.Unlock()

	changed := startWatch(t, s)
	require.NoError(t, os.WriteFile(s.path, []byte("enabled: true\nactiveProfile: Night\n"), 0o600))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the external edit")
	}
	assert.Equal(t, "Night", s.Active().ID, "the reloaded state is visible")
	assert.True(t, s.Enabled())
}

func TestWatchIgnoresOwnWrites(t *testing.T) {
	s := tempStore(t)
	changed := startWatch(t, s)

	require.NoError(t, s.SetActive("Night"))

	select {
	case <-changed:
		t.Fatal("a write-through must not trigger a reload")
	case <-time.After(time.Second):
	}
	assert.Equal(t, "Night", s.Active().ID)
}
