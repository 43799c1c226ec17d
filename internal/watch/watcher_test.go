package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeTarget) RecomputeLocation(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	return 1
}

func (f *fakeTarget) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func startWatcher(t *testing.T, target Target) *Watcher {
	t.Helper()
	w, err := New(target, 50*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	t.Cleanup(func() {
		cancel()
		w.Stop()
		<-w.Done()
	})
	return w
}

func TestWatcherDebouncesPerRoot(t *testing.T) {
	target := &fakeTarget{}
	w := startWatcher(t, target)
	root := t.TempDir()
	require.NoError(t, w.Add(root))

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o600))
	}

	require.Eventually(t, func() bool { return len(target.snapshot()) > 0 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	calls := target.snapshot()
	require.Equal(t, []string{filepath.Clean(root)}, calls[:1])
	require.LessOrEqual(t, len(calls), 2)
}

func TestWatcherFollowsNewStageDirectory(t *testing.T) {
	target := &fakeTarget{}
	w := startWatcher(t, target)
	root := t.TempDir()
	require.NoError(t, w.Add(root))

	require.NoError(t, os.Mkdir(filepath.Join(root, "Src"), 0o750))
	require.Eventually(t, func() bool { return len(target.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "Src", "main.c"), []byte("int main;"), 0o600))
	require.Eventually(t, func() bool { return len(target.snapshot()) >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, filepath.Clean(root), target.snapshot()[1])
}

func TestWatcherRemove(t *testing.T) {
	target := &fakeTarget{}
	w := startWatcher(t, target)
	root := t.TempDir()
	require.NoError(t, w.Add(root))
	require.Len(t, w.Roots(), 1)

	w.Remove(root)
	require.Empty(t, w.Roots())
	require.NoError(t, os.WriteFile(filepath.Join(root, "late.txt"), []byte("x"), 0o600))
	time.Sleep(200 * time.Millisecond)
	require.Empty(t, target.snapshot())
}

func TestAddMissingDirectory(t *testing.T) {
	w := startWatcher(t, &fakeTarget{})
	require.Error(t, w.Add(filepath.Join(t.TempDir(), "missing")))
}
