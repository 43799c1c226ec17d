// Package testutil builds project directories for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// IOCContent is a minimal CubeMX source description.
const IOCContent = "Mcu.Family=STM32F0\nMcu.Name=STM32F031K6Tx\n"

// ProjectDir creates a temporary project with <name>.ioc plus files (path
// relative to the project, slash separated, parents created).
func ProjectDir(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	WriteFile(t, dir, name+".ioc", IOCContent)
	for rel, content := range files {
		WriteFile(t, dir, rel, content)
	}
	return dir
}

// WriteFile writes content to dir/rel, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// CommitAll turns dir into a git repository and commits the given paths.
func CommitAll(t *testing.T, dir string, paths ...string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for _, p := range paths {
		_, err = wt.Add(p)
		require.NoError(t, err)
	}
	_, err = wt.Commit("sources", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return repo
}

// AssertPresent fails unless every rel path exists below dir.
func AssertPresent(t *testing.T, dir string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		require.NoError(t, err, "expected %s to exist", rel)
	}
}

// AssertAbsent fails if any rel path exists below dir.
func AssertAbsent(t *testing.T, dir string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		require.True(t, os.IsNotExist(err), "expected %s to be absent", rel)
	}
}
