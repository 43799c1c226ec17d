package projectconfig

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	file, found, err := Load(t.TempDir())
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, File{}, file)
}

func TestSaveLoadPreservesMultilineContent(t *testing.T) {
	dir := t.TempDir()
	in := File{
		App: App{PlatformIOCmd: "pio", CubeMXCmd: "/opt/cubemx/STM32CubeMX"},
		Project: Project{
			Board:                     "nucleo_f031k6",
			CubeMXScriptContent:       DefaultCubeMXScript,
			PlatformIOINIPatchContent: DefaultPlatformIOPatch,
			CleanupUseGit:             true,
		},
	}
	require.NoError(t, Save(dir, in))
	require.True(t, Exists(dir))

	out, found, err := Load(dir)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, in, out)

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("[project\nboard="), 0o644))
	_, found, err := Load(dir)
	require.Error(t, err)
	require.True(t, found)
}

func TestMergeAndOverrides(t *testing.T) {
	defaults := File{App: App{PlatformIOCmd: "platformio", CubeMXCmd: "cubemx"}}
	current := File{Project: Project{Board: "old_board"}}

	merged := Merge(defaults, current)
	require.Equal(t, "platformio", merged.App.PlatformIOCmd)
	require.Equal(t, "old_board", merged.Project.Board)

	merged, err := ApplyOverrides(merged, []string{"board=nucleo_f031k6", "app.java_cmd = java", "cleanup_use_git=true"})
	require.NoError(t, err)
	require.Equal(t, "nucleo_f031k6", merged.Project.Board)
	require.Equal(t, "java", merged.App.JavaCmd)
	require.True(t, merged.Project.CleanupUseGit)

	_, err = ApplyOverrides(merged, []string{"flash_cmd=st-flash"})
	require.Error(t, err)
	_, err = ApplyOverrides(merged, []string{"board"})
	require.Error(t, err)
	_, err = ApplyOverrides(merged, []string{"cleanup_use_git=maybe"})
	require.Error(t, err)
}

func TestResolveIOC(t *testing.T) {
	dir := t.TempDir()

	_, err := ResolveIOC(dir, Project{})
	require.True(t, errors.Is(err, fs.ErrNotExist))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.ioc"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ioc"), nil, 0o644))

	got, err := ResolveIOC(dir, Project{})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "a.ioc"), got)

	got, err = ResolveIOC(dir, Project{IOCFile: "b.ioc"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "b.ioc"), got)

	_, err = ResolveIOC(dir, Project{IOCFile: "missing.ioc"})
	require.True(t, errors.Is(err, fs.ErrNotExist))
}
