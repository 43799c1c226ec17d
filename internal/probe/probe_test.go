package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cubepio/internal/projectconfig"
	"git.home.luguber.info/inful/cubepio/internal/stage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestProbeMissingIOCIsInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Inc", "main.h"), "")
	writeFile(t, filepath.Join(dir, "Src", "main.c"), "")

	rep, err := New("").Probe(t.Context(), dir)
	require.NoError(t, err)
	require.True(t, rep.Invalid)
	require.False(t, rep.Flags.Any())
	require.Equal(t, stage.Undefined, rep.Current())
}

func TestProbeLocationNotDirectory(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "file")
	writeFile(t, f, "x")

	rep, err := New("").Probe(t.Context(), f)
	require.NoError(t, err)
	require.True(t, rep.Invalid)

	rep, err = New("").Probe(t.Context(), filepath.Join(dir, "missing"))
	require.NoError(t, err)
	require.True(t, rep.Invalid)
}

func TestProbeStageProgression(t *testing.T) {
	dir := t.TempDir()
	p := New("")
	probe := func() stage.Report {
		rep, err := p.Probe(t.Context(), dir)
		require.NoError(t, err)
		require.False(t, rep.Invalid)
		return rep
	}

	writeFile(t, filepath.Join(dir, "board.ioc"), "Mcu.Family=STM32F0\n")
	require.Equal(t, stage.Empty, probe().Current())

	require.NoError(t, projectconfig.Save(dir, projectconfig.File{Project: projectconfig.Project{Board: "nucleo_f031k6"}}))
	require.Equal(t, stage.Configured, probe().Current())

	writeFile(t, filepath.Join(dir, "Inc", "main.h"), "")
	writeFile(t, filepath.Join(dir, "Src", "main.c"), "")
	require.Equal(t, stage.Generated, probe().Current())

	writeFile(t, filepath.Join(dir, PlatformIOINI), "[env:nucleo_f031k6]\nboard = nucleo_f031k6\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "include"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o750))
	require.Equal(t, stage.PIOInitialized, probe().Current())

	writeFile(t, filepath.Join(dir, PlatformIOINI),
		"[env:nucleo_f031k6]\nboard = nucleo_f031k6\n\n"+projectconfig.DefaultPlatformIOPatch+"\n")
	// Default PlatformIO folders still present.
	require.Equal(t, stage.PIOInitialized, probe().Current())

	require.NoError(t, os.Remove(filepath.Join(dir, "include")))
	require.NoError(t, os.Remove(filepath.Join(dir, "src")))
	require.Equal(t, stage.Patched, probe().Current())

	writeFile(t, filepath.Join(dir, ".pio", "build", "nucleo_f031k6", "firmware.elf"), "ELF")
	rep := probe()
	require.Equal(t, stage.Built, rep.Current())
	require.True(t, rep.Consistent())
}

func TestProbeBrokenPrefix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "board.ioc"), "")
	writeFile(t, filepath.Join(dir, ".pio", "build", "env", "firmware.bin"), "")

	rep, err := New("").Probe(t.Context(), dir)
	require.NoError(t, err)
	require.True(t, rep.Flags.Has(stage.Built))
	require.False(t, rep.Flags.Has(stage.Configured))
	require.Equal(t, stage.Empty, rep.Current())
}

func TestProbeUsesProjectPatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "board.ioc"), "")
	require.NoError(t, projectconfig.Save(dir, projectconfig.File{Project: projectconfig.Project{
		PlatformIOINIPatchContent: "[platformio]\nsrc_dir = Core/Src\n",
	}}))
	writeFile(t, filepath.Join(dir, PlatformIOINI), "[platformio]\nsrc_dir = Core/Src\n")

	rep, err := New("").Probe(t.Context(), dir)
	require.NoError(t, err)
	require.True(t, rep.Flags.Has(stage.Patched))
}

func TestProbeConfiguredIOCMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "other.ioc"), "")
	require.NoError(t, projectconfig.Save(dir, projectconfig.File{Project: projectconfig.Project{IOCFile: "gone.ioc"}}))

	rep, err := New("").Probe(t.Context(), dir)
	require.NoError(t, err)
	require.True(t, rep.Invalid)
}

func TestProbeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := New("").Probe(ctx, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}
