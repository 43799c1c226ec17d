// Package probe inspects a project directory and reports which stages of the
// CubeMX → PlatformIO pipeline are satisfied.
//
// Probing never fails on a broken project: missing or unreadable artifacts
// simply leave the corresponding stage unset, and a missing .ioc file marks
// the whole project invalid. The only error is context cancellation.
package probe

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/cubepio/internal/logfields"
	"git.home.luguber.info/inful/cubepio/internal/pioini"
	"git.home.luguber.info/inful/cubepio/internal/projectconfig"
	"git.home.luguber.info/inful/cubepio/internal/stage"
)

// Prober computes the stage report of a project location.
type Prober interface {
	Probe(ctx context.Context, location string) (stage.Report, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, location string) (stage.Report, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, location string) (stage.Report, error) {
	return f(ctx, location)
}

// Folders and files produced by the external tools.
const (
	CubeMXIncludeDir = "Inc"
	CubeMXSourceDir  = "Src"
	PlatformIOINI    = "platformio.ini"
	PIOIncludeDir    = "include"
	PIOSourceDir     = "src"
	PIOBuildDir      = ".pio/build"
)

var firmwareNames = []string{"firmware.bin", "firmware.elf", "firmware.hex"}

// FSProbe probes the local filesystem.
type FSProbe struct {
	// PatchContent is the platformio.ini patch used when the project config
	// does not define one.
	PatchContent string
}

// New returns an FSProbe using the given default patch (projectconfig.DefaultPlatformIOPatch when empty).
func New(patchContent string) *FSProbe {
	if patchContent == "" {
		patchContent = projectconfig.DefaultPlatformIOPatch
	}
	return &FSProbe{PatchContent: patchContent}
}

// Probe implements Prober.
func (p *FSProbe) Probe(ctx context.Context, location string) (stage.Report, error) {
	if err := ctx.Err(); err != nil {
		return stage.Report{}, err
	}

	info, err := os.Stat(location)
	if err != nil || !info.IsDir() {
		return stage.InvalidReport(), nil
	}

	file, found, cfgErr := projectconfig.Load(location)
	if cfgErr != nil {
		slog.Debug("Project config unreadable; treating as unconfigured",
			logfields.Location(location), logfields.Error(cfgErr))
		found = false
		file = projectconfig.File{}
	}

	if _, err := projectconfig.ResolveIOC(location, file.Project); err != nil {
		return stage.InvalidReport(), nil
	}

	var flags stage.Flags
	flags = flags.With(stage.Empty, true)
	flags = flags.With(stage.Configured, found)
	flags = flags.With(stage.Generated,
		nonEmptyDir(filepath.Join(location, CubeMXIncludeDir)) &&
			nonEmptyDir(filepath.Join(location, CubeMXSourceDir)))

	if err := ctx.Err(); err != nil {
		return stage.Report{}, err
	}

	iniPath := filepath.Join(location, PlatformIOINI)
	pioInit := regularFile(iniPath)
	flags = flags.With(stage.PIOInitialized, pioInit)

	if pioInit {
		patch := file.Project.PlatformIOINIPatchContent
		if patch == "" {
			patch = p.PatchContent
		}
		flags = flags.With(stage.Patched,
			iniContains(iniPath, patch) &&
				!exists(filepath.Join(location, PIOIncludeDir)) &&
				!exists(filepath.Join(location, PIOSourceDir)))
	}

	flags = flags.With(stage.Built, firmwarePresent(filepath.Join(location, filepath.FromSlash(PIOBuildDir))))

	return stage.Report{Flags: flags}, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func regularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func nonEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

func iniContains(path, patch string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	doc, err := pioini.Parse(string(data))
	if err != nil {
		slog.Debug("platformio.ini unparsable", slog.String("path", path), logfields.Error(err))
		return false
	}
	want, err := pioini.Parse(patch)
	if err != nil {
		slog.Warn("Invalid platformio.ini patch content", logfields.Error(err))
		return false
	}
	return doc.Contains(want)
}

func firmwarePresent(buildDir string) bool {
	envs, err := os.ReadDir(buildDir)
	if err != nil {
		return false
	}
	for _, env := range envs {
		if !env.IsDir() {
			continue
		}
		for _, name := range firmwareNames {
			if regularFile(filepath.Join(buildDir, env.Name(), name)) {
				return true
			}
		}
	}
	return false
}
