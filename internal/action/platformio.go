package action

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/pioini"
	"git.home.luguber.info/inful/cubepio/internal/probe"
	"git.home.luguber.info/inful/cubepio/internal/projectconfig"
)

// pioInit runs "platformio project init" for the board given as the first
// argument, or the configured one.
func pioInit(ctx context.Context, env *Env) error {
	cfg, err := env.Settings()
	if err != nil {
		return err
	}
	board := cfg.Project.Board
	if len(env.Args) > 0 && strings.TrimSpace(env.Args[0]) != "" {
		board = strings.TrimSpace(env.Args[0])
	}
	if board == "" {
		return ferrors.ActionError("no PlatformIO board specified").
			WithContext("hint", "pass a board or set project.board").
			Build()
	}
	return env.run(ctx, Command{
		Name: cfg.App.PlatformIOCmd,
		Args: []string{"project", "init", "-d", env.Location, "-b", board, "-O", "framework=stm32cube", "-s"},
		Dir:  env.Location,
	})
}

// patch merges the configured INI patch into platformio.ini and removes the
// default PlatformIO source folders so the CubeMX layout is used.
func patch(_ context.Context, env *Env) error {
	cfg, err := env.Settings()
	if err != nil {
		return err
	}
	iniPath := filepath.Join(env.Location, probe.PlatformIOINI)
	data, err := os.ReadFile(iniPath)
	if errors.Is(err, fs.ErrNotExist) {
		return ferrors.ActionError("platformio.ini not found, run pio_init first").Build()
	}
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot read platformio.ini").Build()
	}

	doc, err := pioini.Parse(string(data))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryAction, "cannot parse platformio.ini").Build()
	}
	content := cfg.Project.PlatformIOINIPatchContent
	if strings.TrimSpace(content) == "" {
		content = projectconfig.DefaultPlatformIOPatch
	}
	want, err := pioini.Parse(content)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid platformio.ini patch content").Build()
	}

	if doc.Contains(want) {
		env.Warn("platformio.ini already patched")
	} else {
		doc.Merge(want)
		if err := writeFileAtomic(iniPath, []byte(doc.String())); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot write platformio.ini").Build()
		}
		env.Log("platformio.ini patched")
	}

	for _, name := range []string{probe.PIOIncludeDir, probe.PIOSourceDir} {
		p := filepath.Join(env.Location, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot remove default folder").
				WithContext("path", p).
				Build()
		}
		env.Log("removed default folder %s", name)
	}
	return nil
}

func build(ctx context.Context, env *Env) error {
	cfg, err := env.Settings()
	if err != nil {
		return err
	}
	return env.run(ctx, Command{
		Name: cfg.App.PlatformIOCmd,
		Args: []string{"run", "-d", env.Location},
		Dir:  env.Location,
	})
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}
