// Package projectconfig reads and writes the per-project configuration file
// (cubepio.toml) that records tool commands and project parameters next to the
// CubeMX source description.
package projectconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the project configuration file stored in each project directory.
const FileName = "cubepio.toml"

// IOCExtension is the extension of the CubeMX source description.
const IOCExtension = ".ioc"

// Default CubeMX script. Placeholders are expanded before the script is written.
const DefaultCubeMXScript = `config load ${ioc_file_absolute_path}
generate code ${project_dir_absolute_path}
exit`

// DefaultPlatformIOPatch is merged into platformio.ini so PlatformIO picks up
// the CubeMX folder layout.
const DefaultPlatformIOPatch = `[platformio]
include_dir = Inc
src_dir = Src`

// App lists the commands used to invoke external tools.
type App struct {
	PlatformIOCmd string `toml:"platformio_cmd" yaml:"platformio_cmd"`
	CubeMXCmd     string `toml:"cubemx_cmd" yaml:"cubemx_cmd"`
	JavaCmd       string `toml:"java_cmd" yaml:"java_cmd"`
}

// Project holds parameters of one concrete project.
type Project struct {
	Board                     string `toml:"board" yaml:"board"`
	IOCFile                   string `toml:"ioc_file" yaml:"ioc_file"`
	CubeMXScriptContent       string `toml:"cubemx_script_content" yaml:"cubemx_script_content"`
	PlatformIOINIPatchContent string `toml:"platformio_ini_patch_content" yaml:"platformio_ini_patch_content"`
	CleanupIgnore             string `toml:"cleanup_ignore" yaml:"cleanup_ignore"`
	CleanupUseGit             bool   `toml:"cleanup_use_git" yaml:"cleanup_use_git"`
}

// File is the on-disk shape of cubepio.toml.
type File struct {
	App     App     `toml:"app"`
	Project Project `toml:"project"`
}

// Path returns the config file path for a project directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Exists reports whether the project directory has a config file.
func Exists(dir string) bool {
	info, err := os.Stat(Path(dir))
	return err == nil && info.Mode().IsRegular()
}

// Load reads cubepio.toml from dir. A missing file yields a zero File and
// found=false without error.
func Load(dir string) (file File, found bool, err error) {
	data, err := os.ReadFile(Path(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return File{}, false, nil
	}
	if err != nil {
		return File{}, false, fmt.Errorf("config load failed (%s): %w", Path(dir), err)
	}
	if _, err := toml.Decode(string(data), &file); err != nil {
		return File{}, true, fmt.Errorf("config parse failed (%s): %w", Path(dir), err)
	}
	return file, true, nil
}

// Save writes the file atomically into dir.
func Save(dir string, file File) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(file); err != nil {
		return fmt.Errorf("encode project config: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+FileName+".*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write project config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close project config: %w", err)
	}
	if err := os.Rename(tmpName, Path(dir)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("install project config: %w", err)
	}
	return nil
}

// Merge layers src over dst: every non-empty string in src wins. Booleans in
// src win when set.
func Merge(dst, src File) File {
	pick := func(a, b string) string {
		if strings.TrimSpace(b) != "" {
			return b
		}
		return a
	}
	dst.App.PlatformIOCmd = pick(dst.App.PlatformIOCmd, src.App.PlatformIOCmd)
	dst.App.CubeMXCmd = pick(dst.App.CubeMXCmd, src.App.CubeMXCmd)
	dst.App.JavaCmd = pick(dst.App.JavaCmd, src.App.JavaCmd)
	dst.Project.Board = pick(dst.Project.Board, src.Project.Board)
	dst.Project.IOCFile = pick(dst.Project.IOCFile, src.Project.IOCFile)
	dst.Project.CubeMXScriptContent = pick(dst.Project.CubeMXScriptContent, src.Project.CubeMXScriptContent)
	dst.Project.PlatformIOINIPatchContent = pick(dst.Project.PlatformIOINIPatchContent, src.Project.PlatformIOINIPatchContent)
	dst.Project.CleanupIgnore = pick(dst.Project.CleanupIgnore, src.Project.CleanupIgnore)
	dst.Project.CleanupUseGit = dst.Project.CleanupUseGit || src.Project.CleanupUseGit
	return dst
}

// ApplyOverrides sets fields from "key=value" pairs. Keys may be qualified
// ("project.board") or bare ("board").
func ApplyOverrides(file File, pairs []string) (File, error) {
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return file, fmt.Errorf("invalid override %q: expected key=value", pair)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		key = strings.TrimPrefix(strings.TrimPrefix(key, "project."), "app.")
		value = strings.TrimSpace(value)

		switch key {
		case "platformio_cmd":
			file.App.PlatformIOCmd = value
		case "cubemx_cmd":
			file.App.CubeMXCmd = value
		case "java_cmd":
			file.App.JavaCmd = value
		case "board":
			file.Project.Board = value
		case "ioc_file":
			file.Project.IOCFile = value
		case "cubemx_script_content":
			file.Project.CubeMXScriptContent = value
		case "platformio_ini_patch_content":
			file.Project.PlatformIOINIPatchContent = value
		case "cleanup_ignore":
			file.Project.CleanupIgnore = value
		case "cleanup_use_git":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return file, fmt.Errorf("invalid override %q: %w", pair, err)
			}
			file.Project.CleanupUseGit = b
		default:
			return file, fmt.Errorf("unknown config key %q", key)
		}
	}
	return file, nil
}

// ResolveIOC locates the CubeMX source description of the project in dir.
// A configured ioc_file takes precedence; otherwise the first *.ioc in
// lexical order is used. It returns fs.ErrNotExist when none is present.
func ResolveIOC(dir string, project Project) (string, error) {
	if project.IOCFile != "" {
		p := project.IOCFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		info, err := os.Stat(p)
		if err != nil {
			return "", err
		}
		if !info.Mode().IsRegular() {
			return "", fmt.Errorf("%s is not a regular file: %w", p, fs.ErrNotExist)
		}
		return p, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var candidates []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), IOCExtension) {
			candidates = append(candidates, e.Name())
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no %s file in %s: %w", IOCExtension, dir, fs.ErrNotExist)
	}
	sort.Strings(candidates)
	return filepath.Join(dir, candidates[0]), nil
}
