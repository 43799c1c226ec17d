package action

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/denormal/go-gitignore"
	"github.com/go-git/go-git/v5"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/projectconfig"
)

// clean restores the project directory to its sources. With cleanup_use_git
// the untracked files of the repository are removed; otherwise everything
// except the .ioc file, cubepio.toml, .git and entries matching cleanup_ignore
// (gitignore syntax, one pattern per line) is deleted.
func clean(_ context.Context, env *Env) error {
	cfg, err := env.Settings()
	if err != nil {
		return err
	}
	dir, err := filepath.Abs(env.Location)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot resolve project directory").Build()
	}
	ioc, err := projectconfig.ResolveIOC(dir, cfg.Project)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryAction, "refusing to clean a directory without a CubeMX project file").Build()
	}

	if cfg.Project.CleanupUseGit {
		return gitClean(env, dir, filepath.Base(ioc))
	}

	c := &cleaner{
		root: dir,
		keep: map[string]bool{
			filepath.Base(ioc):     true,
			projectconfig.FileName: true,
			".git":                 true,
		},
		env: env,
	}
	if patterns := strings.TrimSpace(cfg.Project.CleanupIgnore); patterns != "" {
		c.ignore = gitignore.New(strings.NewReader(patterns), dir, nil)
	}
	if err := c.cleanDir(""); err != nil {
		return err
	}
	env.Log("cleaned %d entries", c.removed)
	return nil
}

type cleaner struct {
	root    string
	keep    map[string]bool
	ignore  gitignore.GitIgnore
	env     *Env
	removed int
}

func (c *cleaner) kept(rel string, isDir bool) bool {
	if c.keep[rel] {
		return true
	}
	if c.ignore == nil {
		return false
	}
	match := c.ignore.Relative(rel, isDir)
	return match != nil && match.Ignore()
}

// cleanDir removes every entry below rel that is not kept. Directories that
// still hold kept entries survive.
func (c *cleaner) cleanDir(rel string) error {
	entries, err := os.ReadDir(filepath.Join(c.root, rel))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot list directory").
			WithContext("path", rel).
			Build()
	}
	for _, e := range entries {
		child := filepath.Join(rel, e.Name())
		if c.kept(child, e.IsDir()) {
			continue
		}
		full := filepath.Join(c.root, child)
		if e.IsDir() {
			if err := c.cleanDir(child); err != nil {
				return err
			}
			if rest, err := os.ReadDir(full); err != nil || len(rest) > 0 {
				continue
			}
		}
		if err := os.Remove(full); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot remove entry").
				WithContext("path", child).
				Build()
		}
		c.removed++
		c.env.Log("removed %s", child)
	}
	return nil
}

// gitClean removes untracked files. It refuses while the .ioc or cubepio.toml
// is untracked, since removing either would leave an invalid project.
func gitClean(env *Env, dir, iocName string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGit, "project directory is not a git repository root").Build()
	}
	wt, err := repo.Worktree()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGit, "cannot open worktree").Build()
	}

	status, err := wt.Status()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGit, "cannot read worktree status").Build()
	}
	var untracked []string
	for path, s := range status {
		if s.Worktree == git.Untracked {
			untracked = append(untracked, path)
		}
	}
	sort.Strings(untracked)

	var uncommitted []string
	for _, name := range []string{iocName, projectconfig.FileName} {
		if s, ok := status[name]; ok && s.Worktree == git.Untracked {
			uncommitted = append(uncommitted, name)
		}
	}
	if len(uncommitted) > 0 {
		env.Warn("refusing git clean: %s not committed", strings.Join(uncommitted, ", "))
		return ferrors.GitError("project files are untracked; commit them or disable cleanup_use_git").
			WithContext("files", strings.Join(uncommitted, ",")).
			Build()
	}

	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGit, "git clean failed").Build()
	}
	for _, p := range untracked {
		env.Log("removed %s", p)
	}
	env.Log("git clean removed %d untracked entries", len(untracked))
	return nil
}
