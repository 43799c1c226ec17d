package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/cubepio/internal/action"
	"git.home.luguber.info/inful/cubepio/internal/config"
	"git.home.luguber.info/inful/cubepio/internal/events"
	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/probe"
	"git.home.luguber.info/inful/cubepio/internal/project"
	"git.home.luguber.info/inful/cubepio/internal/stage"
	"git.home.luguber.info/inful/cubepio/internal/store"
)

// Global is shared by every command.
type Global struct {
	Out io.Writer
	// Runner overrides the tool runner; tests inject a fake.
	Runner action.ToolRunner
}

// CLI is the root command.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"cubepio.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	InitConfig InitConfigCmd `cmd:"" name:"init-config" help:"Write a default configuration file"`
	Add        AddCmd        `cmd:"" help:"Add a project directory to the persisted project list"`
	Remove     RemoveCmd     `cmd:"" help:"Remove a project directory from the persisted project list"`
	List       ListCmd       `cmd:"" help:"List persisted projects with their current stage"`
	Status     StatusCmd     `cmd:"" help:"Probe a project directory and print its stages"`
	Actions    ActionsCmd    `cmd:"" help:"List the available actions"`
	Run        RunCmd        `cmd:"" help:"Run an action on a project and stream its output"`
	History    HistoryCmd    `cmd:"" help:"Show recorded events of a persisted project"`
	Serve      ServeCmd      `cmd:"" help:"Run the project daemon until interrupted"`
}

// AfterApply installs a stderr logger until the configuration picks the final one.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig reads the configuration (defaults when the file is missing) and
// reconfigures logging from it.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, found, err := config.LoadOptional(c.Config)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.Logging.NewLogger(os.Stderr, c.Verbose))
	if !found {
		slog.Debug("Configuration file not found, using defaults", "path", c.Config)
	}
	return cfg, nil
}

func out(g *Global) io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// runtime is a short-lived registry for one command invocation.
type runtime struct {
	bus      *events.Bus
	executor *action.Executor
	registry *project.Registry
	store    *store.Store
}

func newRuntime(g *Global, cfg *config.Config, persistent bool) (*runtime, error) {
	rt := &runtime{bus: events.NewBus()}
	var execOpts []action.Option
	if g != nil && g.Runner != nil {
		execOpts = append(execOpts, action.WithRunner(g.Runner))
	}
	rt.executor = action.NewExecutor(cfg.ProjectDefaults(), execOpts...)

	var regOpts []project.Option
	if persistent {
		st, err := store.Open(cfg.Daemon.StorePath)
		if err != nil {
			return nil, err
		}
		rt.store = st
		regOpts = append(regOpts, project.WithPersister(st))
	}
	rt.registry = project.NewRegistry(probe.New(cfg.Project.PlatformIOINIPatchContent), rt.executor, rt.bus, regOpts...)

	if rt.store != nil {
		locations, err := rt.store.LoadProjects(context.Background())
		if err != nil {
			_ = rt.close()
			return nil, err
		}
		for _, loc := range locations {
			if _, err := rt.registry.AddFromStartup(loc); err != nil {
				slog.Warn("Skipping stored project", "location", loc, "error", err)
			}
		}
	}
	return rt, nil
}

func (rt *runtime) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := rt.registry.Close(ctx)
	rt.bus.Close()
	if rt.store != nil {
		if serr := rt.store.Close(); err == nil {
			err = serr
		}
	}
	return err
}

// waitLoaded blocks until no project is loading any more.
func (rt *runtime) waitLoaded(timeout time.Duration) ([]project.Snapshot, error) {
	deadline := time.Now().Add(timeout)
	for {
		snaps := rt.registry.Snapshots()
		loading := false
		for _, s := range snaps {
			loading = loading || s.Loading
		}
		if !loading {
			return snaps, nil
		}
		if time.Now().After(deadline) {
			return nil, ferrors.RuntimeError("timed out waiting for projects to load").Build()
		}
		time.Sleep(10 * time.Millisecond)
	}
}

var titleCaser = cases.Title(language.English)

// stageTitle renders a stage name for humans: "pio_initialized" becomes "Pio Initialized".
func stageTitle(s stage.Stage) string {
	return titleCaser.String(strings.ReplaceAll(s.String(), "_", " "))
}
