package commands

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/cubepio/internal/events"
	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/project"
)

// RunCmd implements 'run'.
type RunCmd struct {
	Path    string        `arg:"" type:"path" help:"Project directory"`
	Action  string        `arg:"" help:"Action name (see 'cubepio actions')"`
	Args    []string      `arg:"" optional:"" help:"Action arguments, e.g. board=nucleo_f031k6"`
	Timeout time.Duration `help:"Give up waiting for the action after this long" default:"30m"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(g, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = rt.close() }()

	ch, unsub := events.Subscribe[events.ProjectEvent](rt.bus, 256)
	defer unsub()

	index, err := rt.registry.Add(r.Path)
	if err != nil {
		return err
	}
	h, err := rt.registry.Get(index)
	if err != nil {
		return err
	}

	w := out(g)
	timeout := time.After(r.Timeout)
	started := false
	var result *events.ActionResult
	for {
		select {
		case <-timeout:
			return ferrors.ActionError("timed out waiting for action").
				WithContext("action", r.Action).
				Build()
		case evt, ok := <-ch:
			if !ok {
				return project.ErrClosed
			}
			if evt.ProjectID() != h.ID() {
				continue
			}
			switch e := evt.(type) {
			case events.NameResolved:
				if e.Invalid {
					return project.ErrInvalidProject.WithContext("location", r.Path)
				}
				if err := h.Run(r.Action, r.Args...); err != nil {
					return err
				}
				started = true
			case events.LogAppended:
				fmt.Fprintln(w, e.Line)
			case events.ActionResult:
				result = &e
			case events.StageChanged:
				// The post-action probe follows the result.
				if started && result != nil {
					fmt.Fprintf(w, "stage: %s\n", stageTitle(e.Current))
					return resultError(result)
				}
			}
		}
	}
}

func resultError(res *events.ActionResult) error {
	if res.Success {
		return nil
	}
	return ferrors.ActionError("action failed").
		WithContext("action", res.Action).
		WithContext("error", res.Error).
		Build()
}

// ActionsCmd implements 'actions'.
type ActionsCmd struct{}

func (a *ActionsCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(g, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = rt.close() }()
	for _, name := range rt.executor.Names() {
		fmt.Fprintln(out(g), name)
	}
	return nil
}
