package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/cubepio/internal/project"
)

const loadTimeout = 30 * time.Second

// AddCmd implements 'add'.
type AddCmd struct {
	Path string `arg:"" type:"path" help:"Project directory"`
}

func (a *AddCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(g, cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = rt.close() }()

	index, err := rt.registry.Add(a.Path)
	if err != nil {
		return err
	}
	snaps, err := rt.waitLoaded(loadTimeout)
	if err != nil {
		return err
	}
	s := snaps[index]
	if s.Invalid {
		fmt.Fprintf(out(g), "added %s (#%d), but no .ioc file was found\n", s.Location, index)
		return nil
	}
	fmt.Fprintf(out(g), "added %s (#%d), stage %s\n", s.DisplayName, index, stageTitle(s.Current))
	return nil
}

// RemoveCmd implements 'remove'.
type RemoveCmd struct {
	Path string `arg:"" type:"path" help:"Project directory"`
}

func (r *RemoveCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(g, cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = rt.close() }()

	h, err := rt.registry.Find(r.Path)
	if err != nil {
		return err
	}
	if err := rt.registry.RemoveID(h.ID()); err != nil {
		return err
	}
	fmt.Fprintf(out(g), "removed %s\n", r.Path)
	return nil
}

// ListCmd implements 'list'.
type ListCmd struct{}

func (l *ListCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(g, cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = rt.close() }()

	snaps, err := rt.waitLoaded(loadTimeout)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(out(g), "no projects")
		return nil
	}
	tw := tabwriter.NewWriter(out(g), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tSTAGE\tLOCATION")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Index, s.DisplayName, describeState(s), s.Location)
	}
	return tw.Flush()
}

func describeState(s project.Snapshot) string {
	switch {
	case s.Invalid:
		return "invalid"
	case s.Loading:
		return "loading"
	default:
		return stageTitle(s.Current)
	}
}
