package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/cubepio/internal/probe"
	"git.home.luguber.info/inful/cubepio/internal/stage"
)

// StatusCmd implements 'status'.
type StatusCmd struct {
	Path string `arg:"" type:"path" help:"Project directory"`
}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	report, err := probe.New(cfg.Project.PlatformIOINIPatchContent).Probe(context.Background(), s.Path)
	if err != nil {
		return err
	}
	w := out(g)
	if report.Invalid {
		fmt.Fprintf(w, "%s: invalid (no .ioc file)\n", s.Path)
		return nil
	}
	for _, st := range stage.All() {
		mark := " "
		if report.Flags.Has(st) {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %-16s %s\n", mark, stageTitle(st), st.Description())
	}
	fmt.Fprintf(w, "current: %s\n", stageTitle(report.Current()))
	return nil
}
