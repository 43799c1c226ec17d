package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/cubepio/internal/store"
)

// HistoryCmd implements 'history'.
type HistoryCmd struct {
	Path  string `arg:"" type:"path" help:"Project directory"`
	Limit int    `short:"n" help:"Show only the newest N events (0 = all)" default:"50"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Daemon.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	loc, err := filepath.Abs(h.Path)
	if err != nil {
		return err
	}
	records, err := st.History(context.Background(), filepath.Clean(loc), h.Limit)
	if err != nil {
		return err
	}
	w := out(g)
	if len(records) == 0 {
		fmt.Fprintf(w, "no recorded events for %s (is daemon.record_events enabled?)\n", loc)
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(w, "%s  %-16s %s\n", r.At.Format("2006-01-02 15:04:05.000"), r.Kind, r.Payload)
	}
	return nil
}
