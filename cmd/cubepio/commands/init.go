package commands

import (
	"fmt"

	"git.home.luguber.info/inful/cubepio/internal/config"
)

// InitConfigCmd implements 'init-config'.
type InitConfigCmd struct {
	Force bool `help:"Overwrite an existing configuration file"`
}

func (i *InitConfigCmd) Run(g *Global, root *CLI) error {
	w := out(g)
	fmt.Fprintf(w, "Writing configuration to %s\n", root.Config)
	if err := config.Init(root.Config, i.Force); err != nil {
		fmt.Fprintln(w, "Initialization failed")
		return err
	}
	fmt.Fprintln(w, "initialized successfully")
	return nil
}
