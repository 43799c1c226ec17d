package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/cubepio/cmd/cubepio/commands"
	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("cubepio"),
		kong.Description("Drive STM32CubeMX and PlatformIO projects through their build stages."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	global := &commands.Global{Out: os.Stdout}
	if err := ctx.Run(global, &cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
	}
}
