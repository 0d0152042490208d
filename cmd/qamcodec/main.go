package main

import (
	"os"

	"github.com/fatih/color"
	"gopkg.in/urfave/cli.v1"

	"github.com/dougsko/qamd/pkg/engine"
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "qamcodec"
	app.Usage = "QAM modulate, demodulate and compare files"
	app.Version = engine.Version
	app.Flags = []cli.Flag{
		configFlag,
		verboseFlag,
		logLevelFlag,
		noHistoryFlag,
	}
	app.Action = interactiveAction
	app.Commands = []cli.Command{
		modulateCommand,
		demodulateCommand,
		compareCommand,
		historyCommand,
		modesCommand,
		statusCommand,
		eventsCommand,
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
