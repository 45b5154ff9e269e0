package main

import (
	"os"

	"github.com/evergreen-ci/larch/operations"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func main() {
	// the command line interface is managed by the cli package; this,
	// plus the configuration in buildApp(), is all that's necessary
	// for bootstrapping the environment.
	app := buildApp()
	err := app.Run(os.Args)
	grip.EmergencyFatal(err)
}

func buildApp() *cli.App {
	app := cli.NewApp()

	app.Name = "larch"
	app.Usage = "benchmark history and regression detection"
	app.Version = "0.1.0"

	app.Commands = []cli.Command{
		operations.Ingest(),
		operations.Suites(),
		operations.Series(),
		operations.ChangePoints(),
		operations.Verify(),
		operations.Service(),
		operations.Status(),
		operations.Config(),
	}

	// These are global options. Use this to configure logging, storage
	// or other options independent from specific sub commands.
	app.Flags = operations.GlobalFlags()

	app.Before = func(c *cli.Context) error {
		return errors.WithStack(loggingSetup(app.Name, c.String("level")))
	}

	return app
}

// logging setup is separate to make it unit testable
func loggingSetup(name, logLevel string) error {
	sender := grip.GetSender()
	sender.SetName(name)

	lvl := sender.Level()
	lvl.Threshold = level.FromString(logLevel)
	return errors.WithStack(sender.SetLevel(lvl))
}
