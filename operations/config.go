package operations

import (
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Config returns the config sub-command, which prints the effective
// configuration after defaults and flag overrides are applied.
func Config() cli.Command {
	return cli.Command{
		Name:  "config",
		Usage: "print the effective larch configuration as YAML",
		Flags: addOutputPath(),
		Action: func(c *cli.Context) error {
			conf, err := configureFromContext(c)
			if err != nil {
				return errors.WithStack(err)
			}

			out, err := conf.Export()
			if err != nil {
				return errors.WithStack(err)
			}

			return withOutput(c.String(outputFlag), func(w io.Writer) error {
				_, err := w.Write(out)
				return errors.WithStack(err)
			})
		},
	}
}
