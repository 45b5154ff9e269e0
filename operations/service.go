package operations

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/evergreen-ci/larch"
	"github.com/evergreen-ci/larch/rest"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Service returns the ./larch service sub-command object, which is
// responsible for starting the REST service.
func Service() cli.Command {
	return cli.Command{
		Name:  "service",
		Usage: "run the larch api service",
		Flags: serviceFlags(),
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return withEnvironment(ctx, c, func(env larch.Environment) error {
				service := &rest.Service{
					Environment: env,
					Port:        c.Int(portFlag),
					Prefix:      c.String(prefixFlag),
				}

				if err := service.Validate(); err != nil {
					return errors.Wrap(err, "problem validating service")
				}

				grip.Notice(message.Fields{
					"message": "starting larch service",
					"port":    service.Port,
					"prefix":  service.Prefix,
					"storage": env.GetConf().Storage.Type,
				})

				if err := service.Start(ctx); err != nil {
					return errors.Wrap(err, "problem running service")
				}

				grip.Info("completed service, terminating.")
				return nil
			})
		},
	}
}
