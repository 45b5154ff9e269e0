package operations

import (
	"context"
	"fmt"
	"io"

	"github.com/evergreen-ci/larch/rest"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Status returns the status sub-command, which prints the status of a
// running service.
func Status() cli.Command {
	return cli.Command{
		Name:   "status",
		Usage:  "print the status of a running larch service",
		Flags:  remoteServiceFlags(),
		Before: requireStringFlag(serviceFlag),
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			client, err := rest.NewClientFromURL(c.String(serviceFlag))
			if err != nil {
				return errors.Wrap(err, "problem creating REST client")
			}
			defer client.Close()

			status, err := client.GetStatus(ctx)
			if err != nil {
				return errors.Wrap(err, "problem getting status")
			}
			grip.Debug(status)

			return printStatus(c.App.Writer, status)
		},
	}
}

func printStatus(w io.Writer, status *rest.StatusResponse) error {
	table := newTable(w, "Revision", "Storage", "Running", "Pending", "Completed", "Total")
	table.Append([]string{
		status.Revision,
		string(status.Storage),
		fmt.Sprint(status.Queue.Running),
		fmt.Sprint(status.Queue.Pending),
		fmt.Sprint(status.Queue.Completed),
		fmt.Sprint(status.Queue.Total),
	})
	table.Render()
	return nil
}
