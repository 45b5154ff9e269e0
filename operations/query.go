package operations

import (
	"context"
	"fmt"
	"io"

	"github.com/evergreen-ci/larch"
	dbmodel "github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/query"
	"github.com/evergreen-ci/larch/rest"
	"github.com/evergreen-ci/larch/rest/data"
	restmodel "github.com/evergreen-ci/larch/rest/model"
	"github.com/evergreen-ci/larch/util"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// suiteReader is the read side shared by local storage and a remote
// service.
type suiteReader interface {
	FindSuites(context.Context) ([]restmodel.APISuiteSummary, error)
	FindSuite(context.Context, string) (*restmodel.APISuiteSummary, error)
	FindSeries(context.Context, string, string, query.PointOptions) ([]restmodel.APIPoint, error)
	FindChangePoints(context.Context, string, string) ([]restmodel.APIChangePoint, error)
}

type remoteReader struct {
	client *rest.Client
}

func (r *remoteReader) FindSuites(ctx context.Context) ([]restmodel.APISuiteSummary, error) {
	return r.client.GetSuites(ctx)
}

func (r *remoteReader) FindSuite(ctx context.Context, suite string) (*restmodel.APISuiteSummary, error) {
	return r.client.GetSuite(ctx, suite)
}

func (r *remoteReader) FindSeries(ctx context.Context, suite, name string, opts query.PointOptions) ([]restmodel.APIPoint, error) {
	return r.client.GetSeries(ctx, suite, name, opts)
}

func (r *remoteReader) FindChangePoints(ctx context.Context, suite, name string) ([]restmodel.APIChangePoint, error) {
	return r.client.GetChangePoints(ctx, suite, name)
}

// withReader runs op against the service named by --service, or against
// the configured storage.
func withReader(ctx context.Context, c *cli.Context, op func(suiteReader) error) error {
	if url := c.String(serviceFlag); url != "" {
		client, err := rest.NewClientFromURL(url)
		if err != nil {
			return errors.WithStack(err)
		}
		defer client.Close()

		return op(&remoteReader{client: client})
	}

	return withEnvironment(ctx, c, func(env larch.Environment) error {
		return op(data.CreateDBConnector(env))
	})
}

// Suites returns the suites sub-command, which lists every suite or
// describes one.
func Suites() cli.Command {
	return cli.Command{
		Name:  "suites",
		Usage: "list the benchmark suites, or describe one with --suite",
		Flags: addOutputPath(remoteServiceFlags(suiteFlags()...)...),
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			return withReader(ctx, c, func(r suiteReader) error {
				if suite := c.String(suiteFlag); suite != "" {
					summary, err := r.FindSuite(ctx, suite)
					if err != nil {
						return errors.Wrapf(err, "problem finding suite '%s'", suite)
					}
					return withOutput(c.String(outputFlag), func(w io.Writer) error {
						renderSuite(w, summary)
						return nil
					})
				}

				suites, err := r.FindSuites(ctx)
				if err != nil {
					return errors.Wrap(err, "problem listing suites")
				}
				return withOutput(c.String(outputFlag), func(w io.Writer) error {
					renderSuites(w, suites)
					return nil
				})
			})
		},
	}
}

// Series returns the series sub-command, which prints the data points of
// one measurement.
func Series() cli.Command {
	return cli.Command{
		Name:  "series",
		Usage: "print the data points of one measurement",
		Flags: addOutputPath(remoteServiceFlags(mergeFlags(
			measurementFlags(),
			[]cli.Flag{
				cli.IntFlag{
					Name:  limitFlag,
					Usage: "keep only the most recent points; zero keeps all of them",
				},
				cli.StringFlag{
					Name:  afterFlag,
					Usage: "keep points recorded at or after this time, as unix milliseconds or RFC 3339",
				},
				cli.StringFlag{
					Name:  beforeFlag,
					Usage: "keep points recorded at or before this time, as unix milliseconds or RFC 3339",
				},
			},
		)...)...),
		Before: mergeBeforeFuncs(
			requireStringFlag(suiteFlag),
			requireStringFlag(nameFlag),
			requireNonNegativeInt(limitFlag),
		),
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			opts, err := seriesOptions(c.Int(limitFlag), c.String(afterFlag), c.String(beforeFlag))
			if err != nil {
				return errors.WithStack(err)
			}

			suite, name := c.String(suiteFlag), c.String(nameFlag)
			return withReader(ctx, c, func(r suiteReader) error {
				points, err := r.FindSeries(ctx, suite, name, opts)
				if err != nil {
					return errors.Wrapf(err, "problem finding series '%s' of suite '%s'", name, suite)
				}
				return withOutput(c.String(outputFlag), func(w io.Writer) error {
					renderSeries(w, points)
					return nil
				})
			})
		},
	}
}

func seriesOptions(limit int, after, before string) (query.PointOptions, error) {
	opts := query.PointOptions{Limit: limit}

	var err error
	if after != "" {
		if opts.Range.After, err = util.ParseDate(after); err != nil {
			return opts, errors.WithStack(err)
		}
	}
	if before != "" {
		if opts.Range.Before, err = util.ParseDate(before); err != nil {
			return opts, errors.WithStack(err)
		}
	}
	if !opts.Range.IsValid() {
		return opts, errors.Errorf("'--%s' must not be later than '--%s'", afterFlag, beforeFlag)
	}

	return opts, nil
}

// ChangePoints returns the changepoints sub-command, which runs change
// point detection over the full series of one measurement.
func ChangePoints() cli.Command {
	return cli.Command{
		Name:  "changepoints",
		Usage: "detect the points at which a measurement shifted",
		Flags: addOutputPath(remoteServiceFlags(measurementFlags()...)...),
		Before: mergeBeforeFuncs(
			requireStringFlag(suiteFlag),
			requireStringFlag(nameFlag),
		),
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			suite, name := c.String(suiteFlag), c.String(nameFlag)
			return withReader(ctx, c, func(r suiteReader) error {
				changePoints, err := r.FindChangePoints(ctx, suite, name)
				if err != nil {
					return errors.Wrapf(err, "problem detecting change points of '%s' in suite '%s'", name, suite)
				}
				return withOutput(c.String(outputFlag), func(w io.Writer) error {
					return renderChangePoints(w, changePoints)
				})
			})
		},
	}
}

// Verify returns the verify sub-command, which loads every suite of the
// configured document and reports corruption.
func Verify() cli.Command {
	return cli.Command{
		Name:  "verify",
		Usage: "check that the benchmark document is readable",
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			return withEnvironment(ctx, c, func(env larch.Environment) error {
				return verifyDocument(ctx, env.GetRepository(), c.App.Writer)
			})
		},
	}
}

func verifyDocument(ctx context.Context, repo *dbmodel.Repository, w io.Writer) error {
	stores, err := repo.LoadAll(ctx)
	if err != nil {
		if dbmodel.IsCorruptStore(err) {
			grip.Error(message.WrapError(err, message.Fields{
				"message": "benchmark document is corrupt",
			}))
		}
		return errors.Wrap(err, "problem verifying benchmark document")
	}

	summaries := make([]restmodel.APISuiteSummary, 0, len(stores))
	for _, store := range stores {
		summary := restmodel.APISuiteSummary{}
		if err = summary.Import(store); err != nil {
			return errors.WithStack(err)
		}
		summaries = append(summaries, summary)
	}

	renderSuites(w, summaries)
	_, err = fmt.Fprintf(w, "%d suites verified\n", len(stores))
	return errors.WithStack(err)
}
