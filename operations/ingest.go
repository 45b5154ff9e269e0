package operations

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/evergreen-ci/larch"
	"github.com/evergreen-ci/larch/ingest"
	"github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/perf"
	"github.com/evergreen-ci/larch/rest"
	restmodel "github.com/evergreen-ci/larch/rest/model"
	"github.com/evergreen-ci/larch/util"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const (
	retryInitialInterval = 100 * time.Millisecond
	retryMaxInterval     = 2 * time.Second
)

// Ingest returns the ingest sub-command, which records the results of one
// benchmark run and reports regressions against the suite's history.
func Ingest() cli.Command {
	return cli.Command{
		Name:  "ingest",
		Usage: "record one benchmark run and check it for regressions",
		Flags: addOutputPath(ingestFlags()...),
		Before: mergeBeforeFuncs(
			requireStringFlag(suiteFlag),
			requireStringFlag(benchesFlag),
			requireStringFlag(commitFlag),
			requireFileExists(benchesFlag),
			requireFileExists(commitFlag),
			requireNonNegativeInt(retriesFlag),
		),
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			suite := c.String(suiteFlag)
			entry, err := buildEntry(c.String(benchesFlag), c.String(commitFlag), c.String(toolFlag), c.String(dateFlag))
			if err != nil {
				return errors.WithStack(err)
			}

			var resp *restmodel.APIIngestResponse
			if url := c.String(serviceFlag); url != "" {
				if c.Bool(dryRunFlag) {
					return errors.New("dry runs are not supported against a remote service")
				}
				resp, err = ingestRemote(ctx, url, suite, entry, c.Bool(backfillFlag))
			} else {
				err = withEnvironment(ctx, c, func(env larch.Environment) error {
					var store *model.HistoryStore
					var verdicts []perf.RegressionVerdict
					var ierr error
					if c.Bool(dryRunFlag) {
						store, verdicts, ierr = env.GetIngestService().Check(ctx, suite, entry)
					} else {
						store, verdicts, ierr = ingestWithRetry(ctx, env.GetIngestService(), suite, entry,
							ingest.Options{Backfill: c.Bool(backfillFlag)}, c.Int(retriesFlag))
					}
					if ierr != nil {
						return errors.WithStack(ierr)
					}

					resp, ierr = restmodel.NewAPIIngestResponse(store, verdicts)
					return errors.WithStack(ierr)
				})
			}
			if err != nil {
				return errors.Wrapf(err, "problem ingesting results for suite '%s'", suite)
			}

			grip.Info(message.Fields{
				"message":     "ingested benchmark results",
				"suite":       suite,
				"commit":      entry.Commit.ID,
				"date":        entry.Date,
				"dry_run":     c.Bool(dryRunFlag),
				"regressions": resp.Regressions,
				"failing":     resp.Failing,
			})

			if err = withOutput(c.String(outputFlag), func(w io.Writer) error {
				return renderIngestResponse(w, resp)
			}); err != nil {
				return errors.WithStack(err)
			}

			if resp.Failing {
				return errors.Errorf("%d measurements of suite '%s' regressed beyond the failure threshold", resp.Regressions, suite)
			}
			return nil
		},
	}
}

// buildEntry assembles an entry from the measurement and commit files.
func buildEntry(benchesPath, commitPath, tool, date string) (model.Entry, error) {
	benches, err := readBenches(benchesPath)
	if err != nil {
		return model.Entry{}, errors.WithStack(err)
	}

	commit, err := readCommit(commitPath)
	if err != nil {
		return model.Entry{}, errors.WithStack(err)
	}

	ts, err := util.ParseDate(date)
	if err != nil {
		return model.Entry{}, errors.WithStack(err)
	}

	return model.Entry{
		Commit:  commit,
		Date:    ts,
		Tool:    tool,
		Benches: benches,
	}, nil
}

type ingester interface {
	Ingest(context.Context, string, model.Entry, ingest.Options) (*model.HistoryStore, []perf.RegressionVerdict, error)
}

// ingestWithRetry retries ingestions that lost a race with a concurrent
// writer, up to retries times. Every other failure is returned at once.
func ingestWithRetry(ctx context.Context, svc ingester, suite string, entry model.Entry, opts ingest.Options, retries int) (*model.HistoryStore, []perf.RegressionVerdict, error) {
	var (
		store    *model.HistoryStore
		verdicts []perf.RegressionVerdict
		attempt  int
	)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.MaxInterval = retryMaxInterval

	err := backoff.Retry(func() error {
		attempt++

		var err error
		store, verdicts, err = svc.Ingest(ctx, suite, entry, opts)
		if err == nil {
			return nil
		}
		if !model.IsConcurrentModification(err) {
			return backoff.Permanent(err)
		}

		grip.Notice(message.WrapError(err, message.Fields{
			"message": "suite changed during ingestion",
			"suite":   suite,
			"attempt": attempt,
			"retries": retries,
		}))
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx))
	if err != nil {
		return nil, nil, err
	}

	return store, verdicts, nil
}

func ingestRemote(ctx context.Context, url, suite string, entry model.Entry, backfill bool) (*restmodel.APIIngestResponse, error) {
	client, err := rest.NewClientFromURL(url)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer client.Close()

	resp, err := client.IngestEntry(ctx, suite, entry, backfill)
	return resp, errors.WithStack(err)
}
