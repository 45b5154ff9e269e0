package units

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evergreen-ci/larch/ingest"
	"github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/perf"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/dependency"
	"github.com/mongodb/amboy/job"
	"github.com/mongodb/amboy/registry"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const ingestEntryJobName = "ingest-benchmark-entry"

// IngestEntryJob records one benchmark entry through an ingest.Service.
// Running ingestion as a job on a single-worker queue serializes writers
// within the process.
type IngestEntryJob struct {
	*job.Base `bson:"metadata" json:"metadata" yaml:"metadata"`
	Suite     string      `bson:"suite" json:"suite" yaml:"suite"`
	Entry     model.Entry `bson:"entry" json:"entry" yaml:"entry"`
	Backfill  bool        `bson:"backfill" json:"backfill" yaml:"backfill"`

	service   *ingest.Service
	result    IngestResult
	started   bool
	abandoned bool
	mu        sync.Mutex
}

// IngestResult is the outcome of a completed ingestion.
type IngestResult struct {
	Store    *model.HistoryStore
	Verdicts []perf.RegressionVerdict
	Err      error
}

func init() {
	registry.AddJobType(ingestEntryJobName, func() amboy.Job { return makeIngestEntryJob() })
}

func makeIngestEntryJob() *IngestEntryJob {
	j := &IngestEntryJob{
		Base: &job.Base{
			JobType: amboy.JobType{
				Name:    ingestEntryJobName,
				Version: 1,
			},
		},
	}
	j.SetDependency(dependency.NewAlways())
	return j
}

// NewIngestEntryJob returns a job that ingests entry into suite.
func NewIngestEntryJob(service *ingest.Service, suite string, entry model.Entry, backfill bool) *IngestEntryJob {
	j := makeIngestEntryJob()
	j.SetID(fmt.Sprintf("%s.%s.%s.%d.%s", j.JobType.Name, suite, entry.Commit.ID, entry.Date, utility.RandomString()))
	j.Suite = suite
	j.Entry = entry
	j.Backfill = backfill
	j.service = service
	return j
}

func (j *IngestEntryJob) Run(ctx context.Context) {
	defer j.MarkComplete()

	if j.service == nil {
		err := errors.New("ingest job has no service")
		j.AddError(err)
		j.setResult(IngestResult{Err: err})
		return
	}

	if !j.start() {
		err := errors.Errorf("ingestion into suite '%s' was abandoned before it started", j.Suite)
		j.AddError(err)
		j.setResult(IngestResult{Err: err})
		return
	}

	store, verdicts, err := j.service.Ingest(ctx, j.Suite, j.Entry, ingest.Options{Backfill: j.Backfill})
	if err != nil {
		grip.Debug(message.WrapError(err, message.Fields{
			"message": "ingest job failed",
			"job_id":  j.ID(),
			"suite":   j.Suite,
		}))
		j.AddError(err)
	}

	j.setResult(IngestResult{Store: store, Verdicts: verdicts, Err: err})
}

func (j *IngestEntryJob) start() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.abandoned {
		return false
	}
	j.started = true
	return true
}

// Abandon stops a job that has not started from recording its entry and
// reports whether it did. Once a job has started it always runs to
// completion, and its Result is the outcome of the ingestion.
func (j *IngestEntryJob) Abandon() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.started {
		return false
	}
	j.abandoned = true
	return true
}

func (j *IngestEntryJob) setResult(res IngestResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.result = res
}

// Result returns the outcome of the job. The typed ingestion error is kept
// so callers can classify it; it is only meaningful once the job is
// complete.
func (j *IngestEntryJob) Result() IngestResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.result
}

// WaitForJob polls until j completes or ctx is done.
func WaitForJob(ctx context.Context, j amboy.Job, interval time.Duration) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for job '%s'", j.ID())
		case <-timer.C:
			if j.Status().Completed {
				return nil
			}
			timer.Reset(interval)
		}
	}
}
