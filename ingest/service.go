package ingest

import (
	"context"
	"time"

	"github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/perf"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// Store loads and persists suite histories. *model.Repository is the
// production implementation.
type Store interface {
	Load(ctx context.Context, suite string) (*model.HistoryStore, error)
	Persist(ctx context.Context, store *model.HistoryStore) error
}

// Options modify a single ingestion.
type Options struct {
	// Backfill places an entry that predates the suite's last update in
	// date order instead of rejecting it.
	Backfill bool
}

// Service is the only writer of benchmark histories. Each call runs the
// whole load, validate, detect, append, persist sequence; nothing is
// written unless every step succeeds.
type Service struct {
	store Store
	conf  perf.DetectorConfig
}

// NewService returns a Service detecting regressions with conf. Unset
// detector fields are filled with their defaults.
func NewService(store Store, conf perf.DetectorConfig) (*Service, error) {
	if store == nil {
		return nil, errors.New("must specify a store")
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid detector configuration")
	}

	return &Service{store: store, conf: conf}, nil
}

// Config returns the detector configuration in use.
func (s *Service) Config() perf.DetectorConfig { return s.conf }

// Ingest records entry in the suite and returns the updated history along
// with the verdicts computed against the history as it was before the
// entry was added.
func (s *Service) Ingest(ctx context.Context, suite string, entry model.Entry, opts Options) (*model.HistoryStore, []perf.RegressionVerdict, error) {
	start := time.Now()
	defer func() { ingestDuration.Observe(time.Since(start).Seconds()) }()

	store, verdicts, err := s.check(ctx, suite, entry)
	if err != nil {
		return nil, nil, s.reject(suite, entry, err)
	}

	var updated *model.HistoryStore
	if opts.Backfill {
		updated = store.Insert(entry)
	} else {
		updated, err = store.Append(entry)
		if err != nil {
			return nil, nil, s.reject(suite, entry, err)
		}
	}

	if err = s.store.Persist(ctx, updated); err != nil {
		return nil, nil, s.reject(suite, entry, errors.Wrapf(err, "persisting suite '%s'", suite))
	}

	mode := "append"
	if opts.Backfill {
		mode = "backfill"
	}
	ingestCount.WithLabelValues(mode).Inc()
	storedEntryCount.WithLabelValues(suite).Set(float64(updated.Len()))

	regressions := 0
	for _, v := range verdicts {
		if !v.IsRegression {
			continue
		}
		regressions++
		severity := "warning"
		if v.IsFailing {
			severity = "failing"
		}
		regressionCount.WithLabelValues(severity).Inc()
	}

	grip.Info(message.Fields{
		"message":     "ingested benchmark entry",
		"suite":       suite,
		"commit":      entry.Commit.ID,
		"date":        entry.Date,
		"tool":        entry.Tool,
		"benches":     len(entry.Benches),
		"backfill":    opts.Backfill,
		"entries":     updated.Len(),
		"verdicts":    len(verdicts),
		"regressions": regressions,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return updated, verdicts, nil
}

// Check runs validation and regression detection for entry without
// recording it. The returned store is the unchanged history.
func (s *Service) Check(ctx context.Context, suite string, entry model.Entry) (*model.HistoryStore, []perf.RegressionVerdict, error) {
	store, verdicts, err := s.check(ctx, suite, entry)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	return store, verdicts, nil
}

func (s *Service) check(ctx context.Context, suite string, entry model.Entry) (*model.HistoryStore, []perf.RegressionVerdict, error) {
	if suite == "" {
		return nil, nil, ValidateEntry(suite, entry, nil, s.conf)
	}

	store, err := s.store.Load(ctx, suite)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "loading suite '%s'", suite)
	}

	if err = ValidateEntry(suite, entry, store, s.conf); err != nil {
		return nil, nil, err
	}

	return store, perf.DetectRegressions(store, entry, s.conf), nil
}

func (s *Service) reject(suite string, entry model.Entry, err error) error {
	reason := rejectionReason(err)
	rejectionCount.WithLabelValues(reason).Inc()

	grip.Warning(message.WrapError(err, message.Fields{
		"message": "rejected benchmark entry",
		"suite":   suite,
		"commit":  entry.Commit.ID,
		"date":    entry.Date,
		"reason":  reason,
	}))

	return err
}
