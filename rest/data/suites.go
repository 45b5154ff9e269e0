package data

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/larch/ingest"
	dbmodel "github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/perf"
	"github.com/evergreen-ci/larch/query"
	"github.com/evergreen-ci/larch/rest/model"
	"github.com/evergreen-ci/larch/units"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const ingestPollInterval = 10 * time.Millisecond

/////////////////////////////
// DBConnector Implementation
/////////////////////////////

// FindSuites returns a summary of every suite in the benchmark document.
func (dbc *DBConnector) FindSuites(ctx context.Context) ([]model.APISuiteSummary, error) {
	stores, err := dbc.env.GetRepository().LoadAll(ctx)
	if err != nil {
		return nil, storageErrorResponse(err)
	}

	return importSummaries(stores)
}

// FindSuite returns a summary of the suite with the given name.
func (dbc *DBConnector) FindSuite(ctx context.Context, suite string) (*model.APISuiteSummary, error) {
	store, err := dbc.loadSuite(ctx, suite)
	if err != nil {
		return nil, err
	}

	return importSummary(store)
}

// FindSeries returns the data points of a measurement of the given suite.
func (dbc *DBConnector) FindSeries(ctx context.Context, suite, name string, opts query.PointOptions) ([]model.APIPoint, error) {
	store, err := dbc.loadSuite(ctx, suite)
	if err != nil {
		return nil, err
	}

	return findSeries(store, name, opts)
}

// FindChangePoints runs the environment's change detector over a
// measurement of the given suite.
func (dbc *DBConnector) FindChangePoints(ctx context.Context, suite, name string) ([]model.APIChangePoint, error) {
	store, err := dbc.loadSuite(ctx, suite)
	if err != nil {
		return nil, err
	}

	return findChangePoints(ctx, store, name, dbc.env.GetChangeDetector())
}

// IngestEntry queues an ingestion job and waits for it to complete. The
// environment's queue has a single worker, so concurrent requests are
// recorded one at a time. A job still waiting in the queue when the ingest
// timeout expires is abandoned and records nothing; a job that has started
// is waited for, so the response always matches the stored document.
func (dbc *DBConnector) IngestEntry(ctx context.Context, suite string, entry dbmodel.Entry, backfill bool) (*model.APIIngestResponse, error) {
	j := units.NewIngestEntryJob(dbc.env.GetIngestService(), suite, entry, backfill)
	if err := dbc.env.GetQueue().Put(ctx, j); err != nil {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusServiceUnavailable,
			Message:    errors.Wrap(err, "problem queueing ingestion").Error(),
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, dbc.env.GetConf().Service.IngestTimeout)
	defer cancel()
	if err := units.WaitForJob(waitCtx, j, ingestPollInterval); err != nil {
		if j.Abandon() {
			return nil, gimlet.ErrorResponse{
				StatusCode: http.StatusServiceUnavailable,
				Message:    errors.Wrapf(err, "ingestion into suite '%s' did not start in time, nothing was recorded", suite).Error(),
			}
		}

		grip.Info(message.Fields{
			"message": "waiting for started ingestion past the ingest timeout",
			"job_id":  j.ID(),
			"suite":   suite,
		})
		if err = units.WaitForJob(context.WithoutCancel(ctx), j, ingestPollInterval); err != nil {
			return nil, gimlet.ErrorResponse{
				StatusCode: http.StatusInternalServerError,
				Message:    errors.Wrapf(err, "ingestion into suite '%s' did not complete", suite).Error(),
			}
		}
	}

	res := j.Result()
	if res.Err != nil {
		return nil, ingestErrorResponse(res.Err)
	}

	return model.NewAPIIngestResponse(res.Store, res.Verdicts)
}

func (dbc *DBConnector) loadSuite(ctx context.Context, suite string) (*dbmodel.HistoryStore, error) {
	store, err := dbc.env.GetRepository().Load(ctx, suite)
	if err != nil {
		return nil, storageErrorResponse(err)
	}
	if store.IsEmpty() {
		return nil, suiteNotFound(suite)
	}
	return store, nil
}

///////////////////////////////
// MockConnector Implementation
///////////////////////////////

// MockConnector keeps suites in memory. Suites are listed in name order.
type MockConnector struct {
	CachedSuites map[string]*dbmodel.HistoryStore
	Detector     perf.ChangeDetector
	Config       perf.DetectorConfig

	mu sync.Mutex
}

// FindSuites returns a summary of every cached suite.
func (mc *MockConnector) FindSuites(_ context.Context) ([]model.APISuiteSummary, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	names := make([]string, 0, len(mc.CachedSuites))
	for name := range mc.CachedSuites {
		names = append(names, name)
	}
	sort.Strings(names)

	stores := make([]*dbmodel.HistoryStore, 0, len(names))
	for _, name := range names {
		stores = append(stores, mc.CachedSuites[name])
	}

	return importSummaries(stores)
}

// FindSuite returns a summary of the cached suite with the given name.
func (mc *MockConnector) FindSuite(_ context.Context, suite string) (*model.APISuiteSummary, error) {
	store, err := mc.loadSuite(suite)
	if err != nil {
		return nil, err
	}

	return importSummary(store)
}

// FindSeries returns the data points of a measurement of a cached suite.
func (mc *MockConnector) FindSeries(_ context.Context, suite, name string, opts query.PointOptions) ([]model.APIPoint, error) {
	store, err := mc.loadSuite(suite)
	if err != nil {
		return nil, err
	}

	return findSeries(store, name, opts)
}

// FindChangePoints runs the mock's detector over a measurement of a cached
// suite.
func (mc *MockConnector) FindChangePoints(ctx context.Context, suite, name string) ([]model.APIChangePoint, error) {
	store, err := mc.loadSuite(suite)
	if err != nil {
		return nil, err
	}

	return findChangePoints(ctx, store, name, mc.Detector)
}

// IngestEntry validates and records the entry in the cache.
func (mc *MockConnector) IngestEntry(_ context.Context, suite string, entry dbmodel.Entry, backfill bool) (*model.APIIngestResponse, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.CachedSuites == nil {
		mc.CachedSuites = map[string]*dbmodel.HistoryStore{}
	}
	store, ok := mc.CachedSuites[suite]
	if !ok {
		store = dbmodel.NewHistoryStore(suite)
	}

	if err := ingest.ValidateEntry(suite, entry, store, mc.Config); err != nil {
		return nil, ingestErrorResponse(err)
	}
	verdicts := perf.DetectRegressions(store, entry, mc.Config)

	var err error
	if backfill {
		store = store.Insert(entry)
	} else if store, err = store.Append(entry); err != nil {
		return nil, ingestErrorResponse(err)
	}
	mc.CachedSuites[suite] = store

	return model.NewAPIIngestResponse(store, verdicts)
}

func (mc *MockConnector) loadSuite(suite string) (*dbmodel.HistoryStore, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	store, ok := mc.CachedSuites[suite]
	if !ok || store.IsEmpty() {
		return nil, suiteNotFound(suite)
	}
	return store, nil
}

//////////
// Helpers
//////////

func importSummary(store *dbmodel.HistoryStore) (*model.APISuiteSummary, error) {
	summary := &model.APISuiteSummary{}
	if err := summary.Import(store); err != nil {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    errors.Wrapf(err, "problem converting suite '%s'", store.Suite).Error(),
		}
	}
	return summary, nil
}

func importSummaries(stores []*dbmodel.HistoryStore) ([]model.APISuiteSummary, error) {
	out := make([]model.APISuiteSummary, 0, len(stores))
	for _, store := range stores {
		summary, err := importSummary(store)
		if err != nil {
			return nil, err
		}
		out = append(out, *summary)
	}
	return out, nil
}

func findSeries(store *dbmodel.HistoryStore, name string, opts query.PointOptions) ([]model.APIPoint, error) {
	points, err := query.Points(store, name, opts)
	if err != nil {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
		}
	}
	if len(points) == 0 && opts.Range.IsZero() {
		return nil, measurementNotFound(store.Suite, name)
	}

	out := make([]model.APIPoint, 0, len(points))
	for _, p := range points {
		apiPoint := model.APIPoint{}
		if err := apiPoint.Import(p); err != nil {
			return nil, gimlet.ErrorResponse{
				StatusCode: http.StatusInternalServerError,
				Message:    err.Error(),
			}
		}
		out = append(out, apiPoint)
	}
	return out, nil
}

func findChangePoints(ctx context.Context, store *dbmodel.HistoryStore, name string, detector perf.ChangeDetector) ([]model.APIChangePoint, error) {
	if _, ok := store.Units()[name]; !ok {
		return nil, measurementNotFound(store.Suite, name)
	}

	changePoints, err := query.ChangePoints(ctx, store, name, detector)
	if err != nil {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    errors.Wrapf(err, "problem detecting change points for '%s' in suite '%s'", name, store.Suite).Error(),
		}
	}

	out := make([]model.APIChangePoint, 0, len(changePoints))
	for _, cp := range changePoints {
		apiChangePoint := model.APIChangePoint{}
		if err := apiChangePoint.Import(cp); err != nil {
			return nil, gimlet.ErrorResponse{
				StatusCode: http.StatusInternalServerError,
				Message:    err.Error(),
			}
		}
		out = append(out, apiChangePoint)
	}
	return out, nil
}

func suiteNotFound(suite string) error {
	return gimlet.ErrorResponse{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("suite '%s' not found", suite),
	}
}

func measurementNotFound(suite, name string) error {
	return gimlet.ErrorResponse{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("measurement '%s' not found in suite '%s'", name, suite),
	}
}

// storageErrorResponse maps read failures, including a corrupt document.
func storageErrorResponse(err error) error {
	return gimlet.ErrorResponse{
		StatusCode: http.StatusInternalServerError,
		Message:    err.Error(),
	}
}

// ingestErrorResponse maps ingestion rejections to HTTP statuses. Ordering
// and write conflicts are reported as 409.
func ingestErrorResponse(err error) error {
	status := http.StatusInternalServerError
	switch {
	case dbmodel.IsInvalidEntry(err):
		status = http.StatusBadRequest
	case dbmodel.IsOutOfOrder(err), dbmodel.IsConcurrentModification(err):
		status = http.StatusConflict
	}

	return gimlet.ErrorResponse{
		StatusCode: status,
		Message:    err.Error(),
	}
}
