package model

import (
	"time"

	dbmodel "github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/perf"
	"github.com/evergreen-ci/larch/query"
	"github.com/evergreen-ci/utility"
	"github.com/pkg/errors"
)

// APISuiteSummary describes the history of one benchmark suite.
type APISuiteSummary struct {
	Name         *string           `json:"name"`
	Entries      int               `json:"entries"`
	LastUpdate   APITime           `json:"last_update"`
	Measurements []string          `json:"measurements"`
	Units        map[string]string `json:"units"`
}

// Import transforms a HistoryStore into an APISuiteSummary.
func (s *APISuiteSummary) Import(i interface{}) error {
	switch h := i.(type) {
	case *dbmodel.HistoryStore:
		if h == nil {
			return errors.New("cannot import a nil history store")
		}
		s.Name = utility.ToStringPtr(h.Suite)
		s.Entries = h.Len()
		s.LastUpdate = NewTimeFromMillis(h.LastUpdate)
		s.Measurements = query.Measurements(h)
		s.Units = h.Units()
	default:
		return errors.New("incorrect type when converting to APISuiteSummary")
	}
	return nil
}

func (s *APISuiteSummary) Export() (interface{}, error) {
	return nil, errors.New("Export is not implemented for APISuiteSummary")
}

// APIPoint is one data point of a measurement series.
type APIPoint struct {
	Date      APITime `json:"date"`
	Timestamp int64   `json:"timestamp"`
	Commit    *string `json:"commit"`
	Value     float64 `json:"value"`
	Unit      *string `json:"unit"`
	Range     *string `json:"range,omitempty"`
}

// Import transforms a query.Point into an APIPoint.
func (p *APIPoint) Import(i interface{}) error {
	switch pt := i.(type) {
	case query.Point:
		p.Date = NewTimeFromMillis(pt.Date)
		p.Timestamp = pt.Date
		p.Commit = utility.ToStringPtr(pt.Commit)
		p.Value = pt.Value
		p.Unit = utility.ToStringPtr(pt.Unit)
		if pt.Range != "" {
			p.Range = utility.ToStringPtr(pt.Range)
		}
	default:
		return errors.New("incorrect type when converting to APIPoint")
	}
	return nil
}

func (p *APIPoint) Export() (interface{}, error) {
	return nil, errors.New("Export is not implemented for APIPoint")
}

// APIChangePoint is a point at which a measurement series shifted.
type APIChangePoint struct {
	APIPoint
	Probability float64            `json:"probability"`
	Algorithm   perf.AlgorithmInfo `json:"algorithm"`
}

// Import transforms a query.ChangePoint into an APIChangePoint.
func (cp *APIChangePoint) Import(i interface{}) error {
	switch c := i.(type) {
	case query.ChangePoint:
		if err := cp.APIPoint.Import(c.Point); err != nil {
			return errors.WithStack(err)
		}
		cp.Probability = c.Probability
		cp.Algorithm = c.Algorithm
	default:
		return errors.New("incorrect type when converting to APIChangePoint")
	}
	return nil
}

// APIVerdict is the regression verdict for one measurement of an ingested
// entry.
type APIVerdict struct {
	Name         *string        `json:"name"`
	Unit         *string        `json:"unit"`
	Direction    perf.Direction `json:"direction"`
	Current      float64        `json:"current"`
	Baseline     float64        `json:"baseline"`
	Ratio        float64        `json:"ratio"`
	Samples      int            `json:"samples"`
	Noise        float64        `json:"noise,omitempty"`
	IsRegression bool           `json:"is_regression"`
	IsFailing    bool           `json:"is_failing"`
}

// Import transforms a perf.RegressionVerdict into an APIVerdict.
func (v *APIVerdict) Import(i interface{}) error {
	switch r := i.(type) {
	case perf.RegressionVerdict:
		v.Name = utility.ToStringPtr(r.MeasurementName)
		v.Unit = utility.ToStringPtr(r.Unit)
		v.Direction = r.Direction
		v.Current = r.Current
		v.Baseline = r.Baseline
		v.Ratio = r.Ratio
		v.Samples = r.Samples
		v.Noise = r.Noise
		v.IsRegression = r.IsRegression
		v.IsFailing = r.IsFailing
	default:
		return errors.New("incorrect type when converting to APIVerdict")
	}
	return nil
}

// APIIngestResponse reports the outcome of a successful ingestion.
type APIIngestResponse struct {
	Suite       *string      `json:"suite"`
	Entries     int          `json:"entries"`
	LastUpdate  APITime      `json:"last_update"`
	Verdicts    []APIVerdict `json:"verdicts"`
	Regressions int          `json:"regressions"`
	Failing     bool         `json:"failing"`
}

// NewAPIIngestResponse summarizes the updated store and the verdicts of the
// ingested entry.
func NewAPIIngestResponse(store *dbmodel.HistoryStore, verdicts []perf.RegressionVerdict) (*APIIngestResponse, error) {
	if store == nil {
		return nil, errors.New("cannot summarize a nil history store")
	}

	resp := &APIIngestResponse{
		Suite:      utility.ToStringPtr(store.Suite),
		Entries:    store.Len(),
		LastUpdate: NewTimeFromMillis(store.LastUpdate),
		Verdicts:   make([]APIVerdict, 0, len(verdicts)),
	}
	for _, v := range verdicts {
		apiVerdict := APIVerdict{}
		if err := apiVerdict.Import(v); err != nil {
			return nil, errors.WithStack(err)
		}
		resp.Verdicts = append(resp.Verdicts, apiVerdict)
		if v.IsRegression {
			resp.Regressions++
		}
		if v.IsFailing {
			resp.Failing = true
		}
	}

	return resp, nil
}

// APIEntry is the body of an ingestion request. Date may be omitted, in
// which case the entry is recorded at the time it is exported.
type APIEntry struct {
	Commit  dbmodel.CommitInfo    `json:"commit"`
	Date    *int64                `json:"date"`
	Tool    *string               `json:"tool"`
	Benches []dbmodel.Measurement `json:"benches"`
}

func (e *APIEntry) Import(i interface{}) error {
	switch entry := i.(type) {
	case dbmodel.Entry:
		e.Commit = entry.Commit
		date := entry.Date
		e.Date = &date
		e.Tool = utility.ToStringPtr(entry.Tool)
		e.Benches = entry.Benches
	default:
		return errors.New("incorrect type when converting to APIEntry")
	}
	return nil
}

// Export transforms the APIEntry into a model.Entry.
func (e *APIEntry) Export() (interface{}, error) {
	date := utility.UnixMilli(time.Now())
	if e.Date != nil {
		date = *e.Date
	}

	return dbmodel.Entry{
		Commit:  e.Commit,
		Date:    date,
		Tool:    utility.FromStringPtr(e.Tool),
		Benches: e.Benches,
	}, nil
}
