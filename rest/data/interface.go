package data

import (
	"context"

	dbmodel "github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/query"
	"github.com/evergreen-ci/larch/rest/model"
)

// Connector abstracts the link between larch's service and API layers,
// allowing for changes in the storage architecture without forcing changes
// to the API.
type Connector interface {
	/////////
	// Suites
	/////////
	// FindSuites returns a summary of every suite in the benchmark
	// document, in document order.
	FindSuites(context.Context) ([]model.APISuiteSummary, error)
	// FindSuite returns a summary of the suite with the given name.
	FindSuite(context.Context, string) (*model.APISuiteSummary, error)

	/////////
	// Series
	/////////
	// FindSeries returns the data points of one measurement of a suite,
	// narrowed by the options.
	FindSeries(context.Context, string, string, query.PointOptions) ([]model.APIPoint, error)
	// FindChangePoints runs change point detection over the full series
	// of one measurement of a suite.
	FindChangePoints(context.Context, string, string) ([]model.APIChangePoint, error)

	////////////
	// Ingestion
	////////////
	// IngestEntry records an entry in a suite and reports the regression
	// verdicts. Backfill admits an entry older than the newest one.
	IngestEntry(context.Context, string, dbmodel.Entry, bool) (*model.APIIngestResponse, error)
}
