// Package query provides read-only projections of benchmark histories for
// charting and reporting. Nothing here modifies a store.
package query

import (
	"context"
	"iter"

	"github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/perf"
	"github.com/evergreen-ci/larch/util"
	"github.com/pkg/errors"
)

// SeriesFor yields the (date, value) pairs of a measurement in store order.
// The sequence may be iterated any number of times and reflects the store
// as it was when SeriesFor was called.
func SeriesFor(store *model.HistoryStore, name string) iter.Seq2[int64, float64] {
	var entries []model.Entry
	if store != nil {
		entries = store.Entries[:len(store.Entries):len(store.Entries)]
	}

	return func(yield func(int64, float64) bool) {
		for _, e := range entries {
			m, ok := e.Find(name)
			if !ok {
				continue
			}
			if !yield(e.Date, m.Value) {
				return
			}
		}
	}
}

// Suites returns the suite names of a document in document order.
func Suites(doc *model.Document) []string {
	if doc == nil {
		return []string{}
	}
	return doc.Entries.Names()
}

// Measurements returns the measurement names recorded in a store, in the
// order they were first seen.
func Measurements(store *model.HistoryStore) []string {
	out := []string{}
	if store == nil {
		return out
	}

	seen := map[string]bool{}
	for _, e := range store.Entries {
		for _, b := range e.Benches {
			if seen[b.Name] {
				continue
			}
			seen[b.Name] = true
			out = append(out, b.Name)
		}
	}
	return out
}

// Point is one materialized data point of a series.
type Point struct {
	Date   int64   `json:"date"`
	Commit string  `json:"commit"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Range  string  `json:"range,omitempty"`
}

// PointOptions narrow a series.
type PointOptions struct {
	// Limit keeps only the most recent points; zero keeps all of them.
	Limit int
	// Range keeps only points recorded within it; the zero range keeps
	// all of them.
	Range util.TimeRange
}

// Points materializes a series for rendering. Storage is never truncated;
// Limit only bounds what is returned.
func Points(store *model.HistoryStore, name string, opts PointOptions) ([]Point, error) {
	if opts.Limit < 0 {
		return nil, errors.Errorf("limit %d must not be negative", opts.Limit)
	}
	if !opts.Range.IsZero() && !opts.Range.IsValid() {
		return nil, errors.New("invalid time range")
	}

	out := []Point{}
	if store == nil {
		return out, nil
	}

	for _, e := range store.Entries {
		if !opts.Range.IsZero() && !opts.Range.Check(e.Date) {
			continue
		}
		m, ok := e.Find(name)
		if !ok {
			continue
		}
		out = append(out, Point{
			Date:   e.Date,
			Commit: e.Commit.ID,
			Value:  m.Value,
			Unit:   m.Unit,
			Range:  m.Range,
		})
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[len(out)-opts.Limit:]
	}
	return out, nil
}

// ChangePoint locates a detected shift in a series.
type ChangePoint struct {
	Point
	Probability float64            `json:"probability"`
	Algorithm   perf.AlgorithmInfo `json:"algorithm"`
}

// ChangePoints runs detector over the full series of a measurement and
// returns the points at which the series shifted.
func ChangePoints(ctx context.Context, store *model.HistoryStore, name string, detector perf.ChangeDetector) ([]ChangePoint, error) {
	if detector == nil {
		return nil, errors.New("must specify a change detector")
	}

	points, err := Points(store, name, PointOptions{})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	series := make([]float64, len(points))
	for i, p := range points {
		series[i] = p.Value
	}

	detected, err := detector.DetectChanges(ctx, series)
	if err != nil {
		return nil, errors.Wrapf(err, "detecting change points for '%s'", name)
	}

	out := make([]ChangePoint, 0, len(detected))
	for _, cp := range detected {
		if cp.Index < 0 || cp.Index >= len(points) {
			return nil, errors.Errorf("change point index %d out of range for %d points", cp.Index, len(points))
		}
		out = append(out, ChangePoint{
			Point:       points[cp.Index],
			Probability: cp.Probability,
			Algorithm:   cp.Info,
		})
	}
	return out, nil
}
