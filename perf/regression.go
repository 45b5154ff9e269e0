package perf

import (
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"
	"github.com/evergreen-ci/larch/model"
)

// RegressionVerdict is the outcome of comparing one measurement of a new
// entry against its baseline. Ratio is oriented so that values below one
// are always worse, regardless of the unit's direction.
type RegressionVerdict struct {
	MeasurementName string    `json:"measurement_name"`
	Unit            string    `json:"unit"`
	Direction       Direction `json:"direction"`
	Current         float64   `json:"current"`
	Baseline        float64   `json:"baseline"`
	Ratio           float64   `json:"ratio"`
	// Samples is the number of prior data points in the baseline.
	Samples      int     `json:"samples"`
	Noise        float64 `json:"noise,omitempty"`
	IsRegression bool    `json:"is_regression"`
	IsFailing    bool    `json:"is_failing"`
}

// DetectRegressions compares every measurement of newEntry with a baseline
// drawn from the entries already in store. The store must not contain
// newEntry: detection runs before the entry is appended.
//
// Only prior entries recorded at or before newEntry's date contribute, most
// recent first, up to conf.Window data points per measurement (all of them
// when Window is zero). Prior values with a different unit are ignored. A
// measurement without any prior data point, or whose unit has no configured
// direction, yields no verdict.
func DetectRegressions(store *model.HistoryStore, newEntry model.Entry, conf DetectorConfig) []RegressionVerdict {
	out := []RegressionVerdict{}
	if store == nil {
		return out
	}

	for _, current := range newEntry.Benches {
		dir, ok := conf.DirectionFor(current.Unit)
		if !ok || !current.IsFinite() {
			continue
		}

		window := baselineWindow(store, newEntry.Date, current, conf.Window)
		if len(window) == 0 {
			continue
		}

		out = append(out, judge(current, dir, window, conf))
	}

	return out
}

// baselineWindow collects prior values for the measurement, newest first.
func baselineWindow(store *model.HistoryStore, before int64, current model.Measurement, limit int) []float64 {
	values := []float64{}
	for i := len(store.Entries) - 1; i >= 0; i-- {
		entry := store.Entries[i]
		if entry.Date > before {
			continue
		}

		prior, ok := entry.Find(current.Name)
		if !ok || prior.Unit != current.Unit || !prior.IsFinite() {
			continue
		}

		values = append(values, prior.Value)
		if limit > 0 && len(values) >= limit {
			break
		}
	}
	return values
}

func judge(current model.Measurement, dir Direction, window []float64, conf DetectorConfig) RegressionVerdict {
	baseline := aggregate(window, conf.Aggregation)

	v := RegressionVerdict{
		MeasurementName: current.Name,
		Unit:            current.Unit,
		Direction:       dir,
		Current:         current.Value,
		Baseline:        baseline,
		Ratio:           ratio(current.Value, baseline, dir),
		Samples:         len(window),
	}

	v.IsRegression = v.Ratio < 1-conf.Threshold
	if v.IsRegression && conf.NoiseSigmas > 0 {
		v.Noise = combinedNoise(current, window)
		if v.Noise > 0 && math.Abs(current.Value-baseline) <= conf.NoiseSigmas*v.Noise {
			v.IsRegression = false
		}
	}
	v.IsFailing = v.IsRegression && conf.FailThreshold > 0 && v.Ratio < 1-conf.FailThreshold

	return v
}

// ratio orients the comparison so that values below one are worse. A zero
// denominator is treated as no change.
func ratio(current, baseline float64, dir Direction) float64 {
	num, den := current, baseline
	if dir == LowerIsBetter {
		num, den = baseline, current
	}
	if den == 0 {
		return 1
	}
	return num / den
}

// aggregate reduces the baseline window. The window is ordered newest
// first.
func aggregate(window []float64, agg Aggregation) float64 {
	switch agg {
	case AggregateLast:
		return window[0]
	case AggregateMin:
		lo, _ := stats.Bounds(window)
		return lo
	case AggregateMax:
		_, hi := stats.Bounds(window)
		return hi
	case AggregateMedian:
		sorted := append([]float64{}, window...)
		sort.Float64s(sorted)
		return stats.Sample{Xs: sorted, Sorted: true}.Quantile(0.5)
	default:
		return stats.Mean(window)
	}
}

// combinedNoise adds the measurement's own reported spread and the sample
// standard deviation of the baseline window in quadrature.
func combinedNoise(current model.Measurement, window []float64) float64 {
	own, _ := ParseRange(current.Range, current.Value)

	var spread float64
	if len(window) > 1 {
		spread = stats.StdDev(window)
	}

	return math.Sqrt(own*own + spread*spread)
}
