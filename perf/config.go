package perf

import (
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

// Direction states whether larger values of a unit are improvements.
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
)

func (d Direction) Validate() error {
	switch d {
	case HigherIsBetter, LowerIsBetter:
		return nil
	default:
		return errors.Errorf("invalid direction '%s'", d)
	}
}

// Aggregation names the function that reduces a baseline window to a single
// value.
type Aggregation string

const (
	AggregateMean   Aggregation = "mean"
	AggregateMedian Aggregation = "median"
	AggregateLast   Aggregation = "last"
	AggregateMin    Aggregation = "min"
	AggregateMax    Aggregation = "max"
)

func (a Aggregation) Validate() error {
	switch a {
	case AggregateMean, AggregateMedian, AggregateLast, AggregateMin, AggregateMax:
		return nil
	default:
		return errors.Errorf("invalid aggregation '%s'", a)
	}
}

const (
	defaultThreshold   = 0.1
	defaultAggregation = AggregateMean
)

// DefaultUnitDirections maps the units emitted by common benchmark
// harnesses to their direction. Units are free text, so anything not listed
// here must be configured explicitly.
func DefaultUnitDirections() map[string]Direction {
	return map[string]Direction{
		"iter/sec":  HigherIsBetter,
		"it/s":      HigherIsBetter,
		"ops/sec":   HigherIsBetter,
		"ops/s":     HigherIsBetter,
		"req/s":     HigherIsBetter,
		"MB/s":      HigherIsBetter,
		"GB/s":      HigherIsBetter,
		"ns/iter":   LowerIsBetter,
		"ns/op":     LowerIsBetter,
		"B/op":      LowerIsBetter,
		"allocs/op": LowerIsBetter,
		"ns":        LowerIsBetter,
		"us":        LowerIsBetter,
		"ms":        LowerIsBetter,
		"s":         LowerIsBetter,
		"sec":       LowerIsBetter,
		"bytes":     LowerIsBetter,
	}
}

// DetectorConfig controls regression detection.
type DetectorConfig struct {
	// Threshold is the tolerated fractional loss: a measurement regresses
	// when its ratio to the baseline falls below 1-Threshold.
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// FailThreshold, when set, marks verdicts whose ratio falls below
	// 1-FailThreshold as failing.
	FailThreshold float64 `json:"fail_threshold,omitempty" yaml:"fail_threshold,omitempty"`
	// Window is the number of most recent prior data points per
	// measurement that form the baseline. Zero uses all history.
	Window      int         `json:"window" yaml:"window"`
	Aggregation Aggregation `json:"aggregation" yaml:"aggregation"`
	// NoiseSigmas, when positive, additionally requires the change to
	// exceed this many standard deviations of combined noise.
	NoiseSigmas float64 `json:"noise_sigmas,omitempty" yaml:"noise_sigmas,omitempty"`
	// Units is the explicit unit to direction table. Measurements with a
	// unit missing from it receive no verdict.
	Units map[string]Direction `json:"units" yaml:"units"`
}

// DefaultDetectorConfig returns the documented defaults: a 10% threshold,
// the mean of all prior history, and the default unit table.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Threshold:   defaultThreshold,
		Aggregation: defaultAggregation,
		Units:       DefaultUnitDirections(),
	}
}

// Validate fills the aggregation and unit table when unset and reports
// invalid settings. A zero threshold is kept: every loss is a regression.
func (c *DetectorConfig) Validate() error {
	catcher := grip.NewBasicCatcher()

	if c.Aggregation == "" {
		c.Aggregation = defaultAggregation
	}
	if c.Units == nil {
		c.Units = DefaultUnitDirections()
	}

	catcher.ErrorfWhen(c.Threshold < 0 || c.Threshold >= 1, "threshold %g must be in [0, 1)", c.Threshold)
	catcher.ErrorfWhen(c.FailThreshold < 0 || c.FailThreshold >= 1, "fail threshold %g must be in [0, 1)", c.FailThreshold)
	catcher.ErrorfWhen(c.FailThreshold != 0 && c.FailThreshold < c.Threshold,
		"fail threshold %g must not be below threshold %g", c.FailThreshold, c.Threshold)
	catcher.ErrorfWhen(c.Window < 0, "window %d must not be negative", c.Window)
	catcher.ErrorfWhen(c.NoiseSigmas < 0, "noise sigmas %g must not be negative", c.NoiseSigmas)
	catcher.Add(c.Aggregation.Validate())
	for unit, dir := range c.Units {
		catcher.Wrapf(dir.Validate(), "unit '%s'", unit)
	}

	return catcher.Resolve()
}

// DirectionFor looks up the configured direction of a unit.
func (c DetectorConfig) DirectionFor(unit string) (Direction, bool) {
	dir, ok := c.Units[unit]
	return dir, ok
}
