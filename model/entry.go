package model

import (
	"fmt"
	"math"

	"github.com/mongodb/grip"
)

// Measurement is one named metric from one benchmark run.
type Measurement struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
	Unit  string  `json:"unit" yaml:"unit"`
	// Range is free text, typically a standard deviation ("stddev: 0.01")
	// or a spread ("± 12"). It is absent for single-round runs.
	Range string `json:"range,omitempty" yaml:"range,omitempty"`
	Extra string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// IsFinite reports whether the measured value is neither NaN nor infinite.
func (m Measurement) IsFinite() bool {
	return !math.IsNaN(m.Value) && !math.IsInf(m.Value, 0)
}

// Entry is one CI run: the full set of measurements plus the commit it was
// measured against. Date is the Unix millisecond timestamp at which the
// result was recorded, which need not match the commit timestamp.
type Entry struct {
	Commit  CommitInfo    `json:"commit" yaml:"commit"`
	Date    int64         `json:"date" yaml:"date"`
	Tool    string        `json:"tool" yaml:"tool"`
	Benches []Measurement `json:"benches" yaml:"benches"`
}

// Find returns the measurement with the given name.
func (e Entry) Find(name string) (Measurement, bool) {
	for _, b := range e.Benches {
		if b.Name == name {
			return b, true
		}
	}
	return Measurement{}, false
}

// validateStructure checks the requirements every stored entry must meet
// for the document to be considered readable.
func (e Entry) validateStructure() error {
	catcher := grip.NewBasicCatcher()

	catcher.NewWhen(e.Commit.ID == "", "entry is missing a commit id")
	catcher.ErrorfWhen(e.Date < 0, "entry for commit '%s' has negative date %d", e.Commit.ID, e.Date)
	for idx, b := range e.Benches {
		catcher.ErrorfWhen(b.Name == "", "bench %d of commit '%s' has no name", idx, e.Commit.ID)
		catcher.ErrorfWhen(!b.IsFinite(), "bench '%s' of commit '%s' has a non-finite value", b.Name, e.Commit.ID)
	}

	return catcher.Resolve()
}

// clone returns a deep copy so stores never alias caller-owned slices.
func (e Entry) clone() Entry {
	out := e
	if e.Benches != nil {
		out.Benches = make([]Measurement, len(e.Benches))
		copy(out.Benches, e.Benches)
	}
	if e.Commit.Distinct != nil {
		distinct := *e.Commit.Distinct
		out.Commit.Distinct = &distinct
	}
	return out
}

func (e Entry) String() string {
	return fmt.Sprintf("%s@%d (%d benches)", e.Commit.ShortID(), e.Date, len(e.Benches))
}
