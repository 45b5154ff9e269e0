package main

import (
	"math/rand"
	"os"
	"time"

	"github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/util"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
)

const (
	// things that really should be command line args
	outputFn   = "data.js"
	repoURL    = "https://github.com/example/benchmarks"
	totalRuns  = 500
	stepAt     = 350
	stepFactor = 0.8
	noise      = 0.02
	runEvery   = 6 * time.Hour
)

type series struct {
	name  string
	unit  string
	value float64
}

var suites = map[string][]series{
	"Go Benchmark": {
		{name: "BenchmarkFib20", unit: "ns/op", value: 25000},
		{name: "BenchmarkFib20 - B/op", unit: "B/op", value: 0},
		{name: "BenchmarkParse", unit: "ns/op", value: 1200},
	},
	"Python Benchmark": {
		{name: "tests/test_load.py::test_load_1min", unit: "iter/sec", value: 108},
		{name: "tests/test_load.py::test_load_15min", unit: "iter/sec", value: 9.2},
	},
}

func main() {
	startAt := time.Now()
	doc := model.NewDocument(repoURL)

	// suites are added in a fixed order so the chart renders them the
	// same way on every run.
	for _, suite := range []string{"Go Benchmark", "Python Benchmark"} {
		entries := generate(suite, startAt.Add(-totalRuns*runEvery))
		doc.Entries.Set(suite, entries)
		if last := entries[len(entries)-1].Date; last > doc.LastUpdate {
			doc.LastUpdate = last
		}

		grip.Info(message.Fields{
			"suite":   suite,
			"entries": len(entries),
			"step_at": stepAt,
		})
	}

	data, err := doc.Encode(model.FormatForPath(outputFn))
	grip.EmergencyFatal(err)
	grip.EmergencyFatal(util.WriteFileAtomic(outputFn, data))

	stat, err := os.Stat(outputFn)
	grip.EmergencyFatal(err)

	grip.Info(message.Fields{
		"dur_secs":   time.Since(startAt).Seconds(),
		"path":       outputFn,
		"runs":       totalRuns,
		"size_bytes": stat.Size(),
	})
}

// generate produces a history with gaussian noise around each series'
// value and a step change at stepAt, worse in the series' direction.
func generate(suite string, start time.Time) []model.Entry {
	entries := make([]model.Entry, 0, totalRuns)
	ts := start

	for i := 0; i < totalRuns; i++ {
		ts = ts.Add(runEvery)
		id := utility.RandomString()

		entry := model.Entry{
			Commit: model.CommitInfo{
				ID:        id,
				Message:   "synthetic commit",
				Timestamp: ts.Format(time.RFC3339),
				URL:       repoURL + "/commit/" + id,
			},
			Date:    utility.UnixMilli(ts),
			Tool:    "generated",
			Benches: make([]model.Measurement, 0, len(suites[suite])),
		}

		for _, s := range suites[suite] {
			value := s.value * (1 + rand.NormFloat64()*noise)
			if i >= stepAt {
				if s.unit == "iter/sec" {
					value *= stepFactor
				} else {
					value /= stepFactor
				}
			}
			entry.Benches = append(entry.Benches, model.Measurement{
				Name:  s.name,
				Value: value,
				Unit:  s.unit,
			})
		}

		entries = append(entries, entry)
	}

	return entries
}
