package ingest

import (
	"github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/perf"
	"github.com/mongodb/grip"
)

// ValidateEntry checks an incoming entry against the storage invariants
// and the history already recorded for the suite. Every problem found is
// reported in a single InvalidEntryError; the entry is never partially
// accepted.
func ValidateEntry(suite string, entry model.Entry, store *model.HistoryStore, conf perf.DetectorConfig) error {
	catcher := grip.NewBasicCatcher()

	catcher.NewWhen(suite == "", "suite name must not be empty")
	catcher.NewWhen(entry.Tool == "", "tool must not be empty")
	catcher.NewWhen(entry.Commit.ID == "", "commit id must not be empty")
	catcher.ErrorfWhen(entry.Date <= 0, "date %d must be a positive Unix millisecond timestamp", entry.Date)
	catcher.NewWhen(len(entry.Benches) == 0, "entry has no benches")

	var known map[string]string
	if store != nil {
		known = store.Units()
	}

	seen := map[string]bool{}
	for idx, b := range entry.Benches {
		if b.Name == "" {
			catcher.Errorf("bench %d has no name", idx)
			continue
		}
		catcher.ErrorfWhen(seen[b.Name], "bench '%s' appears more than once", b.Name)
		seen[b.Name] = true

		if !b.IsFinite() {
			catcher.Errorf("bench '%s' has non-finite value %v", b.Name, b.Value)
			continue
		}
		if dir, ok := conf.DirectionFor(b.Unit); ok && dir == perf.HigherIsBetter {
			catcher.ErrorfWhen(b.Value < 0, "bench '%s' has negative value %v for unit '%s'", b.Name, b.Value, b.Unit)
		}
		if unit, ok := known[b.Name]; ok {
			catcher.ErrorfWhen(unit != b.Unit, "bench '%s' has unit '%s' but was previously recorded in '%s'", b.Name, b.Unit, unit)
		}
	}

	if !catcher.HasErrors() {
		return nil
	}

	problems := make([]string, 0, catcher.Len())
	for _, err := range catcher.Errors() {
		problems = append(problems, err.Error())
	}
	return &model.InvalidEntryError{Suite: suite, Problems: problems}
}
