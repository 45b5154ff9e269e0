package operations

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/evergreen-ci/larch/model"
	restmodel "github.com/evergreen-ci/larch/rest/model"
	"github.com/evergreen-ci/larch/util"
	"github.com/evergreen-ci/utility"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
)

func readBenches(path string) ([]model.Measurement, error) {
	out := []model.Measurement{}
	if err := util.ReadJSONFile(path, &out); err != nil {
		return nil, errors.Wrap(err, "problem reading benchmark results")
	}
	return out, nil
}

func readCommit(path string) (model.CommitInfo, error) {
	out := model.CommitInfo{}
	if err := util.ReadJSONFile(path, &out); err != nil {
		return out, errors.Wrap(err, "problem reading commit")
	}
	return out, nil
}

// withOutput calls render with the file at path, or with standard output
// when path is empty.
func withOutput(path string, render func(io.Writer) error) error {
	if path == "" {
		return render(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}

	if err = render(f); err != nil {
		_ = f.Close()
		return errors.WithStack(err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return errors.WithStack(err)
	}

	return errors.WithStack(f.Close())
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	return table
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }

func formatPercent(ratio float64) string {
	return fmt.Sprintf("%+.2f%%", util.RoundUp((ratio-1)*100, 2))
}

func shortCommit(id *string) string {
	return model.CommitInfo{ID: utility.FromStringPtr(id)}.ShortID()
}

func verdictStatus(v restmodel.APIVerdict) string {
	switch {
	case v.IsFailing:
		return "FAIL"
	case v.IsRegression:
		return "regression"
	default:
		return "ok"
	}
}

func renderIngestResponse(w io.Writer, resp *restmodel.APIIngestResponse) error {
	if _, err := fmt.Fprintf(w, "suite '%s': %d entries, last update %s\n",
		utility.FromStringPtr(resp.Suite), resp.Entries, humanize.Time(resp.LastUpdate.Time())); err != nil {
		return errors.WithStack(err)
	}

	if len(resp.Verdicts) == 0 {
		_, err := fmt.Fprintln(w, "no measurement has a baseline yet")
		return errors.WithStack(err)
	}

	table := newTable(w, "Measurement", "Unit", "Current", "Baseline", "Change", "Samples", "Status")
	for _, v := range resp.Verdicts {
		table.Append([]string{
			utility.FromStringPtr(v.Name),
			utility.FromStringPtr(v.Unit),
			formatFloat(v.Current),
			formatFloat(v.Baseline),
			formatPercent(v.Ratio),
			strconv.Itoa(v.Samples),
			verdictStatus(v),
		})
	}
	table.Render()

	_, err := fmt.Fprintf(w, "%d of %d measurements regressed\n", resp.Regressions, len(resp.Verdicts))
	return errors.WithStack(err)
}

func renderSuites(w io.Writer, suites []restmodel.APISuiteSummary) {
	table := newTable(w, "Suite", "Entries", "Last Update", "Measurements")
	for _, s := range suites {
		table.Append([]string{
			utility.FromStringPtr(s.Name),
			strconv.Itoa(s.Entries),
			humanize.Time(s.LastUpdate.Time()),
			strconv.Itoa(len(s.Measurements)),
		})
	}
	table.Render()
}

func renderSuite(w io.Writer, s *restmodel.APISuiteSummary) {
	table := newTable(w, "Measurement", "Unit")
	for _, name := range s.Measurements {
		table.Append([]string{name, s.Units[name]})
	}
	table.SetCaption(true, fmt.Sprintf("%s: %d entries, last update %s",
		utility.FromStringPtr(s.Name), s.Entries, humanize.Time(s.LastUpdate.Time())))
	table.Render()
}

func renderSeries(w io.Writer, points []restmodel.APIPoint) {
	table := newTable(w, "Date", "Commit", "Value", "Unit", "Range")
	for _, p := range points {
		table.Append([]string{
			util.FromUnixMilli(p.Timestamp).Format(restmodel.APITimeFormat),
			shortCommit(p.Commit),
			formatFloat(p.Value),
			utility.FromStringPtr(p.Unit),
			utility.FromStringPtr(p.Range),
		})
	}
	table.Render()
}

func renderChangePoints(w io.Writer, changePoints []restmodel.APIChangePoint) error {
	if len(changePoints) == 0 {
		_, err := fmt.Fprintln(w, "no change points detected")
		return errors.WithStack(err)
	}

	table := newTable(w, "Date", "Commit", "Value", "Unit", "Probability", "Algorithm")
	for _, cp := range changePoints {
		options := make([]string, 0, len(cp.Algorithm.Options))
		for _, opt := range cp.Algorithm.Options {
			options = append(options, fmt.Sprintf("%s=%v", opt.Name, opt.Value))
		}
		table.Append([]string{
			util.FromUnixMilli(cp.Timestamp).Format(restmodel.APITimeFormat),
			shortCommit(cp.Commit),
			formatFloat(cp.Value),
			utility.FromStringPtr(cp.Unit),
			formatFloat(cp.Probability),
			strings.TrimSpace(fmt.Sprintf("%s %s", cp.Algorithm.Name, strings.Join(options, " "))),
		})
	}
	table.Render()
	return nil
}
