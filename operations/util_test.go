package operations

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evergreen-ci/larch/perf"
	"github.com/evergreen-ci/larch/rest"
	restmodel "github.com/evergreen-ci/larch/rest/model"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/amboy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "-50.00%", formatPercent(0.5))
	assert.Equal(t, "+0.00%", formatPercent(1))
	assert.Equal(t, "+12.50%", formatPercent(1.125))
}

func TestVerdictStatus(t *testing.T) {
	assert.Equal(t, "ok", verdictStatus(restmodel.APIVerdict{}))
	assert.Equal(t, "regression", verdictStatus(restmodel.APIVerdict{IsRegression: true}))
	assert.Equal(t, "FAIL", verdictStatus(restmodel.APIVerdict{IsRegression: true, IsFailing: true}))
}

func TestRenderChangePoints(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, renderChangePoints(buf, nil))
	assert.Equal(t, "no change points detected\n", buf.String())

	buf.Reset()
	require.NoError(t, renderChangePoints(buf, []restmodel.APIChangePoint{{
		APIPoint: restmodel.APIPoint{
			Timestamp: 16000,
			Commit:    utility.ToStringPtr("0123456789abcdef"),
			Value:     0.2,
			Unit:      utility.ToStringPtr("iter/sec"),
		},
		Probability: 0.01,
		Algorithm: perf.AlgorithmInfo{
			Name:    "e_divisive_means",
			Options: []perf.AlgorithmOption{{Name: "pvalue", Value: 0.05}},
		},
	}}))
	out := buf.String()
	assert.Contains(t, out, "0123456")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "1970-01-01T00:00:16.000Z")
	assert.Contains(t, out, "e_divisive_means pvalue=0.05")
}

func TestPrintStatus(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, printStatus(buf, &rest.StatusResponse{
		Revision: "abc123",
		Storage:  "file",
		Queue:    amboy.QueueStats{Running: 1, Pending: 2, Completed: 3, Total: 6},
	}))
	assert.Contains(t, buf.String(), "abc123")
	assert.Contains(t, strings.ToUpper(buf.String()), "PENDING")
}

func TestWithOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.txt")
	assert.Error(t, withOutput(path, func(_ io.Writer) error { return nil }))
}
