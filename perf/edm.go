package perf

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"
)

// DefaultMedianMinSize is the default shortest segment the medians detector
// will report.
const DefaultMedianMinSize = 5

// NewEDMDetector calculates change points using e-divisive with medians.
// It is a deterministic, faster alternative to the means detector that
// tolerates outliers; the change points it returns carry no probability.
func NewEDMDetector(minSize int) (ChangeDetector, error) {
	if minSize < 1 {
		return nil, errors.Errorf("minimum segment size %d must be positive", minSize)
	}

	return &edmDetector{
		minSize: minSize,
		info: AlgorithmInfo{
			Name:    EDivisiveMedians,
			Version: 1,
			Options: []AlgorithmOption{
				{Name: "minSize", Value: minSize},
			},
		},
	}, nil
}

type edmDetector struct {
	minSize int
	info    AlgorithmInfo
}

// unsplitScore seeds every prefix score; prefixes shorter than two segments
// never improve on it.
const unsplitScore = -3.0

// eDivisiveWithMedians returns the first index of every segment but the
// first, in ascending order. It fills, for every prefix series[:end], the
// best segmentation score and the start of that prefix's last segment, then
// walks the segment starts back from the full series.
func (d edmDetector) eDivisiveWithMedians(ctx context.Context, series []float64) ([]int, error) {
	n := len(series)
	if n < 2*d.minSize {
		return []int{}, nil
	}

	lastStart := make([]int, n+1)
	score := make([]float64, n+1)
	for i := range score {
		score[i] = unsplitScore
	}

	head := newMedianWindow(n)
	tail := newMedianWindow(n)
	for end := 2 * d.minSize; end <= n; end++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}

		head.reset(series[lastStart[d.minSize-1] : d.minSize-1])
		tail.reset(series[d.minSize-1 : end])
		for split := d.minSize; split <= end-d.minSize; split++ {
			head.add(series[split-1])
			tail.remove(series[split-1])
			d.moveSegmentStart(head, series, lastStart[split-1], lastStart[split])

			start := lastStart[split]
			weight := float64((split-start)*(end-split)) / math.Pow(float64(end-start), 2)
			candidate := score[split] + weight*math.Pow(head.median()-tail.median(), 2)
			if candidate > score[end] {
				score[end] = candidate
				lastStart[end] = split
			}
		}
	}

	var starts []int
	for at := n; at > 0; at = lastStart[at] {
		if lastStart[at] != 0 {
			starts = append(starts, lastStart[at])
		}
	}
	sort.Ints(starts)
	if starts == nil {
		starts = []int{}
	}

	return starts, nil
}

// moveSegmentStart shifts the head window's first index from one start to
// another, adding or dropping the values in between.
func (edmDetector) moveSegmentStart(head *medianWindow, series []float64, from, to int) {
	for i := from; i < to; i++ {
		head.remove(series[i])
	}
	for i := to; i < from; i++ {
		head.add(series[i])
	}
}

func (d edmDetector) DetectChanges(ctx context.Context, series []float64) ([]ChangePoint, error) {
	results, err := d.eDivisiveWithMedians(ctx, series)
	if err != nil {
		return nil, err
	}

	out := make([]ChangePoint, 0, len(results))
	for _, r := range results {
		out = append(out, ChangePoint{
			Index: r,
			Info:  d.info,
		})
	}
	return out, nil
}
