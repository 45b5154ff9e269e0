package perf

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

const (
	// Shorter segments produce no q-hat values.
	minSegmentLength = 5

	EDivisiveMeans   = "e_divisive_means"
	EDivisiveMedians = "e_divisive_with_medians"

	DefaultChangePointPValue       = 0.05
	DefaultChangePointPermutations = 100
	DefaultChangePointSeed         = 1234
)

type segment struct {
	Start int
	End   int
}

type candidate struct {
	Index       int
	Q           float64
	Probability float64
	segment
}

type eDivisiveDetector struct {
	seed         int64
	pvalue       float64
	permutations int
	info         AlgorithmInfo
}

// NewEDivisiveDetector uses the e-divisive means (q-hat) algorithm to return
// change points for a series. A candidate is accepted while the fraction of
// random permutations of its segments producing an equal or larger q-hat
// stays at or below pvalue. The permutations are seeded, so results are
// reproducible.
func NewEDivisiveDetector(pvalue float64, permutations int, seed int64) (ChangeDetector, error) {
	if pvalue <= 0 || pvalue >= 1 {
		return nil, errors.Errorf("p-value %g must be in (0, 1)", pvalue)
	}
	if permutations < 1 {
		return nil, errors.Errorf("permutations %d must be positive", permutations)
	}

	return &eDivisiveDetector{
		seed:         seed,
		pvalue:       pvalue,
		permutations: permutations,
		info: AlgorithmInfo{
			Name:    EDivisiveMeans,
			Version: 1,
			Options: []AlgorithmOption{
				{Name: "pvalue", Value: pvalue},
				{Name: "permutations", Value: permutations},
				{Name: "seed", Value: seed},
			},
		},
	}, nil
}

func (eDivisiveDetector) distances(series []float64) []float64 {
	length := len(series)
	diffs := make([]float64, length*length)
	for row := 0; row < length; row++ {
		for column := row; column < length; column++ {
			delta := math.Abs(series[row] - series[column])
			diffs[row*length+column] = delta
			diffs[column*length+row] = delta
		}
	}
	return diffs
}

func (eDivisiveDetector) q(term1, term2, term3 float64, suffix, prefix int) float64 {
	m := float64(suffix)
	n := float64(prefix)

	term1Reg := term1 * (2.0 / (m * n))
	term2Reg := term2 * (2.0 / (n * (n - 1)))
	term3Reg := term3 * (2.0 / (m * (m - 1)))
	scale := float64(int((m * n) / (m + n)))
	return scale * (term1Reg - term2Reg - term3Reg)
}

// qHat returns the q-hat statistic of every split point of series. The
// terms are updated incrementally as the split point moves right.
func (d *eDivisiveDetector) qHat(series []float64) []float64 {
	length := len(series)
	values := make([]float64, length)
	if length < minSegmentLength {
		return values
	}

	diffs := d.distances(series)

	n := 2
	m := length - n

	term1 := 0.0
	for i := 0; i < n; i++ {
		for j := n; j < length; j++ {
			term1 += diffs[i*length+j]
		}
	}
	term2 := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			term2 += diffs[i*length+j]
		}
	}
	term3 := 0.0
	for i := n; i < length; i++ {
		for j := i + 1; j < length; j++ {
			term3 += diffs[i*length+j]
		}
	}

	values[n] = d.q(term1, term2, term3, m, n)

	for n = 3; n < length-2; n++ {
		m = length - n

		rowDelta := 0.0
		for j := 0; j < n-1; j++ {
			rowDelta += diffs[(n-1)*length+j]
		}
		columnDelta := 0.0
		for j := n - 1; j < length; j++ {
			columnDelta += diffs[j*length+n-1]
		}

		term1 = term1 - rowDelta + columnDelta
		term2 += rowDelta
		term3 -= columnDelta

		values[n] = d.q(term1, term2, term3, m, n)
	}

	return values
}

// argmax returns the index and value of the largest q, the first on ties.
func (eDivisiveDetector) argmax(values []float64) (int, float64) {
	var (
		index int
		value float64
	)
	for i, v := range values {
		if v > value {
			index = i
			value = v
		}
	}
	return index, value
}

// permutationExceeds shuffles a copy of every segment and reports whether
// the largest q-hat of any shuffled segment reaches q.
func (d *eDivisiveDetector) permutationExceeds(rng *rand.Rand, series []float64, segments []segment, q float64) bool {
	series = append([]float64{}, series...)
	maxQ := -1.0
	for _, s := range segments {
		window := series[s.Start:s.End]
		rng.Shuffle(len(window), func(i, j int) { window[i], window[j] = window[j], window[i] })

		if _, winMax := d.argmax(d.qHat(window)); winMax > maxQ {
			maxQ = winMax
		}
	}
	return maxQ >= q
}

// split divides the segment containing index in two.
func (eDivisiveDetector) split(segments []segment, index int) []segment {
	for i, s := range segments {
		if s.Start < index && index < s.End {
			segments[i].End = index
			segments = append(segments, segment{Start: index, End: s.End})
			break
		}
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
	return segments
}

// refine replaces the accepted candidate at index with the best candidates
// of the two segments it produced. Candidates stay sorted by q ascending.
func (d *eDivisiveDetector) refine(series []float64, candidates []candidate, index int) []candidate {
	found := -1
	for i, c := range candidates {
		if c.Index == index {
			found = i
		}
	}
	if found < 0 {
		return candidates
	}

	start, end := candidates[found].Start, candidates[found].End

	left, leftQ := d.argmax(d.qHat(series[start:index]))
	candidates[found] = candidate{Index: left + start, Q: leftQ, segment: segment{Start: start, End: index}}

	right, rightQ := d.argmax(d.qHat(series[index:end]))
	candidates = append(candidates, candidate{Index: right + index, Q: rightQ, segment: segment{Start: index, End: end}})

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Q < candidates[j].Q })
	return candidates
}

func (d *eDivisiveDetector) DetectChanges(ctx context.Context, series []float64) ([]ChangePoint, error) {
	out := []ChangePoint{}
	if len(series) < minSegmentLength {
		return out, nil
	}

	rng := rand.New(rand.NewSource(d.seed))
	segments := []segment{{Start: 0, End: len(series)}}
	index, q := d.argmax(d.qHat(series))
	candidates := []candidate{{Index: index, Q: q, segment: segments[0]}}

	accepted := []candidate{}
	for len(accepted) < len(series) {
		best := candidates[len(candidates)-1]
		if best.Q <= 0 {
			break
		}

		countAbove := 0
		for i := 0; i < d.permutations; i++ {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "change point detection canceled")
			}
			if d.permutationExceeds(rng, series, segments, best.Q) {
				countAbove++
			}
		}

		probability := float64(1+countAbove) / float64(d.permutations+1)
		if probability > d.pvalue {
			break
		}

		best.Probability = probability
		accepted = append(accepted, best)
		segments = d.split(segments, best.Index)
		candidates = d.refine(series, candidates, best.Index)
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Index < accepted[j].Index })
	for _, c := range accepted {
		out = append(out, ChangePoint{
			Index:       c.Index,
			Probability: c.Probability,
			Info:        d.info,
		})
	}
	return out, nil
}
