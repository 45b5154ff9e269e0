package perf

import (
	"regexp"
	"strconv"
	"strings"
)

var rangeNumber = regexp.MustCompile(`([0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s*(%?)`)

// ParseRange extracts an absolute spread from a measurement's free-text
// range. It understands the forms written by common harnesses:
// "stddev: 0.0012", "± 12", "+/- 3.5%". Percentages are relative to value.
// The second result is false when no spread could be read.
func ParseRange(in string, value float64) (float64, bool) {
	in = strings.TrimSpace(in)
	if in == "" {
		return 0, false
	}

	match := rangeNumber.FindStringSubmatch(in)
	if match == nil {
		return 0, false
	}

	spread, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	if match[2] == "%" {
		spread = spread / 100 * value
	}
	if spread < 0 {
		spread = -spread
	}

	return spread, true
}
