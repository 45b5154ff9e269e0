package util

import (
	"strconv"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/pkg/errors"
)

// FromUnixMilli converts a millisecond timestamp, as stored in benchmark
// entries, to a UTC time.
func FromUnixMilli(ms int64) time.Time {
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}

// ParseDate accepts either Unix milliseconds or an RFC 3339 timestamp and
// returns Unix milliseconds. The empty string resolves to now.
func ParseDate(in string) (int64, error) {
	if in == "" {
		return utility.UnixMilli(time.Now()), nil
	}

	if ms, err := strconv.ParseInt(in, 10, 64); err == nil {
		return ms, nil
	}

	ts, err := time.Parse(time.RFC3339, in)
	if err != nil {
		return 0, errors.Errorf("date '%s' is neither unix milliseconds nor RFC 3339", in)
	}

	return utility.UnixMilli(ts), nil
}
