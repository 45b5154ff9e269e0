package model

import (
	"encoding/json"
	"time"

	"github.com/evergreen-ci/larch/util"
	"github.com/pkg/errors"
)

// APITimeFormat renders times in UTC with millisecond precision, matching
// the precision of benchmark entry dates.
const APITimeFormat = "2006-01-02T15:04:05.000Z07:00"

// APITime is a time that always marshals as UTC.
type APITime time.Time

// NewTime returns t as an APITime in UTC.
func NewTime(t time.Time) APITime {
	return APITime(t.UTC())
}

// NewTimeFromMillis converts an entry date in Unix milliseconds.
func NewTimeFromMillis(ms int64) APITime {
	return NewTime(util.FromUnixMilli(ms))
}

func (t APITime) Time() time.Time { return time.Time(t) }

func (t APITime) MarshalJSON() ([]byte, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(tt.UTC().Format(APITimeFormat))
}

func (t *APITime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = APITime(time.Time{})
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.Wrap(err, "problem parsing time")
	}

	tt, err := time.Parse(APITimeFormat, str)
	if err != nil {
		return errors.Wrapf(err, "problem parsing time '%s'", str)
	}
	*t = NewTime(tt)

	return nil
}
