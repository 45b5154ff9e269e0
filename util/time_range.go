package util

// TimeRange bounds entry dates, in Unix milliseconds. A zero bound is open.
type TimeRange struct {
	After  int64 `json:"after,omitempty" yaml:"after,omitempty"`
	Before int64 `json:"before,omitempty" yaml:"before,omitempty"`
}

func (t TimeRange) IsZero() bool  { return t.After == 0 && t.Before == 0 }
func (t TimeRange) IsValid() bool { return t.Before == 0 || t.After <= t.Before }

// Check returns true if the given date is within the TimeRange (inclusive)
// and false otherwise.
func (t TimeRange) Check(date int64) bool {
	if t.After != 0 && date < t.After {
		return false
	}
	if t.Before != 0 && date > t.Before {
		return false
	}
	return true
}
