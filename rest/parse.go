package rest

import (
	"net/url"
	"strconv"

	"github.com/evergreen-ci/larch/query"
	"github.com/evergreen-ci/larch/util"
	"github.com/pkg/errors"
)

const (
	seriesName   = "name"
	seriesLimit  = "limit"
	seriesAfter  = "after"
	seriesBefore = "before"
	backfillArg  = "backfill"
)

func parseTimeRange(vals url.Values, after, before string) (util.TimeRange, error) {
	tr := util.TimeRange{}

	if in := vals.Get(after); in != "" {
		ms, err := util.ParseDate(in)
		if err != nil {
			return util.TimeRange{}, errors.Wrapf(err, "problem parsing '%s'", after)
		}
		tr.After = ms
	}

	if in := vals.Get(before); in != "" {
		ms, err := util.ParseDate(in)
		if err != nil {
			return util.TimeRange{}, errors.Wrapf(err, "problem parsing '%s'", before)
		}
		tr.Before = ms
	}

	if !tr.IsValid() {
		return util.TimeRange{}, errors.Errorf("'%s' must not be later than '%s'", after, before)
	}

	return tr, nil
}

func parsePointOptions(vals url.Values) (query.PointOptions, error) {
	opts := query.PointOptions{}

	if limit := vals.Get(seriesLimit); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return query.PointOptions{}, errors.Errorf("invalid limit '%s'", limit)
		}
		opts.Limit = n
	}

	var err error
	opts.Range, err = parseTimeRange(vals, seriesAfter, seriesBefore)
	if err != nil {
		return query.PointOptions{}, err
	}

	return opts, nil
}

func parseBool(vals url.Values, key string) (bool, error) {
	in := vals.Get(key)
	if in == "" {
		return false, nil
	}

	out, err := strconv.ParseBool(in)
	if err != nil {
		return false, errors.Errorf("invalid value '%s' for '%s'", in, key)
	}
	return out, nil
}
