package rest

import (
	"context"
	"net/http"

	"github.com/evergreen-ci/gimlet"
	dbmodel "github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/query"
	"github.com/evergreen-ci/larch/rest/data"
	"github.com/evergreen-ci/larch/rest/model"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

///////////////////////////////////////////////////////////////////////////////
//
// GET /suites

type suitesGetHandler struct {
	sc data.Connector
}

func makeGetSuites(sc data.Connector) gimlet.RouteHandler {
	return &suitesGetHandler{
		sc: sc,
	}
}

// Factory returns a pointer to a new suitesGetHandler.
func (h *suitesGetHandler) Factory() gimlet.RouteHandler {
	return &suitesGetHandler{
		sc: h.sc,
	}
}

func (h *suitesGetHandler) Parse(_ context.Context, _ *http.Request) error {
	return nil
}

// Run returns a summary of every suite.
func (h *suitesGetHandler) Run(ctx context.Context) gimlet.Responder {
	suites, err := h.sc.FindSuites(ctx)
	if err != nil {
		logReadError(err, message.Fields{
			"request": gimlet.GetRequestID(ctx),
			"method":  "GET",
			"route":   "/suites",
		})
		return gimlet.MakeJSONErrorResponder(err)
	}
	return gimlet.NewJSONResponse(suites)
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /suites/{suite}

type suiteGetHandler struct {
	suite string
	sc    data.Connector
}

func makeGetSuite(sc data.Connector) gimlet.RouteHandler {
	return &suiteGetHandler{
		sc: sc,
	}
}

// Factory returns a pointer to a new suiteGetHandler.
func (h *suiteGetHandler) Factory() gimlet.RouteHandler {
	return &suiteGetHandler{
		sc: h.sc,
	}
}

// Parse fetches the suite name from the http request.
func (h *suiteGetHandler) Parse(_ context.Context, r *http.Request) error {
	h.suite = gimlet.GetVars(r)["suite"]
	return nil
}

// Run returns the summary of the requested suite.
func (h *suiteGetHandler) Run(ctx context.Context) gimlet.Responder {
	summary, err := h.sc.FindSuite(ctx, h.suite)
	if err != nil {
		logReadError(err, message.Fields{
			"request": gimlet.GetRequestID(ctx),
			"method":  "GET",
			"route":   "/suites/{suite}",
			"suite":   h.suite,
		})
		return gimlet.MakeJSONErrorResponder(err)
	}
	return gimlet.NewJSONResponse(summary)
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /suites/{suite}/series?name=<name>&limit=<int>&after=<time>&before=<time>

type seriesGetHandler struct {
	suite string
	name  string
	opts  query.PointOptions
	sc    data.Connector
}

func makeGetSeries(sc data.Connector) gimlet.RouteHandler {
	return &seriesGetHandler{
		sc: sc,
	}
}

// Factory returns a pointer to a new seriesGetHandler.
func (h *seriesGetHandler) Factory() gimlet.RouteHandler {
	return &seriesGetHandler{
		sc: h.sc,
	}
}

// Parse fetches the suite, measurement name, and point options from the
// http request.
func (h *seriesGetHandler) Parse(_ context.Context, r *http.Request) error {
	h.suite = gimlet.GetVars(r)["suite"]

	vals := r.URL.Query()
	h.name = vals.Get(seriesName)
	if h.name == "" {
		return gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    "must specify a measurement name",
		}
	}

	var err error
	h.opts, err = parsePointOptions(vals)
	if err != nil {
		return gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
		}
	}

	return nil
}

// Run returns the data points of the requested series.
func (h *seriesGetHandler) Run(ctx context.Context) gimlet.Responder {
	points, err := h.sc.FindSeries(ctx, h.suite, h.name, h.opts)
	if err != nil {
		logReadError(err, message.Fields{
			"request": gimlet.GetRequestID(ctx),
			"method":  "GET",
			"route":   "/suites/{suite}/series",
			"suite":   h.suite,
			"name":    h.name,
		})
		return gimlet.MakeJSONErrorResponder(err)
	}
	return gimlet.NewJSONResponse(points)
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /suites/{suite}/change_points?name=<name>

type changePointsGetHandler struct {
	suite string
	name  string
	sc    data.Connector
}

func makeGetChangePoints(sc data.Connector) gimlet.RouteHandler {
	return &changePointsGetHandler{
		sc: sc,
	}
}

// Factory returns a pointer to a new changePointsGetHandler.
func (h *changePointsGetHandler) Factory() gimlet.RouteHandler {
	return &changePointsGetHandler{
		sc: h.sc,
	}
}

// Parse fetches the suite and measurement name from the http request.
func (h *changePointsGetHandler) Parse(_ context.Context, r *http.Request) error {
	h.suite = gimlet.GetVars(r)["suite"]
	h.name = r.URL.Query().Get(seriesName)
	if h.name == "" {
		return gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    "must specify a measurement name",
		}
	}
	return nil
}

// Run detects change points in the requested series.
func (h *changePointsGetHandler) Run(ctx context.Context) gimlet.Responder {
	changePoints, err := h.sc.FindChangePoints(ctx, h.suite, h.name)
	if err != nil {
		logReadError(err, message.Fields{
			"request": gimlet.GetRequestID(ctx),
			"method":  "GET",
			"route":   "/suites/{suite}/change_points",
			"suite":   h.suite,
			"name":    h.name,
		})
		return gimlet.MakeJSONErrorResponder(err)
	}
	return gimlet.NewJSONResponse(changePoints)
}

///////////////////////////////////////////////////////////////////////////////
//
// POST /suites/{suite}/entries?backfill=<bool>

type entryPostHandler struct {
	suite    string
	backfill bool
	entry    dbmodel.Entry
	sc       data.Connector
}

func makePostEntry(sc data.Connector) gimlet.RouteHandler {
	return &entryPostHandler{
		sc: sc,
	}
}

// Factory returns a pointer to a new entryPostHandler.
func (h *entryPostHandler) Factory() gimlet.RouteHandler {
	return &entryPostHandler{
		sc: h.sc,
	}
}

// Parse fetches the suite, the backfill flag, and the entry from the http
// request.
func (h *entryPostHandler) Parse(_ context.Context, r *http.Request) error {
	h.suite = gimlet.GetVars(r)["suite"]

	var err error
	h.backfill, err = parseBool(r.URL.Query(), backfillArg)
	if err != nil {
		return gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
		}
	}

	apiEntry := model.APIEntry{}
	if err = gimlet.GetJSON(r.Body, &apiEntry); err != nil {
		return gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    errors.Wrap(err, "problem parsing entry").Error(),
		}
	}

	entry, err := apiEntry.Export()
	if err != nil {
		return gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
		}
	}
	h.entry = entry.(dbmodel.Entry)

	return nil
}

// Run ingests the entry and returns the regression verdicts.
func (h *entryPostHandler) Run(ctx context.Context) gimlet.Responder {
	resp, err := h.sc.IngestEntry(ctx, h.suite, h.entry, h.backfill)
	if err != nil {
		grip.Warning(message.WrapError(err, message.Fields{
			"request":  gimlet.GetRequestID(ctx),
			"method":   "POST",
			"route":    "/suites/{suite}/entries",
			"suite":    h.suite,
			"commit":   h.entry.Commit.ID,
			"backfill": h.backfill,
		}))
		return gimlet.MakeJSONErrorResponder(err)
	}
	return gimlet.NewJSONResponse(resp)
}
