package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/larch"
	dbmodel "github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/query"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ClientSuite struct {
	service *Service
	client  *Client
	server  *httptest.Server
	info    struct {
		host string
		port int
	}
	ctx    context.Context
	closer context.CancelFunc
	env    larch.Environment
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupSuite() {
	s.ctx, s.closer = context.WithCancel(context.Background())
	require := s.Require()

	conf := larch.NewConfiguration()
	conf.RepoURL = "https://github.com/example/repo"
	conf.Storage.Path = filepath.Join(s.T().TempDir(), "data.js")
	conf.Detector.Threshold = 0.25

	var err error
	s.env, err = larch.NewEnvironment(s.ctx, "larch-client-test", conf)
	require.NoError(err)

	s.service = &Service{Environment: s.env, Prefix: "rest"}
	require.NoError(s.service.Validate())
	require.NoError(s.service.queue.Start(s.ctx))

	app := s.service.app
	require.NoError(app.Resolve())
	router, err := app.Router()
	require.NoError(err)
	s.server = httptest.NewServer(router)

	portStart := strings.LastIndex(s.server.URL, ":")
	port, err := strconv.Atoi(s.server.URL[portStart+1:])
	require.NoError(err)
	s.info.host = s.server.URL[:portStart]
	s.info.port = port
	grip.Infof("running test REST service at '%s', on port '%d'", s.info.host, s.info.port)
}

func (s *ClientSuite) TearDownSuite() {
	grip.Infof("closing test REST service at '%s', on port '%d'", s.info.host, s.info.port)
	s.server.Close()
	s.NoError(s.env.Close(s.ctx))
	s.closer()
}

func (s *ClientSuite) SetupTest() {
	s.client = &Client{}
}

func (s *ClientSuite) serviceClient() *Client {
	c, err := NewClient(s.info.host, s.info.port, "/rest/")
	s.Require().NoError(err)
	return c
}

func clientEntry(id string, date int64, value float64) dbmodel.Entry {
	return dbmodel.Entry{
		Commit: dbmodel.CommitInfo{ID: id},
		Date:   date,
		Tool:   "pytest",
		Benches: []dbmodel.Measurement{
			{Name: "tests/test_load.py::load_15min", Value: value, Unit: "iter/sec"},
		},
	}
}

func statusCode(err error) int {
	var resp gimlet.ErrorResponse
	if errors.As(err, &resp) {
		return resp.StatusCode
	}
	return 0
}

////////////////////////////////////////////////////////////////////////
//
// A collection of tests that exercise and test the consistency and
// validation in the configuration interface for the REST client.
//
////////////////////////////////////////////////////////////////////////

func (s *ClientSuite) TestClientGetter() {
	s.Exactly(s.client.Client(), s.client.client)
}

func (s *ClientSuite) TestSetHostRequiresHttpURL() {
	example := "http://exmaple.com"

	s.Equal("", s.client.Host())
	s.NoError(s.client.SetHost(example))
	s.Equal(example, s.client.Host())

	for _, uri := range []string{"foo", "1", "true", "htp", "ssh"} {
		s.Error(s.client.SetHost(uri))
		s.Equal(example, s.client.Host())
	}
}

func (s *ClientSuite) TestSetHostStripsTrailingSlash() {
	for _, uri := range []string{"http://foo.example.com/", "https://extra.example.net/bar/s/"} {
		s.NoError(s.client.SetHost(uri))
		s.Equal(uri[:len(uri)-1], s.client.Host())
	}
}

func (s *ClientSuite) TestPortSetterDisallowsInvalidPorts() {
	s.Equal(0, s.client.Port())

	for _, p := range []int{0, -1, 65536, 70000} {
		s.Error(s.client.SetPort(p), strconv.Itoa(p))
		s.Equal(3000, s.client.Port())
	}
}

func (s *ClientSuite) TestPortSetterRoundTripsValidPortsWithGetter() {
	for _, p := range []int{65, 8080, 1400} {
		s.NoError(s.client.SetPort(p), strconv.Itoa(p))
		s.Equal(p, s.client.Port())
	}
}

func (s *ClientSuite) TestSetPrefixRemovesTrailingAndLeadingSlashes() {
	s.Equal("", s.client.Prefix())

	for _, p := range []string{"/foo", "foo/", "/foo/"} {
		s.NoError(s.client.SetPrefix(p))
		s.Equal("foo", s.client.Prefix())
	}
}

////////////////////////////////////////////////////////////////////////
//
// Client Initialization Checks/Tests
//
////////////////////////////////////////////////////////////////////////

func (s *ClientSuite) TestNewClientPropagatesValidValues() {
	nc, err := NewClient("http://example.com", 8080, "rest")
	s.Require().NoError(err)
	defer nc.Close()

	s.Equal(8080, nc.Port())
	s.Equal("http://example.com", nc.Host())
	s.Equal("rest", nc.Prefix())
}

func (s *ClientSuite) TestNewClientReturnsPooledClientOnClose() {
	nc, err := NewClient("http://example.com", 8080, "rest")
	s.Require().NoError(err)
	s.True(nc.pooled)
	s.Require().NotNil(nc.Client())
	s.NotZero(nc.Client().Timeout)

	nc.Close()
	s.Nil(nc.Client())

	existing, err := NewClientFromExisting(&http.Client{}, "http://example.com", 8080, "rest")
	s.Require().NoError(err)
	s.False(existing.pooled)
}

func (s *ClientSuite) TestNewClientRejectsInvalidSettings() {
	nc, err := NewClient("http://example.com", 900000000, "/rest/")
	s.Error(err)
	s.Nil(nc)

	nc, err = NewClient("foo", 3000, "")
	s.Error(err)
	s.Nil(nc)
}

func (s *ClientSuite) TestNewClientFromExistingUsesExistingHTTPClient() {
	client := &http.Client{}

	nc, err := NewClientFromExisting(client, "http://example.com", 2048, "rest")
	s.Require().NoError(err)
	s.Exactly(client, nc.Client())

	nc, err = NewClientFromExisting(nil, "http://example.com", 2048, "rest")
	s.Error(err)
	s.Nil(nc)
}

func (s *ClientSuite) TestNewClientFromURL() {
	for url, expected := range map[string]string{
		"http://localhost:3000/rest": "http://localhost:3000/rest/v1/suites",
		"http://example.com/":        "http://example.com/v1/suites",
		"https://example.com/larch":  "https://example.com:443/larch/v1/suites",
	} {
		nc, err := NewClientFromURL(url)
		s.Require().NoError(err, url)
		s.Equal(expected, nc.getURL("/v1/suites"), url)
		nc.Close()
	}

	for _, url := range []string{"localhost:3000", "://", "http://localhost:port"} {
		_, err := NewClientFromURL(url)
		s.Error(err, url)
	}
}

func (s *ClientSuite) TestClosedClientErrors() {
	nc := s.serviceClient()
	nc.Close()
	s.Nil(nc.Client())

	_, err := nc.GetStatus(s.ctx)
	s.Error(err)
}

////////////////////////////////////////////////////////////////////////
//
// Client/Service Interaction: internals and helpers
//
////////////////////////////////////////////////////////////////////////

func (s *ClientSuite) TestURLGenerationWithoutDefaultPortInResult() {
	s.NoError(s.client.SetHost("http://larch.example.net"))

	for _, p := range []int{0, 80} {
		s.client.port = p

		s.Equal("http://larch.example.net/foo", s.client.getURL("foo"))
	}
}

func (s *ClientSuite) TestURLGenerationWithNonDefaultPort() {
	for _, p := range []int{82, 8080, 3000, 42420, 2048} {
		s.NoError(s.client.SetPort(p))
		host := "http://larch.example.net"
		s.NoError(s.client.SetHost(host))
		s.NoError(s.client.SetPrefix("/rest"))

		expected := strings.Join([]string{host, ":", strconv.Itoa(p), "/rest", "/v1/status"}, "")
		s.Equal(expected, s.client.getURL("/v1/status"))
	}
}

func (s *ClientSuite) TestSuitePathEscapesSuiteNames() {
	s.Equal("/v1/suites/Python%20Benchmark/series", suitePath("Python Benchmark", "series"))
	s.Equal("/v1/suites/Go", suitePath("Go"))
}

////////////////////////////////////////////////////////////////////////
//
// Client/Service Interaction: Public Methods
//
////////////////////////////////////////////////////////////////////////

func (s *ClientSuite) TestStatus() {
	c := s.serviceClient()
	defer c.Close()

	status, err := c.GetStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(larch.BuildRevision, status.Revision)
	s.Equal(larch.StorageFile, status.Storage)
}

func (s *ClientSuite) TestIngestAndQuery() {
	c := s.serviceClient()
	defer c.Close()
	const suiteName = "Python Benchmark"
	const name = "tests/test_load.py::load_15min"

	resp, err := c.IngestEntry(s.ctx, suiteName, clientEntry("a", 1000, 0.108), false)
	s.Require().NoError(err)
	s.Equal(1, resp.Entries)
	s.Empty(resp.Verdicts)

	resp, err = c.IngestEntry(s.ctx, suiteName, clientEntry("b", 2000, 0.054), false)
	s.Require().NoError(err)
	s.Equal(2, resp.Entries)
	s.Equal(1, resp.Regressions)
	s.Require().Len(resp.Verdicts, 1)
	s.InDelta(0.5, resp.Verdicts[0].Ratio, 1e-9)

	_, err = c.IngestEntry(s.ctx, suiteName, clientEntry("c", 1500, 0.1), false)
	s.Require().Error(err)
	s.Equal(http.StatusConflict, statusCode(err))

	_, err = c.IngestEntry(s.ctx, suiteName, clientEntry("", 3000, 0.1), false)
	s.Require().Error(err)
	s.Equal(http.StatusBadRequest, statusCode(err))

	resp, err = c.IngestEntry(s.ctx, suiteName, clientEntry("c", 1500, 0.1), true)
	s.Require().NoError(err)
	s.Equal(3, resp.Entries)

	suites, err := c.GetSuites(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(suites, 1)
	s.Equal(suiteName, utility.FromStringPtr(suites[0].Name))

	summary, err := c.GetSuite(s.ctx, suiteName)
	s.Require().NoError(err)
	s.Equal(3, summary.Entries)
	s.Equal([]string{name}, summary.Measurements)

	points, err := c.GetSeries(s.ctx, suiteName, name, query.PointOptions{})
	s.Require().NoError(err)
	s.Require().Len(points, 3)
	s.Equal("c", utility.FromStringPtr(points[1].Commit))

	points, err = c.GetSeries(s.ctx, suiteName, name, query.PointOptions{Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(points, 2)
	s.Equal("b", utility.FromStringPtr(points[1].Commit))

	changePoints, err := c.GetChangePoints(s.ctx, suiteName, name)
	s.Require().NoError(err)
	s.Empty(changePoints)

	_, err = c.GetSuite(s.ctx, "Rust Benchmark")
	s.Require().Error(err)
	s.Equal(http.StatusNotFound, statusCode(err))

	_, err = c.GetSeries(s.ctx, suiteName, "missing", query.PointOptions{})
	s.Require().Error(err)
	s.Equal(http.StatusNotFound, statusCode(err))
}

func (s *ClientSuite) TestMetrics() {
	c := s.serviceClient()
	defer c.Close()

	resp, err := http.Get(c.getURL("/v1/metrics"))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}
