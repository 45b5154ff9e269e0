package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/evergreen-ci/gimlet"
	dbmodel "github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/query"
	"github.com/evergreen-ci/larch/rest/model"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const (
	defaultClientPort int = 3000
	maxClientPort         = 65535
)

// Client provides an interface for interacting with a remote larch
// Service.
type Client struct {
	host   string
	prefix string
	port   int
	client *http.Client
	pooled bool
}

// NewClient takes host, port, and URI prefix information and constructs a
// new Client backed by a pooled http.Client. Call Close to return it.
func NewClient(host string, port int, prefix string) (*Client, error) {
	c := &Client{client: utility.GetHTTPClient(), pooled: true}

	return c.initClient(host, port, prefix)
}

// NewClientFromExisting takes an existing http.Client object and produces a
// new Client object.
func NewClientFromExisting(client *http.Client, host string, port int, prefix string) (*Client, error) {
	if client == nil {
		return nil, errors.New("must use a non-nil existing client")
	}

	c := &Client{client: client}

	return c.initClient(host, port, prefix)
}

// NewClientFromURL splits a service URL such as
// "http://localhost:3000/rest" into host, port, and prefix.
func NewClientFromURL(serviceURL string) (*Client, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, errors.Wrapf(err, "problem parsing service url '%s'", serviceURL)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return nil, errors.Errorf("service url '%s' must include a scheme and host", serviceURL)
	}

	port := 80
	if u.Port() != "" {
		if port, err = strconv.Atoi(u.Port()); err != nil {
			return nil, errors.Wrapf(err, "invalid port in '%s'", serviceURL)
		}
	} else if u.Scheme == "https" {
		port = 443
	}

	return NewClient(fmt.Sprintf("%s://%s", u.Scheme, u.Hostname()), port, u.Path)
}

// Close returns a pooled http.Client. The Client must not be used
// afterwards.
func (c *Client) Close() {
	if c.pooled && c.client != nil {
		utility.PutHTTPClient(c.client)
	}
	c.client = nil
}

func (c *Client) initClient(host string, port int, prefix string) (*Client, error) {
	if err := c.SetHost(host); err != nil {
		return nil, err
	}

	if err := c.SetPort(port); err != nil {
		return nil, err
	}

	if err := c.SetPrefix(prefix); err != nil {
		return nil, err
	}

	return c, nil
}

////////////////////////////////////////////////////////////////////////
//
// Configuration Interface
//
////////////////////////////////////////////////////////////////////////

// Client returns a pointer to embedded http.Client object.
func (c *Client) Client() *http.Client {
	return c.client
}

// SetHost allows callers to change the hostname (including leading
// "http(s)") for the Client. Returns an error if the specified host does
// not start with "http".
func (c *Client) SetHost(h string) error {
	if !strings.HasPrefix(h, "http") {
		return errors.Errorf("host '%s' is malformed. must start with 'http'", h)
	}

	c.host = strings.TrimSuffix(h, "/")

	return nil
}

// Host returns the current host.
func (c *Client) Host() string {
	return c.host
}

// SetPort allows callers to change the port used for the client. If the
// port is invalid, returns an error and sets the port to the default value.
// (3000)
func (c *Client) SetPort(p int) error {
	if p <= 0 || p >= maxClientPort {
		c.port = defaultClientPort
		return errors.Errorf("cannot set the port to %d, using %d instead", p, defaultClientPort)
	}

	c.port = p
	return nil
}

// Port returns the current port value for the Client.
func (c *Client) Port() int {
	return c.port
}

// SetPrefix allows callers to modify the prefix, for this client,
func (c *Client) SetPrefix(p string) error {
	c.prefix = strings.Trim(p, "/")
	return nil
}

// Prefix accesses the prefix for the client, The prefix is the part of the
// URI between the end-point and the hostname, of the API.
func (c *Client) Prefix() string {
	return c.prefix
}

func (c *Client) getURL(endpoint string) string {
	var url []string

	if c.port == 80 || c.port == 0 {
		url = append(url, c.host)
	} else {
		url = append(url, fmt.Sprintf("%s:%d", c.host, c.port))
	}

	if c.prefix != "" {
		url = append(url, c.prefix)
	}

	if endpoint = strings.Trim(endpoint, "/"); endpoint != "" {
		url = append(url, endpoint)
	}

	return strings.Join(url, "/")
}

func suitePath(suite string, parts ...string) string {
	return strings.Join(append([]string{"/v1/suites", url.PathEscape(suite)}, parts...), "/")
}

////////////////////////////////////////////////////////////////////////
//
// Public Operations that Interact with the Service
//
////////////////////////////////////////////////////////////////////////

func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	out := &StatusResponse{}
	if err := c.do(ctx, http.MethodGet, c.getURL("/v1/status"), nil, out); err != nil {
		return nil, errors.Wrap(err, "problem getting status")
	}
	return out, nil
}

// GetSuites returns a summary of every suite.
func (c *Client) GetSuites(ctx context.Context) ([]model.APISuiteSummary, error) {
	out := []model.APISuiteSummary{}
	if err := c.do(ctx, http.MethodGet, c.getURL("/v1/suites"), nil, &out); err != nil {
		return nil, errors.Wrap(err, "problem listing suites")
	}
	return out, nil
}

// GetSuite returns a summary of one suite.
func (c *Client) GetSuite(ctx context.Context, suite string) (*model.APISuiteSummary, error) {
	out := &model.APISuiteSummary{}
	if err := c.do(ctx, http.MethodGet, c.getURL(suitePath(suite)), nil, out); err != nil {
		return nil, errors.Wrapf(err, "problem getting suite '%s'", suite)
	}
	return out, nil
}

// GetSeries returns the data points of a measurement of a suite.
func (c *Client) GetSeries(ctx context.Context, suite, name string, opts query.PointOptions) ([]model.APIPoint, error) {
	vals := url.Values{}
	vals.Set(seriesName, name)
	if opts.Limit > 0 {
		vals.Set(seriesLimit, strconv.Itoa(opts.Limit))
	}
	if opts.Range.After != 0 {
		vals.Set(seriesAfter, strconv.FormatInt(opts.Range.After, 10))
	}
	if opts.Range.Before != 0 {
		vals.Set(seriesBefore, strconv.FormatInt(opts.Range.Before, 10))
	}

	out := []model.APIPoint{}
	if err := c.do(ctx, http.MethodGet, c.getURL(suitePath(suite, "series"))+"?"+vals.Encode(), nil, &out); err != nil {
		return nil, errors.Wrapf(err, "problem getting series '%s' of suite '%s'", name, suite)
	}
	return out, nil
}

// GetChangePoints returns the change points of a measurement of a suite.
func (c *Client) GetChangePoints(ctx context.Context, suite, name string) ([]model.APIChangePoint, error) {
	vals := url.Values{}
	vals.Set(seriesName, name)

	out := []model.APIChangePoint{}
	if err := c.do(ctx, http.MethodGet, c.getURL(suitePath(suite, "change_points"))+"?"+vals.Encode(), nil, &out); err != nil {
		return nil, errors.Wrapf(err, "problem getting change points of '%s' in suite '%s'", name, suite)
	}
	return out, nil
}

// IngestEntry posts an entry to the service. Rejections are returned as
// gimlet.ErrorResponse values carrying the status code.
func (c *Client) IngestEntry(ctx context.Context, suite string, entry dbmodel.Entry, backfill bool) (*model.APIIngestResponse, error) {
	apiEntry := model.APIEntry{}
	if err := apiEntry.Import(entry); err != nil {
		return nil, errors.WithStack(err)
	}
	payload, err := json.Marshal(apiEntry)
	if err != nil {
		return nil, errors.Wrap(err, "problem encoding entry")
	}

	target := c.getURL(suitePath(suite, "entries"))
	if backfill {
		target += "?" + backfillArg + "=true"
	}

	out := &model.APIIngestResponse{}
	if err = c.do(ctx, http.MethodPost, target, payload, out); err != nil {
		return nil, errors.Wrapf(err, "problem ingesting entry into suite '%s'", suite)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte, out interface{}) error {
	if c.client == nil {
		return errors.New("client is closed")
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return errors.Wrap(err, "problem building request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	grip.Debug(message.Fields{
		"message": "larch rest request",
		"method":  method,
		"url":     target,
	})

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "problem making request to '%s'", target)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errResp := gimlet.ErrorResponse{}
		if err = gimlet.GetJSON(resp.Body, &errResp); err != nil || errResp.Message == "" {
			errResp.Message = http.StatusText(resp.StatusCode)
		}
		errResp.StatusCode = resp.StatusCode
		return errResp
	}

	return errors.Wrap(gimlet.GetJSON(resp.Body, out), "problem reading response")
}
