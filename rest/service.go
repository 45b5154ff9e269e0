package rest

import (
	"context"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/larch"
	"github.com/evergreen-ci/larch/rest/data"
	"github.com/mongodb/amboy"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Service struct {
	Port        int
	Prefix      string
	Environment larch.Environment

	// internal settings
	queue amboy.Queue
	sc    data.Connector
	app   *gimlet.APIApp
}

func (s *Service) Validate() error {
	if s.Environment == nil {
		return errors.New("must specify an environment")
	}

	if s.queue == nil {
		s.queue = s.Environment.GetQueue()
		if s.queue == nil {
			return errors.New("no queue defined")
		}
	}

	if s.sc == nil {
		s.sc = data.CreateDBConnector(s.Environment)
	}

	if s.app == nil {
		s.app = gimlet.NewApp()
	}

	if s.Port == 0 {
		s.Port = s.Environment.GetConf().Service.Port
	}

	if err := s.app.SetPort(s.Port); err != nil {
		return errors.WithStack(err)
	}

	if s.Prefix != "" {
		s.app.SetPrefix(s.Prefix)
	}

	s.addRoutes()

	return nil
}

func (s *Service) Start(ctx context.Context) error {
	if s.queue == nil || s.app == nil {
		return errors.New("application is not valid")
	}

	if err := s.queue.Start(ctx); err != nil {
		return errors.Wrap(err, "problem starting queue")
	}

	if err := s.app.Resolve(); err != nil {
		return errors.Wrap(err, "problem resolving routes")
	}

	return s.app.Run(ctx)
}

func (s *Service) addRoutes() {
	s.app.AddRoute("/status").Version(1).Get().Handler(s.statusHandler)
	s.app.AddRoute("/metrics").Version(1).Get().Handler(promhttp.Handler().ServeHTTP)

	s.app.AddRoute("/suites").Version(1).Get().RouteHandler(makeGetSuites(s.sc))
	s.app.AddRoute("/suites/{suite}").Version(1).Get().RouteHandler(makeGetSuite(s.sc))
	s.app.AddRoute("/suites/{suite}/series").Version(1).Get().RouteHandler(makeGetSeries(s.sc))
	s.app.AddRoute("/suites/{suite}/change_points").Version(1).Get().RouteHandler(makeGetChangePoints(s.sc))
	s.app.AddRoute("/suites/{suite}/entries").Version(1).Post().RouteHandler(makePostEntry(s.sc))
}
