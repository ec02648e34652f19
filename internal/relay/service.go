package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	configpkg "github.com/visiona/vlmrelay/internal/relay/config"
	errspkg "github.com/visiona/vlmrelay/internal/relay/errors"
	loggingpkg "github.com/visiona/vlmrelay/internal/relay/logging"
	metricspkg "github.com/visiona/vlmrelay/internal/relay/metrics"
	registrypkg "github.com/visiona/vlmrelay/internal/relay/registry"
	streampkg "github.com/visiona/vlmrelay/internal/relay/stream"
)

// ServiceDependencies holds the optional collaborators the Service can use.
// Leave fields nil to use the production defaults.
type ServiceDependencies struct {
	// Client overrides the upstream log client, e.g. with a fake in tests.
	Client streampkg.LogClient
	// Registerer overrides the Prometheus registerer.
	Registerer prometheus.Registerer
}

// Service wires the cursor reader, normalizer, subscriber registry, and
// status endpoints into one runnable relay.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	client   streampkg.LogClient
	reader   *streampkg.CursorReader
	registry *registrypkg.Registry
	metrics  *metricspkg.PipelineMetrics

	processed atomic.Int64
	startedAt time.Time

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewService constructs a Service for the supplied configuration. Register
// the transport handler on the returned Service before calling Start.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	client := deps.Client
	if client == nil {
		client = streampkg.NewRedisLogClient(streampkg.RedisOptions{
			Addr:     conf.RedisAddr(),
			Password: conf.RedisPassword,
			Stream:   conf.StreamName,
		})
	}

	reg, err := registrypkg.NewRegistry(log)
	if err != nil {
		return nil, err
	}

	s := &Service{
		Conf:      conf,
		Logger:    log,
		client:    client,
		registry:  reg,
		startedAt: time.Now(),
	}

	reader, err := streampkg.NewCursorReader(client, s.handleEntry,
		log.With(loggingpkg.LogFields{"component": "reader"}),
		streampkg.ReaderOptions{
			ReadBlock:     conf.ReadBlock,
			ReadCount:     conf.ReadCount,
			ReconnectWait: conf.ReconnectWait,
			RetryWait:     conf.RetryWait,
		})
	if err != nil {
		return nil, err
	}
	s.reader = reader

	s.metrics = metricspkg.NewPipelineMetrics(deps.Registerer, metricspkg.Options{
		ConnectedClients: func() float64 { return float64(reg.Count()) },
		UpstreamConnected: func() float64 {
			if reader.Connected() {
				return 1
			}
			return 0
		},
	})

	return s, nil
}

// Registry exposes the subscriber registry so transport adapters can add and
// remove connections.
func (s *Service) Registry() *registrypkg.Registry {
	return s.registry
}

// Start runs the relay until ctx is cancelled: it brings up the status and
// metrics HTTP servers, then blocks pumping the upstream stream. The
// in-flight iteration completes before Start returns.
func (s *Service) Start(ctx context.Context) error {
	s.Logger.Info("starting VLM relay", loggingpkg.LogFields{
		"redis":     s.Conf.RedisAddr(),
		"stream":    s.Conf.StreamName,
		"http_port": s.Conf.HTTPPort,
	})

	if s.Conf.MetricsEnabled {
		if err := s.metrics.Register(); err != nil {
			return err
		}
		if s.Conf.MetricsPort > 0 {
			s.RegisterHTTPHandler(s.Conf.MetricsPort, "/metrics", promhttp.Handler())
		}
	}
	s.registerStatusHandlers()
	s.startHTTPServers()

	s.reader.Run(ctx)

	s.Logger.Info("shutting down VLM relay", nil)
	return s.client.Close()
}

// RegisterHTTPHandler mounts a handler on the mux for the given port. Servers
// are started by Start; registrations after Start are ignored.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				s.Logger.Error("HTTP server failed", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
