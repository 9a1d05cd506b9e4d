package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/limits"
	"mercator-hq/gatekeeper/pkg/limits/ratelimit"
	"mercator-hq/gatekeeper/pkg/profile"
	"mercator-hq/gatekeeper/pkg/proxy"
	"mercator-hq/gatekeeper/pkg/security/auth"
	gktls "mercator-hq/gatekeeper/pkg/security/tls"
	"mercator-hq/gatekeeper/pkg/telemetry/health"
	"mercator-hq/gatekeeper/pkg/telemetry/metrics"
	"mercator-hq/gatekeeper/pkg/telemetry/tracing"
)

// Options supplies collaborators that are not derived from configuration.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Version is reported on /version.
	Version health.VersionInfo

	// Store replaces the profile store built from cfg.Profiles.
	Store profile.Store

	// Transport replaces the upstream HTTP transport.
	Transport http.RoundTripper

	// Clock drives limiter refill. Defaults to the system clock.
	Clock ratelimit.Clock
}

// Server is the gatekeeper HTTP server. It authenticates callers, admits
// or rejects them against their tenant's rate limits and forwards admitted
// requests upstream.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	version   health.VersionInfo
	collector *metrics.Collector
	tracer    *tracing.Tracer
	store     profile.Store
	cache     *profile.Cache
	manager   *limits.Manager
	validator *auth.APIKeyValidator
	checker   *health.Checker
	upstream  *proxy.Upstream
	scheduler *profile.RefreshScheduler
	certs     *gktls.CertificateReloader
	tlsConfig *tls.Config
	handler   http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	cancel     context.CancelFunc
	running    bool
	background sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error
}

// New assembles a server from cfg. The returned server owns the profile
// store and closes it on Shutdown. If New fails it releases the tracer and
// the store itself.
func New(cfg *config.Config, opts Options) (_ *Server, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		version: opts.Version,
		store:   opts.Store,
	}
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	if cfg.Server.TLS.Enabled {
		tc := &cfg.Server.TLS
		if s.certs, err = gktls.NewCertificateReloader(tc.CertFile, tc.KeyFile, logger); err != nil {
			return nil, err
		}
		if s.tlsConfig, err = gktls.ServerConfig(tc, s.certs); err != nil {
			return nil, err
		}
	}

	s.tracer, err = tracing.New(&cfg.Telemetry.Tracing, opts.Version.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	if s.store == nil {
		s.store, err = OpenProfileStore(context.Background(), &cfg.Profiles, logger)
		if err != nil {
			return nil, err
		}
	}

	s.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	cacheOpts := []profile.CacheOption{
		profile.WithTTL(cfg.Profiles.CacheTTL),
		profile.WithLogger(logger),
	}
	var admissionMetrics *limits.Metrics
	if s.collector.Enabled() {
		cacheOpts = append(cacheOpts, profile.WithObserver(s.collector.Cache()))
		admissionMetrics = limits.NewMetrics(cfg.Telemetry.Metrics.Namespace, s.collector.Registry())
	}
	s.cache = profile.NewCache(s.store, cacheOpts...)

	s.manager = limits.NewManager(limits.Config{
		Profiles:         s.cache,
		Metrics:          admissionMetrics,
		Logger:           logger,
		Clock:            opts.Clock,
		FaultLogInterval: cfg.Limits.FaultLogInterval,
	})
	if cfg.Limits.InvalidateOnProfileChange {
		s.cache.OnChange(func(tenant limits.TenantID) {
			n := s.manager.InvalidateTenant(tenant)
			logger.Info("profile changed, limiters dropped",
				"tenant_id", string(tenant),
				"limiters", n,
			)
		})
	}

	if cfg.Security.Authentication.Enabled {
		s.validator = auth.NewAPIKeyValidator(apiKeys(cfg.Security.Authentication.Keys))
	}

	s.checker = health.New(cfg.Telemetry.Health.CheckTimeout)
	if p, ok := s.store.(profile.Pinger); ok {
		s.checker.RegisterCheck("profiles", health.PingCheck(p))
	}

	s.upstream, err = proxy.NewUpstream(&cfg.Upstream, proxy.Options{
		Transport: opts.Transport,
		Failures:  s.collector,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Profiles.RefreshSchedule != config.RefreshDisabled {
		s.scheduler = profile.NewRefreshScheduler(s.cache, cfg.Profiles.RefreshSchedule)
	}

	s.handler = s.routes()
	return s, nil
}

// Start listens on the configured address and serves until ctx is
// cancelled, Shutdown is called or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Server.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.ListenAddress, err)
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	bgCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.startBackground(bgCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting gatekeeper",
			"address", ln.Addr().String(),
			"tls", s.tlsConfig != nil,
			"upstream", s.upstream.Target().String(),
			"limits_enabled", s.cfg.Limits.Enabled,
			"profiles_source", s.cfg.Profiles.Source,
		)
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errCh:
		shutdownErr := s.Shutdown(context.Background())
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return shutdownErr
	}
}

// startBackground runs the refresh scheduler and the profile and
// certificate file watchers.
func (s *Server) startBackground(ctx context.Context) {
	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			s.logger.Error("failed to start profile refresh", "error", err)
		}
	}

	if s.certs != nil && s.cfg.Server.TLS.Watch {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			if err := s.certs.Watch(ctx, 0); err != nil {
				s.logger.Error("certificate watcher failed", "error", err)
			}
		}()
	}

	if !s.cfg.Profiles.Watch {
		return
	}
	switch store := s.store.(type) {
	case *profile.FileStore:
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			if err := store.Watch(ctx, s.cfg.Profiles.WatchDebounce); err != nil {
				s.logger.Error("profile watcher failed", "path", store.Path(), "error", err)
			}
		}()
	case profile.Watcher:
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			if err := store.Watch(ctx); err != nil {
				s.logger.Error("profile subscription failed", "source", s.cfg.Profiles.Source, "error", err)
			}
		}()
	}
}

// Shutdown drains in-flight requests within the configured shutdown
// timeout, stops background work, flushes spans and closes the profile
// store. Only the first call has any effect.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		hs, cancel := s.httpServer, s.cancel
		s.mu.Unlock()

		var errs []error
		if hs != nil {
			s.logger.Info("initiating graceful shutdown", "timeout", s.cfg.Server.ShutdownTimeout.String())
			shutdownCtx, done := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
			if err := hs.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
			done()
		}

		if cancel != nil {
			cancel()
		}
		if s.scheduler != nil {
			s.scheduler.Stop()
		}
		s.background.Wait()

		if err := s.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown error: %w", err))
		}
		if err := s.closeStore(); err != nil {
			errs = append(errs, fmt.Errorf("profile store close error: %w", err))
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()

		s.shutdownErr = errors.Join(errs...)
		s.logger.Info("gatekeeper stopped")
	})
	return s.shutdownErr
}

// release undoes a partial New.
func (s *Server) release() {
	if s.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.tracer.Shutdown(ctx); err != nil {
			s.logger.Warn("tracer shutdown failed", "error", err)
		}
	}
	if err := s.closeStore(); err != nil {
		s.logger.Warn("profile store close failed", "error", err)
	}
}

func (s *Server) closeStore() error {
	if c, ok := s.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Reload applies the reloadable parts of cfg: API keys and inline
// profiles. File profiles are re-read and the profile cache is purged.
// Listener, upstream and telemetry settings require a restart.
func (s *Server) Reload(ctx context.Context, cfg *config.Config) error {
	if s.validator != nil {
		s.syncKeys(cfg.Security.Authentication.Keys)
	}

	switch store := s.store.(type) {
	case *profile.MemoryStore:
		if cfg.Profiles.Source == "memory" {
			if err := syncInline(ctx, store, cfg.Profiles.Inline); err != nil {
				return fmt.Errorf("failed to reload inline profiles: %w", err)
			}
		}
	case *profile.FileStore:
		changed, err := store.Reload()
		if err != nil {
			return fmt.Errorf("failed to reload profiles: %w", err)
		}
		s.logger.Info("profiles reloaded", "path", store.Path(), "changed", len(changed))
	}

	n := s.cache.Purge()
	s.logger.Info("configuration reloaded", "purged_profiles", n)
	return nil
}

// syncKeys makes the validator hold exactly keys.
func (s *Server) syncKeys(keys []config.APIKeyConfig) {
	want := make(map[string]*auth.APIKeyInfo, len(keys))
	for _, info := range apiKeys(keys) {
		want[info.Key] = info
	}
	for _, existing := range s.validator.List() {
		if _, ok := want[existing.Key]; !ok {
			s.validator.Remove(existing.Key)
		}
	}
	for _, info := range want {
		s.validator.Add(info)
	}
}

// Addr returns the listening address once Start has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// IsRunning reports whether Start is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Manager returns the admission manager.
func (s *Server) Manager() *limits.Manager {
	return s.manager
}

// Cache returns the profile cache.
func (s *Server) Cache() *profile.Cache {
	return s.cache
}

// Registry returns the metrics registry behind the scrape endpoint.
func (s *Server) Registry() prometheus.Gatherer {
	return s.collector.Registry()
}
