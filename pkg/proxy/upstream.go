package proxy

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/proxy/types"
	"mercator-hq/gatekeeper/pkg/security/auth"
	"mercator-hq/gatekeeper/pkg/telemetry/tracing"
)

// Identity headers set on every forwarded request. Values supplied by the
// client are removed first, so the upstream can trust them.
const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderCustomerID = "X-Customer-ID"
)

// FailureRecorder counts failed upstream round trips by kind. The
// telemetry metrics Collector implements it.
type FailureRecorder interface {
	RecordUpstreamError(kind string)
}

// Options configures an Upstream.
type Options struct {
	// Transport overrides the HTTP transport. Tests use it to stub the
	// upstream.
	Transport http.RoundTripper

	// Failures counts failed round trips. Optional.
	Failures FailureRecorder

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Upstream forwards admitted requests to the protected service.
type Upstream struct {
	target   *url.URL
	proxy    *httputil.ReverseProxy
	failures FailureRecorder
	logger   *slog.Logger
}

// NewUpstream creates a reverse proxy for cfg.URL. cfg.Timeout bounds the
// wait for response headers; response bodies may stream for longer.
func NewUpstream(cfg *config.UpstreamConfig, opts Options) (*Upstream, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", cfg.URL, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: must be absolute", cfg.URL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	u := &Upstream{
		target:   target,
		failures: opts.Failures,
		logger:   logger.With("component", "upstream"),
	}

	transport := opts.Transport
	if transport == nil {
		transport = newTransport(cfg)
	}

	u.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if cfg.PreserveHost {
				pr.Out.Host = pr.In.Host
			}
			setIdentityHeaders(pr.Out)
			tracing.Inject(pr.Out.Context(), pr.Out.Header)
		},
		Transport:     transport,
		FlushInterval: cfg.FlushInterval,
		ErrorHandler:  u.handleError,
	}
	return u, nil
}

// Target returns the upstream base URL.
func (u *Upstream) Target() *url.URL {
	return u.target
}

// ServeHTTP implements http.Handler.
func (u *Upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.proxy.ServeHTTP(w, r)
}

func (u *Upstream) handleError(w http.ResponseWriter, r *http.Request, err error) {
	resp, kind := HandleError(err)
	if u.failures != nil {
		u.failures.RecordUpstreamError(kind)
	}
	if resp == nil {
		u.logger.DebugContext(r.Context(), "client canceled upstream request", "error", err)
		return
	}
	u.logger.WarnContext(r.Context(), "upstream request failed",
		"kind", kind,
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	types.WriteError(w, resp)
}

// setIdentityHeaders replaces client-supplied identity headers with the
// authenticated caller, if any.
func setIdentityHeaders(out *http.Request) {
	out.Header.Del(HeaderTenantID)
	out.Header.Del(HeaderCustomerID)

	info, ok := auth.GetAPIKeyInfo(out.Context())
	if !ok {
		return
	}
	if t := info.Tenant(); t != "" {
		out.Header.Set(HeaderTenantID, string(t))
	}
	if c := info.Customer(); c != "" {
		out.Header.Set(HeaderCustomerID, string(c))
	}
}

func newTransport(cfg *config.UpstreamConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: time.Second,
	}
}
