// Package pool builds a single tuned *http.Client for the Fetcher's direct
// (non-proxied) source requests, reused across every provider source rather
// than built fresh per request.
package pool

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// Pool wraps one cached *http.Client configured per Config.
type Pool struct {
	cfg    Config
	mu     sync.Mutex
	client *http.Client
}

// Config tunes the shared transport's connection reuse and TLS behavior.
type Config struct {
	MaxIdleConns          int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost       int           `yaml:"max_conns_per_host"`
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout"`
	KeepAliveTimeout      time.Duration `yaml:"keep_alive_timeout"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout"`
	DisableKeepAlives     bool          `yaml:"disable_keep_alives"`
	DisableCompression    bool          `yaml:"disable_compression"`
}

// DefaultConfig returns a connection pool configuration with sensible
// defaults for crawling provider source URLs.
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		KeepAliveTimeout:      30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// New builds a Pool from cfg. The underlying *http.Client is constructed
// lazily on first Client() call so timeout can still vary per call without
// discarding the shared transport.
func New(cfg Config) *Pool {
	return &Pool{cfg: cfg}
}

// Client returns the shared *http.Client, building it on first use with the
// given per-request timeout. Subsequent calls with a different timeout
// still share the same pooled transport; only Client.Timeout changes.
func (p *Pool) Client(timeout time.Duration) *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		dialer := &net.Dialer{Timeout: timeout, KeepAlive: p.cfg.KeepAliveTimeout}
		transport := &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          p.cfg.MaxIdleConns,
			MaxIdleConnsPerHost:   p.cfg.MaxIdleConnsPerHost,
			MaxConnsPerHost:       p.cfg.MaxConnsPerHost,
			IdleConnTimeout:       p.cfg.IdleConnTimeout,
			TLSHandshakeTimeout:   p.cfg.TLSHandshakeTimeout,
			ExpectContinueTimeout: p.cfg.ExpectContinueTimeout,
			DisableKeepAlives:     p.cfg.DisableKeepAlives,
			DisableCompression:    p.cfg.DisableCompression,
			TLSClientConfig:       &tls.Config{},
			ForceAttemptHTTP2:     true,
		}
		p.client = &http.Client{
			Transport: transport,
			// providers.Fetch implements its own Location-following loop
			// (spec's "no explicit max-redirect" requirement); disable the
			// stdlib's own auto-follow so that loop actually runs instead of
			// being short-circuited inside Do.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	p.client.Timeout = timeout
	return p.client
}

// CloseIdleConnections releases any idle pooled connections, e.g. at
// shutdown.
func (p *Pool) CloseIdleConnections() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.CloseIdleConnections()
	}
}
