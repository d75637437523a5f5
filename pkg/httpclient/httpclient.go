// Package httpclient provides a shared HTTP client factory for fact
// source APIs. Connection pooling and DNS caching are enabled so runs
// over large dependency trees reuse sockets instead of exhausting them.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/depgate/depgate/pkg/duration"
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the total request timeout.
	Timeout time.Duration

	// Proxy is an optional egress proxy URL. Supported schemes:
	// http, https, socks4, socks5, socks5h.
	Proxy string

	// UserAgent overrides the default DepGate user agent.
	UserAgent string

	// AuthHeaders are attached to every request and stripped when a
	// redirect leaves the original host.
	AuthHeaders http.Header

	// FollowRedirects enables redirect following, bounded by
	// defaults.MaxRedirects.
	FollowRedirects bool

	// InsecureSkipVerify disables TLS certificate verification. Only
	// meant for egress proxies that re-sign traffic.
	InsecureSkipVerify bool

	// CacheDNS routes lookups through the shared DNS cache. Ignored
	// when a SOCKS proxy handles resolution.
	CacheDNS bool

	// MaxIdleConns is the maximum number of idle connections across all hosts.
	MaxIdleConns int

	// MaxConnsPerHost is the maximum connections per host.
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections stay pooled.
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives.
	DisableKeepAlives bool

	// DialTimeout is the timeout for establishing connections.
	DialTimeout time.Duration

	// TLSHandshakeTimeout is the timeout for the TLS handshake.
	TLSHandshakeTimeout time.Duration
}

// DefaultConfig returns the profile used against public fact source
// APIs: verified TLS, redirects followed, pooling and DNS caching on.
func DefaultConfig() Config {
	return Config{
		Timeout:             duration.FactFetch,
		FollowRedirects:     true,
		CacheDNS:            true,
		MaxIdleConns:        100,
		MaxConnsPerHost:     25,
		IdleConnTimeout:     duration.IdleConnTimeout,
		DialTimeout:         duration.DialTimeout,
		TLSHandshakeTimeout: duration.TLSHandshake,
	}
}

var (
	defaultClient *http.Client
	defaultOnce   sync.Once
)

// Default returns a shared, pre-configured HTTP client. It is safe for
// concurrent use; providers should prefer it over private clients so
// connections to the same API are pooled.
func Default() *http.Client {
	defaultOnce.Do(func() {
		// DefaultConfig carries no proxy, so New cannot fail.
		defaultClient, _ = New(DefaultConfig())
	})
	return defaultClient
}

// New creates an HTTP client with the given configuration. A malformed
// proxy URL is a configuration error, not something to silently ignore.
func New(cfg Config) (*http.Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = duration.FactFetch
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = 25
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = duration.IdleConnTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = duration.DialTimeout
	}
	if cfg.TLSHandshakeTimeout == 0 {
		cfg.TLSHandshakeTimeout = duration.TLSHandshake
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: duration.KeepAlive,
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,

		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,

		DialContext: dialer.DialContext,

		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	if cfg.Proxy != "" {
		pc, err := ParseProxyURL(cfg.Proxy)
		if err != nil {
			return nil, err
		}
		if pc.IsSOCKS {
			socksDialer, err := CreateSOCKSDialer(pc, cfg.DialTimeout)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrProxyConnect, err)
			}
			transport.DialContext = socksDialer.DialContext
		} else {
			transport.Proxy = http.ProxyURL(pc.URL)
		}
	} else if cfg.CacheDNS {
		transport.DialContext = NewCachingDialer(GetDNSCache(), cfg.DialTimeout).DialContext
	}

	client := &http.Client{
		Transport: &middlewareTransport{
			base:        transport,
			userAgent:   cfg.UserAgent,
			authHeaders: cfg.AuthHeaders,
		},
		Timeout: cfg.Timeout,
	}

	if cfg.FollowRedirects {
		client.CheckRedirect = redirectPolicyWithAuthStrip(cfg.AuthHeaders)
	} else {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

// WithTimeout returns DefaultConfig with the specified timeout.
func WithTimeout(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	return cfg
}

// WithProxy returns DefaultConfig with the specified proxy.
func WithProxy(proxyURL string) Config {
	cfg := DefaultConfig()
	cfg.Proxy = proxyURL
	return cfg
}
