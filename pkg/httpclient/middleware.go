package httpclient

import (
	"fmt"
	"net/http"

	"github.com/depgate/depgate/pkg/defaults"
)

// middlewareTransport stamps outgoing requests with the tool's user
// agent and any configured auth headers. Fact source APIs rate-limit
// anonymous user agents more aggressively, so every request identifies
// itself.
type middlewareTransport struct {
	base        http.RoundTripper
	userAgent   string
	authHeaders http.Header
}

// RoundTrip implements http.RoundTripper.
func (m *middlewareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone to avoid mutating the caller's request.
	r := req.Clone(req.Context())

	if r.Header.Get("User-Agent") == "" {
		ua := m.userAgent
		if ua == "" {
			ua = defaults.UAMinimal
		}
		r.Header.Set("User-Agent", ua)
	}

	for key, vals := range m.authHeaders {
		for _, v := range vals {
			r.Header.Add(key, v)
		}
	}

	return m.base.RoundTrip(r)
}

// redirectPolicyWithAuthStrip follows redirects up to
// defaults.MaxRedirects, stripping auth headers when a redirect leaves
// the original host so credentials for one fact source never reach
// another.
func redirectPolicyWithAuthStrip(authHeaders http.Header) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= defaults.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", defaults.MaxRedirects)
		}

		originalHost := via[0].URL.Host
		if req.URL.Host != originalHost {
			for key := range authHeaders {
				req.Header.Del(key)
			}
		}

		return nil
	}
}
