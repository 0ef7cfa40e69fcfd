package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/netmark/loadlab/internal/config"
)

// RequestBuilder produces one fresh request per simulated call to the
// configured target.
type RequestBuilder struct {
	method   string
	target   *url.URL
	endpoint string
	headers  http.Header
	payload  Payload
}

// NewRequestBuilder validates the target, headers and body of cfg once so
// that Build only has to copy them.
func NewRequestBuilder(cfg *config.Config) (*RequestBuilder, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("target URL is required")
	}
	target, err := url.Parse(cfg.Target())
	if err != nil {
		return nil, fmt.Errorf("target URL: %w", err)
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}

	payload, err := LoadPayload(cfg.Body, cfg.BodyFile)
	if err != nil {
		return nil, err
	}

	headers, err := buildHeaders(cfg.Headers)
	if err != nil {
		return nil, err
	}

	return &RequestBuilder{
		method:   method,
		target:   target,
		endpoint: cfg.Endpoint,
		headers:  headers,
		payload:  payload,
	}, nil
}

func buildHeaders(in map[string]string) (http.Header, error) {
	headers := make(http.Header, len(in))
	for key, value := range in {
		name := strings.TrimSpace(key)
		if name == "" || strings.ContainsAny(name, "\r\n: ") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", http.CanonicalHeaderKey(name))
		}
		headers.Set(name, value)
	}
	return headers, nil
}

// Method returns the HTTP method of built requests.
func (b *RequestBuilder) Method() string { return b.method }

// Target returns the full URL of built requests.
func (b *RequestBuilder) Target() string { return b.target.String() }

// Endpoint returns the path samples are recorded under.
func (b *RequestBuilder) Endpoint() string { return b.endpoint }

// Build returns a request carrying its own copy of the configured headers.
func (b *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, b.method, b.target.String(), b.payload.Reader())
	if err != nil {
		return nil, err
	}
	req.Header = b.headers.Clone()
	req.ContentLength = b.payload.Len()
	req.GetBody = func() (io.ReadCloser, error) {
		return b.payload.Reader(), nil
	}
	return req, nil
}

// NewClient returns a client for many simulated users hitting one host.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        1024,
		MaxIdleConnsPerHost: 1024,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
