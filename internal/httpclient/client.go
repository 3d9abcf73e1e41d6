package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ClientOptions configures the shared transport.
type ClientOptions struct {
	Timeout            time.Duration
	Proxy              string
	InsecureSkipVerify bool
	FollowRedirects    bool
	// MaxConnsPerHost sizes the idle pool; callers pass the concurrency limit.
	MaxConnsPerHost int
}

// NewClient returns an http.Client shared by all workers. Redirects are
// returned as responses unless FollowRedirects is set.
func NewClient(opts ClientOptions) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout < 0 {
		timeout = 0
	}

	perHost := opts.MaxConnsPerHost
	if perHost < 1 {
		perHost = 32
	}

	proxy := http.ProxyFromEnvironment
	if p := strings.TrimSpace(opts.Proxy); p != "" {
		proxyURL, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("parse proxy: %w", err)
		}
		proxy = http.ProxyURL(proxyURL)
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 proxy,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   perHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --no-verify
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	if !opts.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client, nil
}

// Response is the captured result of one HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestError reports a request that could not be constructed. It is never
// worth retrying.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("build request: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// HeaderInjector adds headers to an outgoing request, e.g. trace context.
type HeaderInjector func(ctx context.Context, headers http.Header)

// Doer performs single HTTP attempts over a shared client.
type Doer struct {
	client   *http.Client
	injector HeaderInjector
}

// DoerOption customizes a Doer.
type DoerOption func(*Doer)

// WithHeaderInjector installs fn to run on every outgoing request.
func WithHeaderInjector(fn HeaderInjector) DoerOption {
	return func(d *Doer) {
		d.injector = fn
	}
}

// NewDoer wraps client. A nil client falls back to http.DefaultClient.
func NewDoer(client *http.Client, opts ...DoerOption) *Doer {
	if client == nil {
		client = http.DefaultClient
	}
	d := &Doer{client: client}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Attempt sends spec once and reads the whole response body.
func (d *Doer) Attempt(ctx context.Context, spec *RequestSpec) (*Response, error) {
	req, err := spec.Build(ctx)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	if d.injector != nil {
		d.injector(ctx, req.Header)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}
