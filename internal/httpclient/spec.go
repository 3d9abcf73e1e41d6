package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/torosent/volley/internal/config"
)

// Pair is an ordered key/value entry.
type Pair = config.Pair

// RequestSpec is the immutable description of one request. Headers, Params and
// Cookies keep their order and may repeat a key.
type RequestSpec struct {
	Method  string
	URL     string
	Headers []Pair
	Params  []Pair
	Cookies []Pair
	Body    BodySource
}

// NewRequestSpec builds the base request described by cfg.
func NewRequestSpec(cfg *config.Config) (*RequestSpec, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	target := strings.TrimSpace(cfg.URL)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}

	body, err := NewBodySource(cfg.JSON, cfg.Data)
	if err != nil {
		return nil, err
	}

	headers := make([]Pair, 0, len(cfg.Headers))
	for _, h := range cfg.Headers {
		key := strings.TrimSpace(h.Key)
		if key == "" || strings.ContainsAny(key, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", h.Key)
		}
		if strings.ContainsAny(h.Value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", key)
		}
		headers = append(headers, Pair{Key: http.CanonicalHeaderKey(key), Value: h.Value})
	}

	return &RequestSpec{
		Method:  method,
		URL:     target,
		Headers: headers,
		Params:  append([]Pair(nil), cfg.Params...),
		Cookies: append([]Pair(nil), cfg.Cookies...),
		Body:    body,
	}, nil
}

// WithCookie returns a copy of s where name carries value. Existing cookies
// with the same name are dropped.
func (s RequestSpec) WithCookie(name, value string) RequestSpec {
	cookies := make([]Pair, 0, len(s.Cookies)+1)
	for _, c := range s.Cookies {
		if c.Key != name {
			cookies = append(cookies, c)
		}
	}
	s.Cookies = append(cookies, Pair{Key: name, Value: value})
	return s
}

// WithHeader returns a copy of s where header name carries value. Existing
// headers with the same name, compared case-insensitively, are dropped.
func (s RequestSpec) WithHeader(name, value string) RequestSpec {
	headers := make([]Pair, 0, len(s.Headers)+1)
	for _, h := range s.Headers {
		if !strings.EqualFold(h.Key, name) {
			headers = append(headers, h)
		}
	}
	s.Headers = append(headers, Pair{Key: http.CanonicalHeaderKey(name), Value: value})
	return s
}

// ResolvedURL returns the target URL with Params appended to its query.
func (s *RequestSpec) ResolvedURL() (*url.URL, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("url %q is not absolute", s.URL)
	}
	if len(s.Params) > 0 {
		query := u.Query()
		for _, p := range s.Params {
			query.Add(p.Key, p.Value)
		}
		u.RawQuery = query.Encode()
	}
	return u, nil
}

// Build creates a new *http.Request for one attempt.
func (s *RequestSpec) Build(ctx context.Context) (*http.Request, error) {
	if s == nil {
		return nil, errors.New("request spec cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	u, err := s.ResolvedURL()
	if err != nil {
		return nil, err
	}

	body := s.Body
	if body == nil {
		body = emptyBodySource{}
	}
	reader, err := body.NewReader()
	if err != nil {
		return nil, fmt.Errorf("open body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, s.Method, u.String(), reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	for _, h := range s.Headers {
		req.Header.Add(h.Key, h.Value)
	}
	if ct := body.ContentType(); ct != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", ct)
	}
	for _, c := range s.Cookies {
		req.AddCookie(&http.Cookie{Name: c.Key, Value: c.Value})
	}

	if length, ok := body.ContentLength(); ok {
		req.ContentLength = length
	}
	req.GetBody = body.NewReader

	return req, nil
}
