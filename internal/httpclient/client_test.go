package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/volley/internal/config"
)

func TestNewRequestSpecFromConfig(t *testing.T) {
	cfg := &config.Config{
		Method: "post",
		URL:    "http://example.com/api?fixed=1",
		Headers: []Pair{
			{Key: "x-trace", Value: "a"},
			{Key: "X-Trace", Value: "b"},
		},
		Params:  []Pair{{Key: "page", Value: "2"}},
		Cookies: []Pair{{Key: "theme", Value: "dark"}},
		JSON:    `{"hello":"world"}`,
	}

	spec, err := NewRequestSpec(cfg)
	if err != nil {
		t.Fatalf("NewRequestSpec() error = %v", err)
	}

	req, err := spec.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if req.Method != http.MethodPost {
		t.Fatalf("Method = %s, want POST", req.Method)
	}
	if got := req.URL.Query(); got.Get("fixed") != "1" || got.Get("page") != "2" {
		t.Fatalf("query = %v, want fixed=1 and page=2", got)
	}
	if vals := req.Header.Values("X-Trace"); len(vals) != 2 || vals[0] != "a" || vals[1] != "b" {
		t.Fatalf("X-Trace values = %v, want [a b]", vals)
	}
	if ct := req.Header.Get("Content-Type"); ct != JSONContentType {
		t.Fatalf("Content-Type = %q, want %q", ct, JSONContentType)
	}
	if c, err := req.Cookie("theme"); err != nil || c.Value != "dark" {
		t.Fatalf("theme cookie = %v, %v", c, err)
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != cfg.JSON {
		t.Fatalf("body = %q, want %q", body, cfg.JSON)
	}
	if req.ContentLength != int64(len(cfg.JSON)) {
		t.Fatalf("ContentLength = %d", req.ContentLength)
	}

	replay, err := req.GetBody()
	if err != nil {
		t.Fatalf("GetBody() error = %v", err)
	}
	replayed, _ := io.ReadAll(replay)
	if string(replayed) != cfg.JSON {
		t.Fatalf("replayed body = %q", replayed)
	}
}

func TestExplicitContentTypeWins(t *testing.T) {
	spec, err := NewRequestSpec(&config.Config{
		Method:  "PUT",
		URL:     "http://example.com",
		Headers: []Pair{{Key: "Content-Type", Value: "application/vnd.api+json"}},
		JSON:    `[]`,
	})
	if err != nil {
		t.Fatalf("NewRequestSpec() error = %v", err)
	}
	req, err := spec.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if vals := req.Header.Values("Content-Type"); len(vals) != 1 || vals[0] != "application/vnd.api+json" {
		t.Fatalf("Content-Type = %v", vals)
	}
}

func TestNewRequestSpecRejectsBadHeaders(t *testing.T) {
	tests := []struct {
		name   string
		header Pair
	}{
		{"empty key", Pair{Key: " ", Value: "v"}},
		{"newline key", Pair{Key: "X\nY", Value: "v"}},
		{"newline value", Pair{Key: "X", Value: "a\r\nb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRequestSpec(&config.Config{URL: "http://example.com", Headers: []Pair{tt.header}})
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewRequestSpecBodyConflict(t *testing.T) {
	_, err := NewRequestSpec(&config.Config{URL: "http://example.com", JSON: "{}", Data: "x"})
	if !errors.Is(err, ErrBodyConflict) {
		t.Fatalf("error = %v, want ErrBodyConflict", err)
	}
}

func TestWithCookieOverridesSameName(t *testing.T) {
	base := RequestSpec{
		Method:  http.MethodGet,
		URL:     "http://example.com",
		Cookies: []Pair{{Key: "sid", Value: "explicit"}, {Key: "other", Value: "1"}},
	}

	got := base.WithCookie("sid", "tok")

	if len(base.Cookies) != 2 || base.Cookies[0].Value != "explicit" {
		t.Fatalf("base spec mutated: %v", base.Cookies)
	}
	if len(got.Cookies) != 2 {
		t.Fatalf("Cookies = %v, want 2 entries", got.Cookies)
	}
	req, err := got.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	cookies := req.Cookies()
	var sids []string
	for _, c := range cookies {
		if c.Name == "sid" {
			sids = append(sids, c.Value)
		}
	}
	if len(sids) != 1 || sids[0] != "tok" {
		t.Fatalf("sid cookies = %v, want [tok]", sids)
	}
}

func TestWithHeaderOverridesCaseInsensitive(t *testing.T) {
	base := RequestSpec{
		Method:  http.MethodGet,
		URL:     "http://example.com",
		Headers: []Pair{{Key: "X-Session", Value: "old"}, {Key: "Accept", Value: "*/*"}},
	}
	got := base.WithHeader("x-session", "new")
	req, err := got.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if vals := req.Header.Values("X-Session"); len(vals) != 1 || vals[0] != "new" {
		t.Fatalf("X-Session = %v, want [new]", vals)
	}
	if base.Headers[0].Value != "old" {
		t.Fatal("base spec mutated")
	}
}

func TestBuildRejectsRelativeURL(t *testing.T) {
	spec := &RequestSpec{Method: http.MethodGet, URL: "/relative"}
	if _, err := spec.Build(context.Background()); err == nil {
		t.Fatal("expected error for relative URL")
	}
}

func TestDoerAttemptCapturesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err != nil || c.Value != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("X-Reply", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "payload")
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	var injected bool
	doer := NewDoer(client, WithHeaderInjector(func(ctx context.Context, h http.Header) {
		injected = true
		h.Set("Traceparent", "00-test")
	}))

	spec := RequestSpec{Method: http.MethodGet, URL: server.URL}
	withSession := spec.WithCookie("sid", "tok")

	resp, err := doer.Attempt(context.Background(), &withSession)
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("StatusCode = %d, want 201", resp.StatusCode)
	}
	if string(resp.Body) != "payload" {
		t.Fatalf("Body = %q", resp.Body)
	}
	if resp.Header.Get("X-Reply") != "yes" {
		t.Fatalf("Header = %v", resp.Header)
	}
	if !injected {
		t.Fatal("header injector was not called")
	}
}

func TestDoerAttemptRequestError(t *testing.T) {
	doer := NewDoer(nil)
	_, err := doer.Attempt(context.Background(), &RequestSpec{Method: http.MethodGet, URL: "http://[::1"})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want *RequestError", err)
	}
}

func TestClientTimeoutApplied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	_, err = NewDoer(client).Attempt(context.Background(), &RequestSpec{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var netErr interface{ Timeout() bool }
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("error = %v, want timeout", err)
	}
}

func TestClientRedirectPolicy(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()
	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer redirect.Close()

	spec := &RequestSpec{Method: http.MethodGet, URL: redirect.URL}

	noFollow, _ := NewClient(ClientOptions{Timeout: time.Second})
	resp, err := NewDoer(noFollow).Attempt(context.Background(), spec)
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("StatusCode = %d, want 302 without following", resp.StatusCode)
	}

	follow, _ := NewClient(ClientOptions{Timeout: time.Second, FollowRedirects: true})
	resp, err = NewDoer(follow).Attempt(context.Background(), spec)
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200 when following", resp.StatusCode)
	}
}

func TestNewClientRejectsBadProxy(t *testing.T) {
	if _, err := NewClient(ClientOptions{Proxy: "http://[::1"}); err == nil {
		t.Fatal("expected proxy parse error")
	}
}

func TestBodySourceFromFiles(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "body.json")
	dataPath := filepath.Join(dir, "body.bin")
	if err := os.WriteFile(jsonPath, []byte(`{"a":1}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dataPath, []byte("raw bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := NewBodySource(jsonPath, "")
	if err != nil {
		t.Fatalf("NewBodySource(json file) error = %v", err)
	}
	if src.ContentType() != JSONContentType {
		t.Errorf("ContentType() = %q", src.ContentType())
	}
	assertBody(t, src, `{"a":1}`)

	src, err = NewBodySource("", dataPath)
	if err != nil {
		t.Fatalf("NewBodySource(data file) error = %v", err)
	}
	if src.ContentType() != "" {
		t.Errorf("ContentType() = %q, want empty", src.ContentType())
	}
	assertBody(t, src, "raw bytes")

	src, err = NewBodySource("", "inline=1&b=2")
	if err != nil {
		t.Fatalf("NewBodySource(inline data) error = %v", err)
	}
	assertBody(t, src, "inline=1&b=2")
}

func TestBodySourceRejectsInvalidJSON(t *testing.T) {
	if _, err := NewBodySource("{not json", ""); err == nil || !strings.Contains(err.Error(), "valid JSON") {
		t.Fatalf("error = %v, want invalid JSON error", err)
	}
}

func TestEmptyBodySource(t *testing.T) {
	src, err := NewBodySource("", "")
	if err != nil {
		t.Fatalf("NewBodySource() error = %v", err)
	}
	if n, ok := src.ContentLength(); !ok || n != 0 {
		t.Errorf("ContentLength() = %d, %v", n, ok)
	}
	assertBody(t, src, "")
}

func assertBody(t *testing.T, src BodySource, want string) {
	t.Helper()
	rc, err := src.NewReader()
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
	if n, ok := src.ContentLength(); ok && n != int64(len(want)) {
		t.Fatalf("ContentLength() = %d, want %d", n, len(want))
	}
}
