package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/torosent/volley/internal/runner"
)

const (
	maxStemLength = 128
	redacted      = "[redacted]"
)

// ArtifactStore writes "<stem>.meta.json" and, optionally, "<stem>.body" per
// item. Each file is written to a temporary name, synced and renamed, and the
// meta file is always written last so its presence marks a complete item.
type ArtifactStore struct {
	dir      string
	saveBody bool
}

// NewArtifactStore creates dir if needed.
func NewArtifactStore(dir string, saveBody bool) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create save directory: %w", err)
	}
	return &ArtifactStore{dir: dir, saveBody: saveBody}, nil
}

// Pair is a redactable key/value echo of the request.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MetaRequest echoes the request that was sent.
type MetaRequest struct {
	Method  string `json:"method"`
	URL     string `json:"url"`
	Headers []Pair `json:"headers,omitempty"`
	Cookies []Pair `json:"cookies,omitempty"`
}

// MetaResponse describes the last response received.
type MetaResponse struct {
	StatusCode int                 `json:"statusCode"`
	Headers    map[string][]string `json:"headers,omitempty"`
	BodyBytes  int                 `json:"bodyBytes"`
	BodyFile   string              `json:"bodyFile,omitempty"`
}

// Meta is the content of "<stem>.meta.json".
type Meta struct {
	Record
	Request  MetaRequest   `json:"request"`
	Response *MetaResponse `json:"response"`
}

// Stem maps an item name onto a safe file name stem. A name longer than the
// limit is cut and suffixed with "_<index>" so items stay distinct.
func Stem(name string, index int) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	stem := b.String()
	if len(stem) > maxStemLength {
		suffix := "_" + strconv.Itoa(index)
		stem = stem[:maxStemLength-len(suffix)] + suffix
	}
	if strings.Trim(stem, ".") == "" {
		stem = "_" + stem
	}
	return stem
}

// Save writes the body (when enabled and a response arrived) and then the meta file.
func (s *ArtifactStore) Save(rec Record, res runner.Result) error {
	stem := Stem(rec.Name, rec.Index)
	meta := Meta{
		Record:  rec,
		Request: echoRequest(res),
	}

	if res.Response != nil {
		meta.Response = &MetaResponse{
			StatusCode: res.Response.StatusCode,
			Headers:    res.Response.Header.Clone(),
			BodyBytes:  len(res.Response.Body),
		}
		if s.saveBody {
			bodyFile := stem + ".body"
			if err := writeFileAtomic(s.dir, bodyFile, res.Response.Body); err != nil {
				return fmt.Errorf("save body: %w", err)
			}
			meta.Response.BodyFile = bodyFile
		}
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	if err := writeFileAtomic(s.dir, stem+".meta.json", append(data, '\n')); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}

func echoRequest(res runner.Result) MetaRequest {
	spec := res.Item.Spec
	req := MetaRequest{Method: spec.Method, URL: spec.URL}
	if u, err := spec.ResolvedURL(); err == nil {
		req.URL = u.String()
	}
	for _, h := range spec.Headers {
		value := h.Value
		if res.Item.SessionHeader != "" && strings.EqualFold(h.Key, res.Item.SessionHeader) {
			value = redacted
		}
		req.Headers = append(req.Headers, Pair{Key: h.Key, Value: value})
	}
	for _, c := range spec.Cookies {
		value := c.Value
		if res.Item.SessionCookie != "" && c.Key == res.Item.SessionCookie {
			value = redacted
		}
		req.Cookies = append(req.Cookies, Pair{Key: c.Key, Value: value})
	}
	return req
}

// writeFileAtomic writes data to dir/name through a synced temporary file.
func writeFileAtomic(dir, name string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}
	syncDir(dir)
	return nil
}

// syncDir persists the rename where the platform supports directory sync.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
