package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/tidwall/gjson"
)

// JSONContentType is set on JSON bodies when no Content-Type header is given.
const JSONContentType = "application/json; charset=utf-8"

// ErrBodyConflict is returned when both a JSON and a raw body are supplied.
var ErrBodyConflict = errors.New("json and data bodies are mutually exclusive")

// BodySource produces a fresh request body for every attempt.
type BodySource interface {
	NewReader() (io.ReadCloser, error)
	ContentLength() (int64, bool)
	ContentType() string
}

// NewBodySource resolves the --json and --data values. Each may be inline
// text or the path of an existing file; JSON content must be well formed.
func NewBodySource(jsonValue, dataValue string) (BodySource, error) {
	if jsonValue != "" && dataValue != "" {
		return nil, ErrBodyConflict
	}

	if jsonValue != "" {
		payload := []byte(jsonValue)
		if path, ok := existingFile(jsonValue); ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("json body file: %w", err)
			}
			payload = data
		}
		if !gjson.ValidBytes(payload) {
			return nil, fmt.Errorf("json body is not valid JSON")
		}
		return &inlineBodySource{data: payload, contentType: JSONContentType}, nil
	}

	if dataValue != "" {
		if path, ok := existingFile(dataValue); ok {
			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("data body file: %w", err)
			}
			return &fileBodySource{path: path, size: info.Size()}, nil
		}
		return &inlineBodySource{data: []byte(dataValue)}, nil
	}

	return emptyBodySource{}, nil
}

func existingFile(value string) (string, bool) {
	info, err := os.Stat(value)
	if err != nil || info.IsDir() {
		return "", false
	}
	return value, true
}

type inlineBodySource struct {
	data        []byte
	contentType string
}

func (s *inlineBodySource) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s *inlineBodySource) ContentLength() (int64, bool) {
	return int64(len(s.data)), true
}

func (s *inlineBodySource) ContentType() string {
	return s.contentType
}

type fileBodySource struct {
	path string
	size int64
}

func (s *fileBodySource) NewReader() (io.ReadCloser, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *fileBodySource) ContentLength() (int64, bool) {
	return s.size, true
}

func (s *fileBodySource) ContentType() string {
	return ""
}

type emptyBodySource struct{}

func (emptyBodySource) NewReader() (io.ReadCloser, error) {
	return http.NoBody, nil
}

func (emptyBodySource) ContentLength() (int64, bool) {
	return 0, true
}

func (emptyBodySource) ContentType() string {
	return ""
}
