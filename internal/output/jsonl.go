package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrOutputLocked is returned when another run holds the output file.
var ErrOutputLocked = errors.New("output file is locked by another run")

// JSONLSink writes one JSON object per line. It holds an exclusive lock on
// "<path>.lock" from open until close.
type JSONLSink struct {
	path string
	file *os.File
	lock *flock.Flock
}

// OpenJSONL locks and truncates path.
func OpenJSONL(path string) (*JSONLSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrOutputLocked)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open output: %w", err)
	}

	return &JSONLSink{path: path, file: file, lock: lock}, nil
}

// Path returns the output file path.
func (s *JSONLSink) Path() string {
	return s.path
}

// Write appends rec as a single line with one write call.
func (s *JSONLSink) Write(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')
	if _, err := s.file.Write(line); err != nil {
		return err
	}
	return nil
}

// Close syncs the file to disk and releases the lock.
func (s *JSONLSink) Close() error {
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	unlockErr := s.lock.Unlock()
	return errors.Join(syncErr, closeErr, unlockErr)
}
