// Package session loads the ordered list of per-request session tokens.
package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// StdinPath selects standard input as the token source.
const StdinPath = "-"

// ErrNoCarrier is returned when a pool has tokens but nowhere to put them.
var ErrNoCarrier = errors.New("session tokens need a cookie name or a header name")

// Pool is an ordered sequence of opaque tokens together with the cookie and
// header names used to inject them. An empty pool means one anonymous request.
type Pool struct {
	Tokens     []string
	CookieName string
	HeaderName string
}

// Len returns the number of tokens in the pool.
func (p Pool) Len() int {
	return len(p.Tokens)
}

// Empty reports whether the pool has no tokens.
func (p Pool) Empty() bool {
	return len(p.Tokens) == 0
}

// Validate checks that a non-empty pool has at least one injection target.
func (p Pool) Validate() error {
	if p.Empty() {
		return nil
	}
	if strings.TrimSpace(p.CookieName) == "" && strings.TrimSpace(p.HeaderName) == "" {
		return ErrNoCarrier
	}
	return nil
}

// MalformedError reports a token that cannot be carried in a cookie or header.
type MalformedError struct {
	Line   int
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("session token on line %d %s", e.Line, e.Reason)
}

// ReadTokens reads one token per line. Lines are trimmed and blank lines are
// skipped; order is preserved.
func ReadTokens(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var tokens []string
	line := 0
	for scanner.Scan() {
		line++
		token := strings.TrimSpace(scanner.Text())
		if token == "" {
			continue
		}
		if reason := checkToken(token); reason != "" {
			return nil, &MalformedError{Line: line, Reason: reason}
		}
		tokens = append(tokens, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read session tokens: %w", err)
	}
	return tokens, nil
}

// LoadFile reads tokens from path, or from stdin when path is "-".
func LoadFile(path string, stdin io.Reader) ([]string, error) {
	if path == StdinPath {
		if stdin == nil {
			stdin = os.Stdin
		}
		return ReadTokens(stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}
	defer file.Close()

	tokens, err := ReadTokens(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tokens, nil
}

// checkToken accepts only RFC 6265 cookie-octets, so a token survives
// unchanged as a cookie value and as a header value.
func checkToken(token string) string {
	for _, r := range token {
		switch {
		case r > unicode.MaxASCII:
			return fmt.Sprintf("contains non-ASCII character %q", r)
		case unicode.IsSpace(r):
			return "contains whitespace"
		case unicode.IsControl(r):
			return "contains a control character"
		case !isCookieOctet(byte(r)):
			return fmt.Sprintf("contains %q", r)
		}
	}
	return ""
}

func isCookieOctet(b byte) bool {
	switch {
	case b == 0x21:
	case b >= 0x23 && b <= 0x2B:
	case b >= 0x2D && b <= 0x3A:
	case b >= 0x3C && b <= 0x5B:
	case b >= 0x5D && b <= 0x7E:
	default:
		return false
	}
	return true
}
