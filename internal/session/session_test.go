package session_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/torosent/volley/internal/session"
)

func TestReadTokensSkipsBlankLines(t *testing.T) {
	input := "tokA\n\n  tokB  \r\n\t\ntokC"
	tokens, err := session.ReadTokens(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadTokens() error = %v", err)
	}
	want := []string{"tokA", "tokB", "tokC"}
	if len(tokens) != len(want) {
		t.Fatalf("ReadTokens() = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("tokens[%d] = %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestReadTokensRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"inner space", "ok\nbad token\n", 2},
		{"semicolon", "\n\na;b", 3},
		{"comma", "a,b", 1},
		{"quote", "ok\nok2\n\"q\"", 3},
		{"backslash", `a\b`, 1},
		{"control", "a\x01b", 1},
		{"non-ascii", "ok\ntök€n\n", 2},
		{"invalid utf-8", "a\xffb", 1},
		{"delete", "a\x7fb", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := session.ReadTokens(strings.NewReader(tt.input))
			var mErr *session.MalformedError
			if !errors.As(err, &mErr) {
				t.Fatalf("ReadTokens() error = %v, want MalformedError", err)
			}
			if mErr.Line != tt.line {
				t.Errorf("Line = %d, want %d", mErr.Line, tt.line)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	tokens, err := session.LoadFile(path, nil)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(tokens) != 2 || tokens[1] != "two" {
		t.Errorf("LoadFile() = %v", tokens)
	}

	if _, err := session.LoadFile(filepath.Join(dir, "missing.txt"), nil); err == nil {
		t.Error("LoadFile() expected error for missing file")
	}
}

func TestLoadFileFromStdin(t *testing.T) {
	tokens, err := session.LoadFile(session.StdinPath, strings.NewReader("s1\ns2\ns3\n"))
	if err != nil {
		t.Fatalf("LoadFile(-) error = %v", err)
	}
	if len(tokens) != 3 {
		t.Errorf("LoadFile(-) = %v, want 3 tokens", tokens)
	}
}

func TestPoolValidate(t *testing.T) {
	if err := (session.Pool{}).Validate(); err != nil {
		t.Errorf("empty pool Validate() = %v", err)
	}
	p := session.Pool{Tokens: []string{"a"}}
	if !errors.Is(p.Validate(), session.ErrNoCarrier) {
		t.Errorf("Validate() = %v, want ErrNoCarrier", p.Validate())
	}
	p.HeaderName = "X-Session"
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() with header = %v", err)
	}
}
