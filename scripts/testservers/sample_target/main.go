// Command sample_target serves endpoints for trying volley by hand.
//
//	go run ./scripts/testservers/sample_target -port 8080
//	volley run --url http://localhost:8080/flaky --session-file tokens.txt --session-cookie-name sid
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"
)

func main() {
	port := flag.Int("port", 0, "Listening port")
	failures := flag.Int("failures", 2, "503 responses /flaky returns per session before succeeding")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("sample target listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, newMux(*failures)))
}

func newMux(failures int) *http.ServeMux {
	flaky := &flakyHandler{failures: failures, seen: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("/session", handleSession)
	mux.Handle("/flaky", flaky)
	mux.HandleFunc("/slow", handleSlow)
	mux.HandleFunc("/echo", handleEcho)
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/echo", http.StatusFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"ok": true, "path": r.URL.Path})
	})
	return mux
}

// sessionOf returns the token carried by the "sid" cookie or the
// X-Session header.
func sessionOf(r *http.Request) string {
	if c, err := r.Cookie("sid"); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get("X-Session")
}

func handleSession(w http.ResponseWriter, r *http.Request) {
	token := sessionOf(r)
	if token == "" {
		respondJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing session"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session": token})
}

type flakyHandler struct {
	failures int
	mu       sync.Mutex
	seen     map[string]int
}

func (h *flakyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := sessionOf(r)
	h.mu.Lock()
	h.seen[key]++
	n := h.seen[key]
	h.mu.Unlock()

	if n <= h.failures {
		w.Header().Set("Retry-After", "1")
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"attempt": n})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"attempt": n, "session": key})
}

func handleSlow(w http.ResponseWriter, r *http.Request) {
	delay := 2 * time.Second
	if ms, err := strconv.Atoi(r.URL.Query().Get("ms")); err == nil && ms >= 0 {
		delay = time.Duration(ms) * time.Millisecond
	}
	select {
	case <-time.After(delay):
		respondJSON(w, http.StatusOK, map[string]any{"delayed_ms": delay.Milliseconds()})
	case <-r.Context().Done():
	}
}

func handleEcho(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"method":  r.Method,
		"query":   r.URL.Query(),
		"headers": r.Header,
		"cookies": cookies,
		"body":    string(body),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
