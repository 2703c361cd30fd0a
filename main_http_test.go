package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// setupTestRouter returns the full router for a fresh test app.
func setupTestRouter(t *testing.T) (*App, *gin.Engine) {
	t.Helper()
	app, _ := newTestApp(t)
	return app, app.setupRouter("templates/*.html", "./static")
}

// client replays the session cookie across requests.
type client struct {
	router  *gin.Engine
	cookies []*http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	if set := w.Result().Cookies(); len(set) > 0 {
		c.cookies = set
	}
	return w
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	return c.do(req)
}

func (c *client) postForm(path, guess string, htmx bool) *httptest.ResponseRecorder {
	form := url.Values{"guess": {guess}}.Encode()
	req, _ := http.NewRequest("POST", path, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return c.do(req)
}

func (c *client) postJSON(path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) sessionView {
	t.Helper()
	var v sessionView
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode session view: %v (%s)", err, w.Body.String())
	}
	return v
}

func TestHomeHandler(t *testing.T) {
	_, router := setupTestRouter(t)
	c := &client{router: router}
	w := c.get("/")
	if w.Code != http.StatusOK {
		t.Fatalf("GET / returned status %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Daily Color Guessing Game", "3498DB", `name="guess"`, "Next game in 8h 30m 0s"} {
		if !strings.Contains(body, want) {
			t.Errorf("GET / body missing %q", want)
		}
	}
	if len(c.cookies) == 0 || c.cookies[0].Name != SessionCookieName {
		t.Errorf("Expected %s cookie to be set", SessionCookieName)
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("Expected X-Request-Id header")
	}
}

func TestGuessHandler_HTMXFragment(t *testing.T) {
	_, router := setupTestRouter(t)
	c := &client{router: router}
	c.get("/")

	w := c.postForm("/guess", "#000000", true)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /guess returned status %d, want 200", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("HTMX request should receive the fragment only")
	}
	if !strings.Contains(body, "guess-row") || !strings.Contains(body, "#000000") {
		t.Errorf("Fragment missing the new guess row: %s", body)
	}
}

func TestGuessHandler_FullPageWithoutHTMX(t *testing.T) {
	_, router := setupTestRouter(t)
	c := &client{router: router}
	w := c.postForm("/guess", "000000", false)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /guess returned status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Error("Plain form post should receive the full page")
	}
}

func TestGuessHandler_InvalidGuess(t *testing.T) {
	app, router := setupTestRouter(t)
	c := &client{router: router}
	c.get("/")

	w := c.postForm("/guess", "nothex", true)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /guess returned status %d, want 200", w.Code)
	}
	trigger := w.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, "server_error") {
		t.Errorf("HX-Trigger = %q, want server_error", trigger)
	}
	if !strings.Contains(w.Body.String(), "Please enter a valid hex color code") {
		t.Error("Fragment missing the validation message")
	}

	app.SessionMutex.RLock()
	defer app.SessionMutex.RUnlock()
	for _, g := range app.GameSessions {
		if len(g.Guesses) != 0 {
			t.Errorf("Invalid guess was recorded: %v", g.Guesses)
		}
	}
}

func TestGuessHandler_InvalidMethod(t *testing.T) {
	_, router := setupTestRouter(t)
	c := &client{router: router}
	w := c.get("/guess")
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("GET /guess returned status %d, want 405 or 404", w.Code)
	}
}

func TestWinningGameShowsShare(t *testing.T) {
	_, router := setupTestRouter(t)
	c := &client{router: router}

	w := c.postForm("/guess", "3498db", true)
	body := w.Body.String()
	for _, want := range []string{MessageWon, "Color Guessing Game 1/5", "copy-button"} {
		if !strings.Contains(body, want) {
			t.Errorf("Won fragment missing %q", want)
		}
	}
	if strings.Contains(body, `name="guess"`) {
		t.Error("Finished game should not render the guess form")
	}

	w = c.get("/game-state")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), MessageWon) {
		t.Errorf("GET /game-state after win = %d %s", w.Code, w.Body.String())
	}
}

func TestNextGameHandler(t *testing.T) {
	_, router := setupTestRouter(t)
	c := &client{router: router}
	w := c.get("/next-game")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /next-game returned status %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "Next game in 8h 30m 0s" {
		t.Errorf("GET /next-game = %q", got)
	}
}

func TestAPIGuessFlow(t *testing.T) {
	_, router := setupTestRouter(t)
	c := &client{router: router}

	v := decodeView(t, c.get("/api/state"))
	if v.Status != StatusInProgress || v.GuessesLeft != MaxGuesses || v.Date != testDate {
		t.Fatalf("Unexpected initial state: %+v", v)
	}

	w := c.postJSON("/api/guess", `{"guess":"zzzzzz"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Invalid guess returned %d, want 400", w.Code)
	}
	w = c.postJSON("/api/guess", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing guess returned %d, want 400", w.Code)
	}

	for i := range MaxGuesses {
		w = c.postJSON("/api/guess", `{"guess":"#020202"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("Guess %d returned %d: %s", i+1, w.Code, w.Body.String())
		}
	}
	v = decodeView(t, w)
	if v.Status != StatusLost || !v.GameOver || v.GuessesLeft != 0 {
		t.Fatalf("Expected lost game, got %+v", v)
	}
	if v.Message != "Game over! The color was #3498DB" {
		t.Errorf("Message = %q", v.Message)
	}
	if v.Guesses[0] != "020202" {
		t.Errorf("Stored guess = %q, want leading # stripped", v.Guesses[0])
	}
	if len(v.Feedback) != MaxGuesses || len(v.Feedback[0]) != ColorLength {
		t.Errorf("Unexpected feedback shape: %v", v.Feedback)
	}

	w = c.postJSON("/api/guess", `{"guess":"3498DB"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("Guess after game over returned %d, want 409", w.Code)
	}
}

func TestAPIShareHandler(t *testing.T) {
	_, router := setupTestRouter(t)
	c := &client{router: router}

	if w := c.get("/api/share"); w.Code != http.StatusNotFound {
		t.Errorf("Share before finishing returned %d, want 404", w.Code)
	}
	c.postJSON("/api/guess", `{"guess":"3498DB"}`)
	w := c.get("/api/share")
	if w.Code != http.StatusOK {
		t.Fatalf("Share after win returned %d, want 200", w.Code)
	}
	want := "Color Guessing Game 1/5\n\n🟩🟩🟩🟩🟩🟩\n\nPlay at: " + DefaultShareURL
	if w.Body.String() != want {
		t.Errorf("Share text = %q, want %q", w.Body.String(), want)
	}
}

func TestAPIColorHandler(t *testing.T) {
	_, router := setupTestRouter(t)
	c := &client{router: router}

	tests := []struct {
		path   string
		code   int
		hex    string
		source string
	}{
		{"/api/color/today", http.StatusOK, "#3498DB", "calendar"},
		{"/api/color/" + testNextDate, http.StatusOK, "#E74C3C", "calendar"},
		{"/api/color/2030-01-01", http.StatusOK, "", "derived"},
		{"/api/color/not-a-date", http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		w := c.get(tt.path)
		if w.Code != tt.code {
			t.Errorf("GET %s returned %d, want %d", tt.path, w.Code, tt.code)
			continue
		}
		if tt.code != http.StatusOK {
			continue
		}
		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		if tt.hex != "" && resp["hex"] != tt.hex {
			t.Errorf("GET %s hex = %s, want %s", tt.path, resp["hex"], tt.hex)
		}
		if resp["source"] != tt.source {
			t.Errorf("GET %s source = %s, want %s", tt.path, resp["source"], tt.source)
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	_, router := setupTestRouter(t)
	c := &client{router: router}

	limited := false
	for i := 0; i < 11; i++ {
		w := c.postJSON("/api/guess", `{"guess":"000000"}`)
		if w.Code == http.StatusTooManyRequests {
			limited = true
			if i < 10 {
				t.Errorf("Request %d was rate limited before the burst was spent", i+1)
			}
		}
	}
	if !limited {
		t.Error("11th request: expected 429 Too Many Requests")
	}
}

func TestHealthzHandler(t *testing.T) {
	_, router := setupTestRouter(t)
	c := &client{router: router}
	c.get("/")

	w := c.get("/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz returned status %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal /healthz response: %v", err)
	}
	for _, field := range []string{"status", "env", "today", "calendar_days", "storage", "active_sessions", "uptime", "timestamp"} {
		if _, ok := resp[field]; !ok {
			t.Errorf("Expected '%s' field in /healthz response", field)
		}
	}
	if resp["today"] != testDate {
		t.Errorf("today = %v, want %s", resp["today"], testDate)
	}
	if resp["active_sessions"].(float64) != 1 {
		t.Errorf("active_sessions = %v, want 1", resp["active_sessions"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, router := setupTestRouter(t)
	c := &client{router: router}
	c.postJSON("/api/guess", `{"guess":"3498DB"}`)

	w := c.get("/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics returned status %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`colordle_guesses_total{outcome="accepted"} 1`,
		`colordle_games_finished_total{attempts="1",status="won"} 1`,
		`colordle_session_loads_total{source="fresh"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	_, router := setupTestRouter(t)
	req, _ := http.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("X-Request-Id = %q, want abc-123", got)
	}

	req, _ = http.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-Id", "bad id with spaces")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got == "bad id with spaces" || got == "" {
		t.Errorf("Malformed X-Request-Id was echoed: %q", got)
	}
}

func TestStaticCacheHeaders(t *testing.T) {
	app, _ := newTestApp(t)
	app.Config.IsProduction = true
	router := app.setupRouter("templates/*.html", "./static")

	req, _ := http.NewRequest("GET", "/static/css/style.css", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET style.css returned %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "public") || !strings.Contains(cc, "max-age=300") {
		t.Errorf("Cache-Control = %q, want public max-age=300", cc)
	}
}

func isGzipped(w *httptest.ResponseRecorder) bool {
	return w.Header().Get("Content-Encoding") == "gzip"
}

func decompressGzip(data []byte) (string, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	return string(out), err
}

func TestGzipMiddleware_CompressesCSS(t *testing.T) {
	_, router := setupTestRouter(t)
	req, _ := http.NewRequest("GET", "/static/css/style.css", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if !isGzipped(w) {
		t.Fatalf("Expected gzip Content-Encoding for .css file")
	}
	body, err := decompressGzip(w.Body.Bytes())
	if err != nil || !strings.Contains(body, ".swatch") {
		t.Errorf("Failed to decompress gzipped CSS: %v", err)
	}
}

// TestGzipMiddleware_MetricsCompressedOnce checks the metrics handler's own
// compression is not wrapped a second time.
func TestGzipMiddleware_MetricsCompressedOnce(t *testing.T) {
	_, router := setupTestRouter(t)
	req, _ := http.NewRequest("GET", "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if !isGzipped(w) {
		t.Fatalf("Expected gzip Content-Encoding for /metrics")
	}
	body, err := decompressGzip(w.Body.Bytes())
	if err != nil || !strings.Contains(body, "go_goroutines") {
		t.Errorf("Metrics body not readable after one decompression: %v", err)
	}
}
