package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"agriconnect/internal/cache"
	"agriconnect/internal/config"
	"agriconnect/internal/events"
	"agriconnect/internal/http/handlers"
	"agriconnect/internal/repos"
)

type testApp struct {
	app *fiber.App
	db  *sqlx.DB
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := repos.OpenDB(repos.DriverSQLite, ":memory:", false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Default()
	cfg.BcryptCost = 4
	cfg.RateLimitPerMin = 1000
	deps := handlers.NewDeps(db, cfg, events.Nop{}, cache.NewMemory())
	return &testApp{app: handlers.NewApp(cfg, deps), db: db}
}

type reply struct {
	Status int
	Body   []byte
}

func (r reply) JSON(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &m), "body=%s", r.Body)
	return m
}

func (r reply) List(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &out), "body=%s", r.Body)
	return out
}

func (ta *testApp) do(t *testing.T, method, path, token string, body any, headers ...string) reply {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return reply{Status: resp.StatusCode, Body: raw}
}

// register creates an account and returns its token and id.
func (ta *testApp) register(t *testing.T, name, role string, extra map[string]any) (string, int64) {
	t.Helper()
	body := map[string]any{
		"name":     name,
		"email":    strings.ToLower(name) + "@farm.test",
		"password": "harvest-2025",
		"role":     role,
	}
	for k, v := range extra {
		body[k] = v
	}
	r := ta.do(t, "POST", "/api/auth/register", "", body)
	require.Equal(t, fiber.StatusCreated, r.Status, "body=%s", r.Body)
	m := r.JSON(t)
	user := m["user"].(map[string]any)
	return m["token"].(string), int64(user["id"].(float64))
}

// addProduct lists a product as the farmer and returns its id.
func (ta *testApp) addProduct(t *testing.T, token, crop string, price, qty float64) int64 {
	t.Helper()
	r := ta.do(t, "POST", "/api/products", token, map[string]any{
		"cropName": crop, "pricePerKg": price, "availableQty": qty,
	})
	require.Equal(t, fiber.StatusCreated, r.Status, "body=%s", r.Body)
	return int64(r.JSON(t)["id"].(float64))
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Err    string         `json:"err"`
	UserID int64          `json:"user_id"`
	Fields map[string]any `json:"fields"`
}

// captureLogs collects JSON log lines written while fn runs.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf bytes.Buffer
	var mu sync.Mutex
	oldW := log.Writer()
	oldFlags := log.Flags()
	log.SetOutput(&lockedWriter{w: &buf, mu: &mu})
	log.SetFlags(0)
	defer func() {
		log.SetOutput(oldW)
		log.SetFlags(oldFlags)
	}()

	fn()

	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var e logEntry
		if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

func findAction(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
