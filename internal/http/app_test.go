package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"stockhold/internal/config"
	"stockhold/internal/domain"
	"stockhold/internal/http/handlers"
	applog "stockhold/internal/log"
	"stockhold/internal/notify"
	"stockhold/internal/repos"
)

const (
	adminUser = "admin"
	adminPass = "s3cret-pass"
)

type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (e *eventLog) Enqueue(_ context.Context, evt notify.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

type testApp struct {
	app    *fiber.App
	db     *sqlx.DB
	deps   *handlers.Deps
	events *eventLog
}

// newTestApp wires the real routes over an in-memory store holding the given products.
func newTestApp(t *testing.T, stock map[string]int, limits handlers.RouteLimits) *testApp {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	pr := repos.NewProductRepo(db)
	for id, n := range stock {
		p, _ := domain.NewProduct(id, "Product "+id, n, time.Now().UTC())
		if err := pr.Insert(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPass), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.DBDSN = ":memory:"
	cfg.AdminUser = adminUser
	cfg.AdminPasswordHash = string(hash)

	events := &eventLog{}
	deps := handlers.NewDeps(db, cfg, events)

	engine := html.New("../../web/templates", ".html")
	app := fiber.New(fiber.Config{Views: engine, ErrorHandler: handlers.ErrorHandler})
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB
	app.Use(requestid.New())
	handlers.Mount(app, deps, limits)
	return &testApp{app: app, db: db, deps: deps, events: events}
}

func relaxedLimits() handlers.RouteLimits {
	return handlers.RouteLimits{ReserveMax: 1000, AvailabilityMax: 1000, Window: time.Minute}
}

func (ta *testApp) do(t *testing.T, method, path string, body any) (int, map[string]any, *http.Response) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out, resp
}

type logEntry struct {
	Level  string         `json:"level"`
	Kind   string         `json:"kind"`
	Action string         `json:"action"`
	Status int            `json:"status"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	buf := &lockedBuf{}
	applog.Setup(buf, "debug")
	defer applog.Setup(io.Discard, "info")

	fn()

	buf.mu.Lock()
	defer buf.mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.b.String()), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findAction(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
