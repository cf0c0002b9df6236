package log_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	applog "stockhold/internal/log"
)

func TestAuditAndErrorLines(t *testing.T) {
	var buf bytes.Buffer
	applog.Setup(&buf, "info")
	defer applog.Setup(io.Discard, "info")

	app := fiber.New()
	app.Use(requestid.New())
	app.Post("/x", func(c *fiber.Ctx) error {
		applog.Audit(c, "reservation.reserve", map[string]any{"product": "p1", "qty": 2})
		applog.Error(c, "reservation.reserve.fail", errors.New("boom"), nil)
		return c.SendStatus(fiber.StatusNoContent)
	})
	if _, err := app.Test(httptest.NewRequest("POST", "/x", nil)); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %s", len(lines), buf.String())
	}
	var audit map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &audit); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"ts", "level", "req_id", "ip", "method", "path", "action", "fields"} {
		if _, ok := audit[k]; !ok {
			t.Fatalf("audit line missing %q: %s", k, lines[0])
		}
	}
	if audit["kind"] != "audit" || audit["path"] != "/x" {
		t.Fatalf("unexpected audit line: %s", lines[0])
	}

	var failed map[string]any
	_ = json.Unmarshal([]byte(lines[1]), &failed)
	if failed["level"] != "error" || failed["err"] != "boom" {
		t.Fatalf("unexpected error line: %s", lines[1])
	}
}

func TestSetupLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	applog.Setup(&buf, "error")
	defer applog.Setup(io.Discard, "info")

	applog.Info(nil, "quiet", nil)
	sl := applog.Component("sweeper")
	sl.Info().Msg("quiet too")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at error level: %s", buf.String())
	}
	applog.Error(nil, "loud", errors.New("x"), nil)
	if !strings.Contains(buf.String(), `"action":"loud"`) {
		t.Fatalf("error line missing: %s", buf.String())
	}
}
