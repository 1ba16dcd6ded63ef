package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/handyfix/marketplace-engine/pkg/logger"
)

func TestRequestLogger_WritesAccessLine(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/bookings/bk_1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Response().Header().Set(echo.HeaderXRequestID, "req-123")

	var scoped bool
	h := RequestLogger(base)(func(c echo.Context) error {
		l := logger.FromContext(c.Request().Context())
		l.Debug().Msg("inside handler")
		scoped = true
		return echo.NewHTTPError(http.StatusNotFound, "booking not found")
	})

	if err := h(c); err != nil {
		t.Fatalf("expected error to be rendered, got %v", err)
	}
	if !scoped {
		t.Fatal("handler not called")
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 rendered, got %d", rec.Code)
	}

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var access map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &access); err != nil {
		t.Fatalf("invalid log line: %v", err)
	}
	if access["request_id"] != "req-123" || access["status"] != float64(404) || access["level"] != "warn" {
		t.Fatalf("unexpected access line: %v", access)
	}
	if access["method"] != "GET" {
		t.Fatalf("expected method, got %v", access["method"])
	}
}

func TestRequestLogger_ContextLoggerCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", nil), rec)
	c.Response().Header().Set(echo.HeaderXRequestID, "req-456")

	h := RequestLogger(base)(func(c echo.Context) error {
		l := logger.FromContext(c.Request().Context())
		l.Info().Msg("handled")
		return c.NoContent(http.StatusAccepted)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := bytes.Split(buf.Bytes(), []byte("\n"))[0]
	var line map[string]any
	if err := json.Unmarshal(first, &line); err != nil {
		t.Fatalf("invalid log line: %v", err)
	}
	if line["message"] != "handled" || line["request_id"] != "req-456" {
		t.Fatalf("handler log line missing request id: %v", line)
	}
}
