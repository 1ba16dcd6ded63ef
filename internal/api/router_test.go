package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/handyfix/marketplace-engine/internal/api/handler"
	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
	"github.com/handyfix/marketplace-engine/internal/core/service"
)

const testSecret = "router-test-secret"

type fixedResolver struct {
	phase   domain.RolePhase
	verdict domain.RoleVerdict
}

func (r fixedResolver) Resolve(_ context.Context, p domain.Principal) domain.RoleState {
	return domain.RoleState{Phase: r.phase, Principal: p, Verdict: r.verdict}
}

func (fixedResolver) Forget(string) {}

type routerBookings struct {
	ports.BookingService
	got domain.Actor
}

func (s *routerBookings) GetBooking(_ context.Context, id string, actor domain.Actor) (*domain.Booking, error) {
	s.got = actor
	if id != "bk_1" {
		return nil, domain.ErrBookingNotFound
	}
	return &domain.Booking{ID: id, ClientID: actor.UserID, Status: domain.StatusPending}, nil
}

type routerDispatcher struct{ n int }

func (d *routerDispatcher) Enqueue(ports.GatewayEventInput) error {
	d.n++
	return nil
}

type routerPayer struct{}

func (routerPayer) MarkPaid(_ context.Context, id string) (*domain.SessionStatus, error) {
	return &domain.SessionStatus{SessionID: id, BookingID: "bk_1", Paid: true}, nil
}

var resolvedClient = fixedResolver{
	phase:   domain.RolePhaseResolved,
	verdict: domain.RoleVerdict{IsAuthenticated: true, IsVerified: true, IsClient: true},
}

func newTestRouter(t *testing.T, resolver ports.RoleService, sandbox handler.SandboxPayer) (*echo.Echo, *routerBookings, *routerDispatcher) {
	t.Helper()
	bookings := &routerBookings{}
	dispatcher := &routerDispatcher{}
	e := NewRouter(Deps{
		JWTSecret:       testSecret,
		Log:             zerolog.Nop(),
		Roles:           resolver,
		Bookings:        bookings,
		Dispatcher:      dispatcher,
		VerifyWebhook:   func(string, []byte) error { return nil },
		SignatureHeader: "Gateway-Signature",
		Sandbox:         sandbox,
		HealthChecks:    map[string]handler.Check{"mongo": func(context.Context) error { return nil }},
		Registry:        prometheus.NewRegistry(),
	})
	return e, bookings, dispatcher
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      sub,
		"provider": false,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func serve(e *echo.Echo, method, target, body, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env handler.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if env.Error == nil {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	return env.Error.Code
}

func TestRouter_RequiresBearerToken(t *testing.T) {
	e, _, _ := newTestRouter(t, resolvedClient, nil)

	rec := serve(e, http.MethodGet, "/v1/bookings/bk_1", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "unauthenticated" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestRouter_AuthenticatedBookingRead(t *testing.T) {
	e, bookings, _ := newTestRouter(t, resolvedClient, nil)

	rec := serve(e, http.MethodGet, "/v1/bookings/bk_1", "", bearer(t, "client_1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if bookings.got.UserID != "client_1" || !bookings.got.Verdict.IsClient {
		t.Fatalf("actor not resolved from token: %+v", bookings.got)
	}
}

func TestRouter_DomainErrorIsMapped(t *testing.T) {
	e, _, _ := newTestRouter(t, resolvedClient, nil)

	rec := serve(e, http.MethodGet, "/v1/bookings/bk_missing", "", bearer(t, "client_1"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "not_found" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestRouter_PendingVerdictAsksToRetry(t *testing.T) {
	e, _, _ := newTestRouter(t, fixedResolver{phase: domain.RolePhasePending}, nil)

	rec := serve(e, http.MethodGet, "/v1/bookings/bk_1", "", bearer(t, "client_1"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

// gatedProfiles holds every lookup until gate is closed.
type gatedProfiles struct {
	gate    chan struct{}
	lookups atomic.Int32
}

func (p *gatedProfiles) FindProfiles(ctx context.Context, userID string) (domain.ProfileSet, error) {
	p.lookups.Add(1)
	select {
	case <-p.gate:
	case <-ctx.Done():
		return domain.ProfileSet{}, ctx.Err()
	}
	return domain.ProfileSet{Client: &domain.Profile{UserID: userID}}, nil
}

func (p *gatedProfiles) CreateProfile(context.Context, domain.Role, *domain.Profile) error {
	return nil
}

// awaitVerdict retries GET /v1/me/role until the role lookup has finished.
func awaitVerdict(t *testing.T, e *echo.Echo, token string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := serve(e, http.MethodGet, "/v1/me/role", "", token)
		if rec.Code == http.StatusOK {
			return
		}
		if rec.Code != http.StatusServiceUnavailable || time.Now().After(deadline) {
			t.Fatalf("verdict never arrived, last status %d", rec.Code)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRouter_SlowRoleLookupThenSignOut(t *testing.T) {
	profiles := &gatedProfiles{gate: make(chan struct{})}
	roles := service.NewRoleSessions(
		service.NewRoleResolver(profiles, domain.DefaultRolePolicy, zerolog.Nop()),
		20*time.Millisecond, time.Minute,
	)
	e, _, _ := newTestRouter(t, roles, nil)
	token := bearer(t, "client_1")

	rec := serve(e, http.MethodGet, "/v1/me/role", "", token)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the lookup is slow, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	close(profiles.gate)
	awaitVerdict(t, e, token)
	if n := profiles.lookups.Load(); n != 1 {
		t.Fatalf("expected retries to share one lookup, got %d", n)
	}

	if rec := serve(e, http.MethodPost, "/v1/auth/logout", "", token); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from logout, got %d", rec.Code)
	}
	awaitVerdict(t, e, token)
	if n := profiles.lookups.Load(); n != 2 {
		t.Fatalf("expected sign-out to drop the cached role, got %d lookups", n)
	}
}

func TestRouter_UnverifiedCallerCannotCreate(t *testing.T) {
	e, _, _ := newTestRouter(t, fixedResolver{
		phase:   domain.RolePhaseResolved,
		verdict: domain.RoleVerdict{IsAuthenticated: true},
	}, nil)

	rec := serve(e, http.MethodPost, "/v1/bookings", `{}`, bearer(t, "client_1"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouter_WebhookNeedsNoBearer(t *testing.T) {
	e, _, dispatcher := newTestRouter(t, resolvedClient, nil)

	body := `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","metadata":{"booking_id":"bk_1"}}}}`
	rec := serve(e, http.MethodPost, "/v1/payments/webhook", body, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if dispatcher.n != 1 {
		t.Fatalf("expected one enqueued event, got %d", dispatcher.n)
	}
}

func TestRouter_SandboxRouteOnlyWhenConfigured(t *testing.T) {
	e, _, _ := newTestRouter(t, resolvedClient, nil)
	if rec := serve(e, http.MethodPost, "/sandbox/checkout/cs_1/pay", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without sandbox, got %d", rec.Code)
	}

	e, _, dispatcher := newTestRouter(t, resolvedClient, routerPayer{})
	if rec := serve(e, http.MethodPost, "/sandbox/checkout/cs_1/pay", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with sandbox, got %d", rec.Code)
	}
	if dispatcher.n != 1 {
		t.Fatalf("sandbox payment should enqueue an event, got %d", dispatcher.n)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	e, _, _ := newTestRouter(t, resolvedClient, nil)

	if rec := serve(e, http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rec.Code)
	}
	rec := serve(e, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "marketplace_requests_total") {
		t.Fatalf("expected http request metrics, got:\n%s", rec.Body.String())
	}
}
