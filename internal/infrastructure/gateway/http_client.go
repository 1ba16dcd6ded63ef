package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

// Config holds the HTTP gateway settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Breaker tuning; zero values fall back to defaults.
	FailureRatio float64
	MinRequests  uint32
	OpenTimeout  time.Duration
}

// StateChangeFunc observes circuit breaker transitions.
type StateChangeFunc func(name string, from, to gobreaker.State)

// HTTPClient talks to a Stripe-like checkout REST API behind a circuit breaker.
type HTTPClient struct {
	base    string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	log     zerolog.Logger
}

// NewHTTPClient builds the gateway adapter. onStateChange may be nil.
func NewHTTPClient(cfg Config, log zerolog.Logger, onStateChange StateChangeFunc) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			if onStateChange != nil {
				onStateChange(name, from, to)
			}
		},
	}

	return &HTTPClient{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		log:     log,
	}
}

type createSessionRequest struct {
	ClientReferenceID string            `json:"client_reference_id"`
	AmountCents       int64             `json:"amount_cents"`
	Currency          string            `json:"currency"`
	Description       string            `json:"description,omitempty"`
	SuccessURL        string            `json:"success_url"`
	CancelURL         string            `json:"cancel_url"`
	Metadata          map[string]string `json:"metadata"`
}

type sessionResponse struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	ExpiresAt         int64             `json:"expires_at"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	Metadata          map[string]string `json:"metadata"`
}

const (
	metaBookingID     = "booking_id"
	metaServiceName   = "service_name"
	metaProviderName  = "provider_name"
	paymentStatusPaid = "paid"
)

// CreateCheckoutSession opens a hosted checkout for the booking fee.
func (c *HTTPClient) CreateCheckoutSession(ctx context.Context, req ports.CheckoutRequest) (*domain.CheckoutSession, error) {
	body, err := json.Marshal(createSessionRequest{
		ClientReferenceID: req.BookingID,
		AmountCents:       req.AmountCents,
		Currency:          req.Currency,
		Description:       req.Description,
		SuccessURL:        req.SuccessURL,
		CancelURL:         req.CancelURL,
		Metadata: map[string]string{
			metaBookingID:    req.BookingID,
			metaServiceName:  req.Metadata.ServiceName,
			metaProviderName: req.Metadata.ProviderName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: encode checkout request: %w", err)
	}

	var out sessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", body, &out); err != nil {
		return nil, fmt.Errorf("gateway: create checkout session: %w", err)
	}

	session := &domain.CheckoutSession{ID: out.ID, URL: out.URL}
	if out.ExpiresAt > 0 {
		session.ExpiresAt = time.Unix(out.ExpiresAt, 0).UTC()
	}
	return session, nil
}

// GetSessionStatus returns the gateway's view of a session. An unknown session
// is reported as domain.ErrSessionMismatch.
func (c *HTTPClient) GetSessionStatus(ctx context.Context, sessionID string) (*domain.SessionStatus, error) {
	var out sessionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, fmt.Errorf("gateway: get session %s: %w", sessionID, err)
	}

	bookingID := out.Metadata[metaBookingID]
	if bookingID == "" {
		bookingID = out.ClientReferenceID
	}
	return &domain.SessionStatus{
		SessionID:   out.ID,
		BookingID:   bookingID,
		Paid:        out.PaymentStatus == paymentStatusPaid,
		AmountCents: out.AmountTotal,
		Currency:    out.Currency,
		Metadata: domain.PaymentMetadata{
			ServiceName:  out.Metadata[metaServiceName],
			ProviderName: out.Metadata[metaProviderName],
		},
	}, nil
}

// do executes one call through the breaker and decodes a 2xx body into out.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		var reader io.Reader = http.NoBody
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		// 5xx counts against the breaker; 4xx is the caller's problem.
		if resp.StatusCode >= 500 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: circuit open", domain.ErrGatewayUnavailable)
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// An unknown session cannot belong to the booking being settled.
		return fmt.Errorf("%w: unknown session", domain.ErrSessionMismatch)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway rejected request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// State reports the breaker state for readiness checks.
func (c *HTTPClient) State() gobreaker.State {
	return c.breaker.State()
}
