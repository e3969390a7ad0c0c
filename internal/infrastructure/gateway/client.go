package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/bizshop/storefront/internal/domain/payment"
	"github.com/bizshop/storefront/internal/observability"
	"github.com/bizshop/storefront/internal/observability/logctx"
)

const (
	defaultTimeout = 10 * time.Second
	ordersPath     = "/v1/orders"
)

// Client talks to the payment gateway's order-creation API over HTTP with
// basic auth. Amounts go over the wire in minor units.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
	log        observability.Logger
	requests   observability.Counter
	duration   observability.Histogram
}

func NewClient(baseURL, keyID, keySecret string, timeout time.Duration, tel observability.Observability) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: &http.Client{Timeout: timeout},
		log:        tel.Logger().With(observability.F("component", "payment_gateway")),
		requests:   tel.Metrics().Counter(observability.MExternalRequests),
		duration:   tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func (c *Client) CreateIntent(ctx context.Context, req domain.IntentRequest) (*domain.Intent, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, domain.ErrMissingCredentials
	}
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	amountMinor := req.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	body := createOrderRequest{
		Amount:   amountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes: map[string]string{
			"account_id": req.AccountID,
			"plan":       req.PlanTag,
			"email":      req.Email,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &domain.GatewayError{Op: "create_intent", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ordersPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.GatewayError{Op: "create_intent", Err: err}
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.duration.Observe(time.Since(start).Seconds(), observability.L("target", "gateway"))
	if err != nil {
		c.requests.Add(1, observability.L("target", "gateway"), observability.L("outcome", "error"))
		return nil, &domain.GatewayError{Op: "create_intent", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.requests.Add(1, observability.L("target", "gateway"), observability.L("outcome", "error"))
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger := logctx.FromOr(ctx, c.log)
		logger.Warn("gateway_intent_rejected",
			observability.F("status", resp.StatusCode),
			observability.F("body", string(snippet)),
		)
		return nil, &domain.GatewayError{
			Op:  "create_intent",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.requests.Add(1, observability.L("target", "gateway"), observability.L("outcome", "error"))
		return nil, &domain.GatewayError{Op: "create_intent", Err: err}
	}
	c.requests.Add(1, observability.L("target", "gateway"), observability.L("outcome", "success"))

	logger := logctx.FromOr(ctx, c.log)
	logger.Info("gateway_intent_created",
		observability.F("intent_id", out.ID),
		observability.F("amount_minor", out.Amount),
		observability.F("currency", out.Currency),
	)

	return &domain.Intent{
		ID:          out.ID,
		Currency:    out.Currency,
		AmountMinor: out.Amount,
		Receipt:     out.Receipt,
	}, nil
}

// Disabled is the gateway used when no credentials are configured. Every
// intent attempt fails fast instead of dialing out.
type Disabled struct{}

func (Disabled) CreateIntent(context.Context, domain.IntentRequest) (*domain.Intent, error) {
	return nil, domain.ErrMissingCredentials
}
