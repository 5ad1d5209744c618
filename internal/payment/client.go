package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Zenkai92/Modelify/internal/logging"
	"github.com/Zenkai92/Modelify/internal/projects/service"
	"github.com/Zenkai92/Modelify/internal/upstream"
)

const (
	defaultTimeout = 15 * time.Second
	sessionTimeout = 30 * time.Second // checkout creation touches the provider's payment rails
)

// Client talks to the payment provider's HTTP API. It implements the
// lifecycle engine's Gateway.
type Client struct {
	baseURL       string
	apiKey        string
	successURL    string
	cancelURL     string
	defaultClient *http.Client
	sessionClient *http.Client
}

func NewClient(baseURL, apiKey, successURL, cancelURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		defaultClient: &http.Client{
			Timeout: defaultTimeout,
		},
		sessionClient: &http.Client{
			Timeout: sessionTimeout,
		},
	}
}

type createSessionRequest struct {
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	ProductName string            `json:"product_name"`
	CustomerID  string            `json:"customer_id"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata"`
}

type sessionResponse struct {
	ID       string            `json:"id"`
	URL      string            `json:"url,omitempty"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// CreateCheckoutSession opens a one-off checkout for a quoted project. The
// project id travels in the session metadata so callbacks can find their way
// back.
func (c *Client) CreateCheckoutSession(ctx context.Context, p service.CheckoutParams) (*service.CheckoutSession, error) {
	logger := logging.FromContext(ctx)
	start := time.Now()

	body := createSessionRequest{
		AmountCents: p.Amount.Shift(2).IntPart(),
		Currency:    "eur",
		ProductName: "Projet : " + p.ProjectTitle,
		CustomerID:  p.CustomerID,
		SuccessURL:  c.successURL,
		CancelURL:   c.cancelURL,
		Metadata:    map[string]string{"project_id": p.ProjectID, "type": "project_payment"},
	}

	var out sessionResponse
	err := c.do(ctx, c.sessionClient, http.MethodPost, "/v1/checkout/sessions", body, &out)
	recordProviderCall(time.Since(start), err)
	if err != nil {
		logger.Error("create_checkout_session", err)
		return nil, err
	}

	logger.Infof("create_checkout_session", "session=%s project=%s amount_cents=%d", out.ID, p.ProjectID, body.AmountCents)
	return &service.CheckoutSession{ID: out.ID, URL: out.URL}, nil
}

// GetSession asks the provider for the authoritative session state.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*service.SessionState, error) {
	logger := logging.FromContext(ctx)
	start := time.Now()

	var out sessionResponse
	err := c.do(ctx, c.defaultClient, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil, &out)
	recordProviderCall(time.Since(start), err)
	if err != nil {
		logger.Error("get_checkout_session", err)
		return nil, err
	}

	state := &service.SessionState{
		ID:        out.ID,
		ProjectID: out.Metadata["project_id"],
	}
	switch out.Status {
	case "paid", "complete":
		state.Status = service.SessionPaid
	case "expired":
		state.Status = service.SessionExpired
	default:
		state.Status = service.SessionOpen
	}
	return state, nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return &upstream.Error{Service: "payment provider", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &upstream.Error{Service: "payment provider", Err: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data))}
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
