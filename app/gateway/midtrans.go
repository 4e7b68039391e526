package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrGatewayUnavailable covers unreachable gateway, non-2xx responses
	// and malformed bodies. Retryable by the caller, never retried here.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrOrderNotFound means the gateway has no transaction for the order
	// id, i.e. payment was never started on the gateway side.
	ErrOrderNotFound = errors.New("transaction not found on gateway")
)

type Config struct {
	BaseURL     string
	ServerKey   string
	HTTPTimeout time.Duration
}

// TransactionStatus is the gateway's per-order status report. GrossAmount
// stays a string: its literal rendering participates in signatures.
type TransactionStatus struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	GrossAmount       string `json:"gross_amount"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	TransactionTime   string `json:"transaction_time"`
}

type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// GetTransactionStatus queries the gateway's status endpoint for one order.
// Pure query, no side effects, no partial trust of error responses.
func (c *Client) GetTransactionStatus(ctx context.Context, orderID string) (*TransactionStatus, error) {
	endpoint := c.cfg.BaseURL + "/v2/" + url.PathEscape(orderID) + "/status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.ServerKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrOrderNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrGatewayUnavailable, resp.StatusCode, string(body))
	}

	var status TransactionStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrGatewayUnavailable, err)
	}
	if status.StatusCode == "404" {
		return nil, ErrOrderNotFound
	}

	return &status, nil
}

// Raw re-serializes a status report for the payment audit log.
func (s *TransactionStatus) Raw() string {
	encoded, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(encoded)
}
