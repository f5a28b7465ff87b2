// Package venue implements the external order-submission/query interface for
// both venues. The coordinator treats it as opaque: signing and auth are the
// gateway's concern, not ours.
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Endpoints maps each venue to its order-gateway base URL.
type Endpoints map[domain.Venue]string

// Credentials maps each venue to its gateway API key. Missing entries send
// unauthenticated requests.
type Credentials map[domain.Venue]string

// Client is a REST client for the per-venue order gateways.
type Client struct {
	endpoints  Endpoints
	creds      Credentials
	httpClient *http.Client
}

// NewClient creates an order client for the given gateway endpoints.
func NewClient(endpoints Endpoints, creds Credentials) *Client {
	return &Client{
		endpoints: endpoints,
		creds:     creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// orderRequest is the wire shape for order submission.
type orderRequest struct {
	Instrument string `json:"instrument"`
	Side       string `json:"side"`
	Price      string `json:"price"`
	Size       string `json:"size"`
}

// orderResponse is the wire shape of submission and status replies.
type orderResponse struct {
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	FilledSize string `json:"filled_size"`
	TotalSize  string `json:"total_size"`
	ErrorMsg   string `json:"error_msg,omitempty"`
}

// SubmitOrder posts one order and returns the assigned order identifier.
func (c *Client) SubmitOrder(ctx context.Context, venue domain.Venue, instrument string, side domain.BookSide, price, size float64) (string, error) {
	req := orderRequest{
		Instrument: instrument,
		Side:       string(side),
		Price:      strconv.FormatFloat(price, 'f', -1, 64),
		Size:       strconv.FormatFloat(size, 'f', -1, 64),
	}

	body, err := c.do(ctx, venue, http.MethodPost, "/orders", req)
	if err != nil {
		return "", fmt.Errorf("venue: submit order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("venue: decode submit response: %w", err)
	}
	if resp.ErrorMsg != "" {
		return "", fmt.Errorf("venue: order rejected: %s", resp.ErrorMsg)
	}
	if resp.OrderID == "" {
		return "", fmt.Errorf("venue: submit response missing order_id")
	}
	return resp.OrderID, nil
}

// GetOrderStatus queries the fill state of one order.
func (c *Client) GetOrderStatus(ctx context.Context, venue domain.Venue, orderID string) (domain.OrderStatus, error) {
	body, err := c.do(ctx, venue, http.MethodGet, "/orders/"+orderID, nil)
	if err != nil {
		return domain.OrderStatus{}, fmt.Errorf("venue: order status %s: %w", orderID, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderStatus{}, fmt.Errorf("venue: decode status response: %w", err)
	}

	st := domain.OrderStatus{
		OrderID: resp.OrderID,
		Status:  resp.Status,
	}
	st.FilledSize, _ = strconv.ParseFloat(resp.FilledSize, 64)
	st.TotalSize, _ = strconv.ParseFloat(resp.TotalSize, 64)
	return st, nil
}

// CancelOrder cancels one order by id.
func (c *Client) CancelOrder(ctx context.Context, venue domain.Venue, orderID string) error {
	if _, err := c.do(ctx, venue, http.MethodDelete, "/orders/"+orderID, nil); err != nil {
		return fmt.Errorf("venue: cancel order %s: %w", orderID, err)
	}
	return nil
}

// do executes one request against the venue's gateway and returns the body.
func (c *Client) do(ctx context.Context, venue domain.Venue, method, path string, payload any) ([]byte, error) {
	base, ok := c.endpoints[venue]
	if !ok {
		return nil, fmt.Errorf("no endpoint configured for %s", venue)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := c.creds[venue]; key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
