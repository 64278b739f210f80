package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"delivery-track/internal/logger"
)

var (
	ErrUnauthorized = errors.New("backend rejected the credential")
	ErrNotFound     = errors.New("resource not found")
)

// Client is the bearer-token HTTP client for the marketplace REST API. The
// agent uses it around the tracking session: login, delivery lookup, and
// minting the per-delivery tracking credential.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger

	mu    sync.Mutex
	token string
}

// New creates a client for the given API base URL.
func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// SetToken installs a previously obtained access token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current access token, empty before login.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Delivery is the subset of the trip record the agent cares about.
type Delivery struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	PickupAddress  string `json:"pickup_address"`
	DropoffAddress string `json:"dropoff_address"`
	CarrierID      string `json:"carrier_id,omitempty"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Login exchanges credentials for an access token and installs it.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("login: empty token in response")
	}
	c.SetToken(out.Token)
	return out.Token, nil
}

// Delivery fetches one delivery record.
func (c *Client) Delivery(ctx context.Context, id string) (Delivery, error) {
	var out Delivery
	if err := c.do(ctx, http.MethodGet, "/api/deliveries/"+id, nil, &out); err != nil {
		return Delivery{}, fmt.Errorf("get delivery: %w", err)
	}
	return out, nil
}

// TrackingToken mints the per-delivery credential used on the tracking
// websocket.
func (c *Client) TrackingToken(ctx context.Context, deliveryID string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/deliveries/"+deliveryID+"/tracking-token", nil, &out); err != nil {
		return "", fmt.Errorf("tracking token: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("tracking token: empty token in response")
	}
	return out.Token, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		var ae apiError
		if err := json.NewDecoder(resp.Body).Decode(&ae); err == nil && (ae.Error != "" || ae.Message != "") {
			return fmt.Errorf("backend %d: %s%s", resp.StatusCode, ae.Error, ae.Message)
		}
		return fmt.Errorf("backend %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
