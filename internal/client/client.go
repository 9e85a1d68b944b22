// Package client provides an HTTP client for the Frame Vist admin API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/framevist/framevist/internal/analytics"
	"github.com/framevist/framevist/internal/catalog"
)

// AdminClient talks to the /admin/* endpoints of one storefront.
type AdminClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates an AdminClient with a 10-second timeout.
func New(baseURL, token string) *AdminClient {
	return &AdminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// Health checks GET /health. Returns (ok, response body or error message).
func (c *AdminClient) Health(ctx context.Context) (bool, string) {
	body, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return false, err.Error()
	}
	return true, strings.TrimSpace(string(body))
}

// Reset calls POST /admin/reset.
func (c *AdminClient) Reset(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/admin/reset", nil)
	if err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// State fetches GET /admin/state as raw JSON.
func (c *AdminClient) State(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/admin/state", nil)
}

// Seed POSTs the contents of a JSON state file to /admin/state.
func (c *AdminClient) Seed(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading seed file: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/admin/state", data)
	if err != nil {
		return "", fmt.Errorf("seed: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// ListOrders returns up to limit orders, newest first. Zero means all.
func (c *AdminClient) ListOrders(ctx context.Context, limit int) ([]catalog.Order, error) {
	path := "/admin/orders"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var out struct {
		Data []catalog.Order `json:"data"`
	}
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ListPromos returns every promo code.
func (c *AdminClient) ListPromos(ctx context.Context) ([]catalog.PromoCode, error) {
	var out struct {
		Data []catalog.PromoCode `json:"data"`
	}
	if err := c.getJSON(ctx, "/admin/promos", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// UpsertPromo creates or replaces a promo code.
func (c *AdminClient) UpsertPromo(ctx context.Context, promo catalog.PromoCode) (catalog.PromoCode, error) {
	data, err := json.Marshal(promo)
	if err != nil {
		return catalog.PromoCode{}, err
	}
	body, err := c.do(ctx, http.MethodPut, "/admin/promos/"+url.PathEscape(promo.Code), data)
	if err != nil {
		return catalog.PromoCode{}, err
	}
	var saved catalog.PromoCode
	if err := json.Unmarshal(body, &saved); err != nil {
		return catalog.PromoCode{}, fmt.Errorf("decoding promo: %w", err)
	}
	return saved, nil
}

// DeletePromo removes a promo code.
func (c *AdminClient) DeletePromo(ctx context.Context, code string) error {
	_, err := c.do(ctx, http.MethodDelete, "/admin/promos/"+url.PathEscape(code), nil)
	return err
}

// Analytics fetches the dashboard summary for window.
func (c *AdminClient) Analytics(ctx context.Context, window analytics.Window) (analytics.Summary, error) {
	var out analytics.Summary
	err := c.getJSON(ctx, "/admin/analytics?window="+url.QueryEscape(string(window)), &out)
	return out, err
}

func (c *AdminClient) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *AdminClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
