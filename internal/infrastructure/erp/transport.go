package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func (c *Client) authorizedGet(ctx context.Context, path string, out any, operation string) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out, operation, c.currentToken())
}

func (c *Client) authorizedPost(ctx context.Context, path string, payload, out any, operation string) error {
	return c.doJSON(ctx, http.MethodPost, path, payload, out, operation, c.currentToken())
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any, operation, token string) error {
	return c.doJSON(ctx, http.MethodPost, path, payload, out, operation, token)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any, operation, token string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("TenantId", c.tenantID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("erp %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newStatusError(operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func newStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
