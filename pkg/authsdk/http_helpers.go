package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxResponseBytes bounds how much of a response body is buffered.
const maxResponseBytes = 4 << 20

// exchange performs one request and returns the response body when the
// status matches want. Any other status becomes an *APIError. The JSON
// body is marshalled per call so a refreshed retry sends the same bytes.
func (c *Client) exchange(ctx context.Context, method, path, token string, in any, want int) ([]byte, error) {
	var payload io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("authsdk: encode %s %s: %w", method, path, err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("authsdk: build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authsdk: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("authsdk: read %s %s: %w", method, path, err)
	}
	if resp.StatusCode != want {
		return nil, parseErrorResponse(resp, body)
	}
	return body, nil
}

// doJSON is exchange plus decoding into out. A nil out ignores the body.
func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any, want int) error {
	body, err := c.exchange(ctx, method, path, token, in, want)
	if err != nil || out == nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("authsdk: decode %s %s: %w", method, path, err)
	}
	return nil
}
