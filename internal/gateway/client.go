package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"whatsdesk-backend/internal/dto"
)

// Client talks to the messaging gateway's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	instance   string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, instance string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		instance: instance,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SendText delivers an outbound message through the gateway. A non-2xx
// response is returned verbatim so the caller can surface the gateway's own
// error payload.
func (c *Client) SendText(ctx context.Context, req dto.SendTextRequest) (dto.SendTextResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return dto.SendTextResponse{}, fmt.Errorf("gateway: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, c.instance)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return dto.SendTextResponse{}, fmt.Errorf("gateway: build send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return dto.SendTextResponse{}, fmt.Errorf("gateway: send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return dto.SendTextResponse{}, fmt.Errorf("gateway: read send response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return dto.SendTextResponse{}, fmt.Errorf("gateway: send rejected with status %d: %s", resp.StatusCode, string(raw))
	}

	var sendResp dto.SendTextResponse
	if err := json.Unmarshal(raw, &sendResp); err != nil {
		return dto.SendTextResponse{}, fmt.Errorf("gateway: decode send response: %w", err)
	}
	return sendResp, nil
}

// Probe checks the gateway instance's connection state. The supervisor calls
// it before each stream handshake.
func (c *Client) Probe(ctx context.Context) error {
	url := fmt.Sprintf("%s/instance/connectionState/%s", c.baseURL, c.instance)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("gateway: build probe request: %w", err)
	}
	httpReq.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gateway: probe request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway: probe returned status %d", resp.StatusCode)
	}
	return nil
}
