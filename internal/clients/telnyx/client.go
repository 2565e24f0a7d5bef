package telnyx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"voice-server/internal/observability"
)

const defaultBaseURL = "https://api.telnyx.com/v2"

// APIError carries the provider's status detail for a rejected command.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telnyx API error: status %d: %s", e.StatusCode, e.Body)
}

// Client is a Telnyx Call Control API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *observability.Logger
}

// NewClient creates a new Telnyx client.
func NewClient(apiKey string, logger *observability.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("telnyx API key is required")
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// WithBaseURL overrides the API endpoint, used in tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// CreateCallParams holds the parameters for dialing an outbound call.
type CreateCallParams struct {
	To           string `json:"to"`
	From         string `json:"from"`
	ConnectionID string `json:"connection_id"`
}

type createCallResponse struct {
	Data struct {
		CallControlID string `json:"call_control_id"`
	} `json:"data"`
}

// CreateCall dials an outbound call and returns the provider-assigned
// call control ID that correlates subsequent webhook events.
func (c *Client) CreateCall(ctx context.Context, params CreateCallParams) (string, error) {
	body, err := c.post(ctx, "/calls", params)
	if err != nil {
		return "", err
	}

	var resp createCallResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode create call response: %w", err)
	}
	if resp.Data.CallControlID == "" {
		return "", fmt.Errorf("create call response missing call_control_id")
	}
	return resp.Data.CallControlID, nil
}

// AnswerCall answers an inbound leg. Telnyx rejects an answer command for a
// call that is already bridged with a 422; repeated webhook deliveries make
// that a normal occurrence, so it is treated as success.
func (c *Client) AnswerCall(ctx context.Context, callControlID string) error {
	_, err := c.post(ctx, fmt.Sprintf("/calls/%s/actions/answer", callControlID), struct{}{})
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusUnprocessableEntity {
		c.logger.Warn(observability.WithFields(ctx,
			observability.Field{Key: "call_control_id", Value: callControlID},
		), "answer command rejected for already-answered call")
		return nil
	}
	return err
}

type playAudioParams struct {
	AudioURL string `json:"audio_url"`
}

// PlayAudio commands playback of an audio resource on the call. The URL must
// be reachable from Telnyx's infrastructure.
func (c *Client) PlayAudio(ctx context.Context, callControlID, audioURL string) error {
	_, err := c.post(ctx, fmt.Sprintf("/calls/%s/actions/playback_start", callControlID),
		playAudioParams{AudioURL: audioURL})
	return err
}

// HangupCall tears down the call.
func (c *Client) HangupCall(ctx context.Context, callControlID string) error {
	_, err := c.post(ctx, fmt.Sprintf("/calls/%s/actions/hangup", callControlID), struct{}{})
	return err
}

// post sends an authenticated JSON request and returns the response body,
// surfacing non-2xx responses as *APIError.
func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telnyx request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read telnyx response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
