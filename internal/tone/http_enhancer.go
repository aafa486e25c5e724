package tone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/signalpress/signalpress/pkg/models"
)

// HTTPEnhancer calls a single generic completion endpoint over raw
// net/http, the same way the teacher's router drivers
// (internal/router/router.go's OpenAIDriver et al.) call their provider
// APIs without an SDK. SignalPress only needs one optional enhancement
// call, so the multi-provider registry is trimmed to this one driver.
type HTTPEnhancer struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPEnhancer(endpoint, apiKey string) *HTTPEnhancer {
	return &HTTPEnhancer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type enhanceRequest struct {
	Text string      `json:"text"`
	Tone models.Tone `json:"tone"`
}

type enhanceResponse struct {
	Text string `json:"text"`
}

func (h *HTTPEnhancer) Enhance(ctx context.Context, text string, tone models.Tone) (string, error) {
	if h.endpoint == "" {
		return "", fmt.Errorf("tone enhancer: no endpoint configured")
	}

	body, err := json.Marshal(enhanceRequest{Text: text, Tone: tone})
	if err != nil {
		return "", fmt.Errorf("tone enhancer: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("tone enhancer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tone enhancer: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("tone enhancer: unexpected status %d", resp.StatusCode)
	}

	var out enhanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("tone enhancer: decode response: %w", err)
	}
	return out.Text, nil
}
