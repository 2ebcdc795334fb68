package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const mistralURL = "https://api.mistral.ai/v1/chat/completions"

// MistralClient calls the Mistral chat completions API.
type MistralClient struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

func NewMistralClient(apiKey, model string) *MistralClient {
	if model == "" {
		model = "mistral-large-latest"
	}
	return &MistralClient{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralRequest struct {
	Model    string           `json:"model"`
	Messages []mistralMessage `json:"messages"`
}

type mistralResponse struct {
	Choices []struct {
		Message mistralMessage `json:"message"`
	} `json:"choices"`
	Message string `json:"message"`
}

func (c *MistralClient) Model() string { return c.model }

// Complete sends prompt as a single user turn and returns the first choice.
func (c *MistralClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(mistralRequest{
		Model:    c.model,
		Messages: []mistralMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("mistral api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mistral api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp mistralResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		if apiResp.Message != "" {
			return "", fmt.Errorf("mistral error: %s", apiResp.Message)
		}
		return "", fmt.Errorf("empty response from mistral")
	}
	return apiResp.Choices[0].Message.Content, nil
}

// Close releases idle connections.
func (c *MistralClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
