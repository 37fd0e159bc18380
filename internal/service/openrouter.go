package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mansoorceksport/nutritico/internal/domain"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	chatCompletionsPath      = "/chat/completions"
)

// OpenRouterTransport implements domain.LLMTransport using the OpenRouter chat completions API
type OpenRouterTransport struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	httpClient  *http.Client
}

// NewOpenRouterTransport creates a new OpenRouter transport. An empty baseURL uses the public API.
func NewOpenRouterTransport(apiKey, model, baseURL string) *OpenRouterTransport {
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	return &OpenRouterTransport{
		apiKey:      apiKey,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: 0.4,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Complete sends the system prompt, the user text and any images and returns the model text
func (t *OpenRouterTransport) Complete(ctx context.Context, systemPrompt, userQuery string, images [][]byte) (string, error) {
	var userContent interface{} = userQuery
	if len(images) > 0 {
		parts := make([]map[string]interface{}, 0, len(images)+1)
		for _, img := range images {
			parts = append(parts, map[string]interface{}{
				"type": "image_url",
				"image_url": map[string]string{
					"url": fmt.Sprintf("data:%s;base64,%s", detectImageType(img), base64.StdEncoding.EncodeToString(img)),
				},
			})
		}
		parts = append(parts, map[string]interface{}{
			"type": "text",
			"text": userQuery,
		})
		userContent = parts
	}

	requestBody := map[string]interface{}{
		"model": t.model,
		"messages": []map[string]interface{}{
			{
				"role":    "system",
				"content": systemPrompt,
			},
			{
				"role":    "user",
				"content": userContent,
			},
		},
		"temperature": t.temperature,
	}

	payload, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+chatCompletionsPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", "NutriTico")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openrouter api error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message  string                 `json:"message"`
			Code     int                    `json:"code"`
			Metadata map[string]interface{} `json:"metadata"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if apiResponse.Error != nil {
		errorMsg := fmt.Sprintf("openrouter error: %s (code: %d)", apiResponse.Error.Message, apiResponse.Error.Code)
		if providerErr, ok := apiResponse.Error.Metadata["provider_error"].(string); ok {
			errorMsg += " - provider error: " + providerErr
		}
		return "", fmt.Errorf("%s", errorMsg)
	}

	if len(apiResponse.Choices) == 0 {
		return "", fmt.Errorf("no response from AI model")
	}

	return apiResponse.Choices[0].Message.Content, nil
}

// detectImageType detects the MIME type of an image from its header bytes
func detectImageType(data []byte) string {
	if len(data) < 12 {
		return "image/jpeg"
	}
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 {
		return "image/gif"
	}
	if data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "image/jpeg"
}

var _ domain.LLMTransport = (*OpenRouterTransport)(nil)
