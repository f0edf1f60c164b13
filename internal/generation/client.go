// Package generation orchestrates video generation requests: quota
// admission, the external generation call, output storage, and the ledger.
package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/buntercodes/vid-gen/internal/config"
	"github.com/buntercodes/vid-gen/pkg/models"
)

// APIError is a failure reported by the external generation API. The call is
// opaque with a binary outcome; no partial progress is observed.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generation API error (status %d): %s", e.StatusCode, e.Message)
}

// Client calls the external generation API
type Client struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

// NewClient creates a generation API client
func NewClient(cfg config.GenerationConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
	}
}

type apiRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
	NumFrames      int    `json:"num_frames"`
	FPS            int    `json:"fps"`
	Image          string `json:"image,omitempty"`
}

type apiResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate performs one generation call and returns the produced video bytes
func (c *Client) Generate(ctx context.Context, req *models.GenerationRequest) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("generation API key is not configured")
	}

	payload := apiRequest{
		Model:          req.Model,
		Prompt:         req.Prompt,
		Size:           SizeFor(req.Model, req.AspectRatio),
		ResponseFormat: "b64_json",
		NumFrames:      FramesFor(req.Duration),
		FPS:            DefaultFPS,
		Image:          req.Image,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := "failed to generate video"
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if len(result.Data) == 0 || result.Data[0].B64JSON == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "no video data received from API"}
	}

	video, err := base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode video payload: %w", err)
	}

	return video, nil
}
