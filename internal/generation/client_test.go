package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buntercodes/vid-gen/internal/config"
	"github.com/buntercodes/vid-gen/pkg/models"
)

func newTestClient(url string) *Client {
	return NewClient(config.GenerationConfig{
		APIURL:         url,
		APIKey:         "test-key",
		RequestTimeout: 5 * time.Second,
	})
}

func TestClient_GenerateSuccess(t *testing.T) {
	video := []byte("fake-mp4-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "wan2.2-t2v-14b", req.Model)
		assert.Equal(t, "a calm ocean at dusk", req.Prompt)
		assert.Equal(t, "1280x720", req.Size)
		assert.Equal(t, "b64_json", req.ResponseFormat)
		assert.Equal(t, 81, req.NumFrames)
		assert.Equal(t, 16, req.FPS)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{
				{"b64_json": base64.StdEncoding.EncodeToString(video)},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	got, err := client.Generate(context.Background(), &models.GenerationRequest{
		Prompt:      "a calm ocean at dusk",
		Model:       "wan2.2-t2v-14b",
		AspectRatio: "16:9",
		Duration:    "5s",
	})
	require.NoError(t, err)
	assert.Equal(t, video, got)
}

func TestClient_GenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "insufficient balance"},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Generate(context.Background(), &models.GenerationRequest{
		Prompt: "anything",
		Model:  "ltx2-t2v",
	})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Equal(t, "insufficient balance", apiErr.Message)
}

func TestClient_GenerateEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Generate(context.Background(), &models.GenerationRequest{
		Prompt: "anything",
		Model:  "ltx2-t2v",
	})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Message, "no video data")
}

func TestClient_GenerateMissingAPIKey(t *testing.T) {
	client := NewClient(config.GenerationConfig{APIURL: "http://localhost:1", RequestTimeout: time.Second})
	_, err := client.Generate(context.Background(), &models.GenerationRequest{Prompt: "x", Model: "ltx2-t2v"})
	assert.Error(t, err)
}

func TestSizeFor(t *testing.T) {
	tests := []struct {
		model       string
		aspectRatio string
		want        string
	}{
		{"wan2.2-t2v-14b", "16:9", "1280x720"},
		{"wan2.2-t2v-14b", "9:16", "720x1280"},
		{"wan2.2-t2v-14b", "1:1", "720x720"},
		{"wan2.2-t2v-14b", "21:9", "1280x544"},
		{"wan2.1-t2v-480p", "16:9", "832x480"},
		{"wan2.1-t2v-480p", "9:16", "480x832"},
		{"wan2.1-t2v-480p", "1:1", "480x480"},
		{"wan2.1-t2v-480p", "21:9", "832x352"},
		{"cogvideox-1.5-5b", "16:9", "1360x768"},
		{"cogvideox-1.5-5b", "9:16", "768x1360"},
	}

	for _, tt := range tests {
		if got := SizeFor(tt.model, tt.aspectRatio); got != tt.want {
			t.Errorf("SizeFor(%s, %s) = %s, want %s", tt.model, tt.aspectRatio, got, tt.want)
		}
	}
}

func TestFramesFor(t *testing.T) {
	assert.Equal(t, 81, FramesFor("5s"))
	assert.Equal(t, 161, FramesFor("10s"))
	assert.Equal(t, 81, FramesFor(""))
}
