package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClipProvider implements ImageEmbeddingProvider against the OpenCLIP sidecar
// service (ViT-H/14). The sidecar accepts a base64 image and replies with the
// raw vector plus its dimension count.
type ClipProvider struct {
	BaseURL string
	Client  *http.Client
}

func NewClipProvider(baseURL string) *ClipProvider {
	if baseURL == "" {
		baseURL = "http://localhost:8750"
	}
	return &ClipProvider{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type clipEmbedRequest struct {
	Image string `json:"image"`
}

type clipEmbedResponse struct {
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
	Error      string    `json:"error,omitempty"`
}

func (p *ClipProvider) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	reqBody := clipEmbedRequest{
		Image: base64.StdEncoding.EncodeToString(imageData),
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/embed", p.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clip request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clip embedding error: status %d, body %s", resp.StatusCode, string(bodyBytes))
	}

	var clipResp clipEmbedResponse
	if err := json.Unmarshal(bodyBytes, &clipResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if clipResp.Error != "" {
		return nil, fmt.Errorf("clip embedding error: %s", clipResp.Error)
	}

	return clipResp.Embedding, nil
}
