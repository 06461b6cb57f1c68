package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RemoteConfig defines configuration options for a REST OCR endpoint.
type RemoteConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// RemoteProvider calls a self-hosted or third-party OCR service over HTTP.
// The endpoint accepts {"image_url": "..."} and answers {"text": "..."}.
type RemoteProvider struct {
	cfg    RemoteConfig
	client *http.Client
	logger zerolog.Logger
}

// NewRemoteProvider builds the provider from the supplied configuration.
func NewRemoteProvider(cfg RemoteConfig) (*RemoteProvider, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("ocr endpoint is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &RemoteProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// Name identifies the provider in extraction results.
func (p *RemoteProvider) Name() string {
	return "remote-ocr"
}

type remoteRequest struct {
	ImageURL string `json:"image_url"`
}

type remoteResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// ExtractText posts the image reference to the OCR endpoint.
func (p *RemoteProvider) ExtractText(ctx context.Context, ref Ref) (string, error) {
	if strings.TrimSpace(ref.URL) == "" {
		return "", fmt.Errorf("image url is empty")
	}

	body, err := json.Marshal(remoteRequest{ImageURL: ref.URL})
	if err != nil {
		return "", fmt.Errorf("encode ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read ocr response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr endpoint returned status %d", resp.StatusCode)
	}

	var parsed remoteResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ocr endpoint error: %s", parsed.Error)
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return "", fmt.Errorf("ocr endpoint returned empty text")
	}

	return text, nil
}
