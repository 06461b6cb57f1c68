package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// VisionConfig defines configuration options for the OpenAI vision provider.
type VisionConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// VisionProvider extracts text from images through the OpenAI chat API using
// image-URL content parts.
type VisionProvider struct {
	client *openai.Client
	cfg    VisionConfig
	logger zerolog.Logger
}

// NewVisionProvider builds the provider from the supplied configuration.
func NewVisionProvider(cfg VisionConfig) (*VisionProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	client := openai.NewClientWithConfig(openai.DefaultConfig(cfg.APIKey))

	return &VisionProvider{client: client, cfg: cfg, logger: logger}, nil
}

// Name identifies the provider in extraction results.
func (p *VisionProvider) Name() string {
	return "openai-vision"
}

// ExtractText asks the vision model to transcribe the referenced image.
func (p *VisionProvider) ExtractText(ctx context.Context, ref Ref) (string, error) {
	if strings.TrimSpace(ref.URL) == "" {
		return "", fmt.Errorf("image url is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Transcribe all handwritten and printed text in this image. Return only the transcription, nothing else.",
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: ref.URL, Detail: openai.ImageURLDetailAuto},
					},
				},
			},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("vision extract: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from vision model")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("vision model returned empty transcription")
	}

	return text, nil
}
