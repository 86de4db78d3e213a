package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rsjoberg/firefly-receipts/internal/ledger"
)

// OpenAI implements the Extractor interface against the OpenAI chat
// completions API with a vision-capable model in JSON mode.
type OpenAI struct {
	client   *openai.Client
	model    string
	defaults Defaults
}

// NewOpenAI creates an OpenAI extractor.
func NewOpenAI(apiKey, modelName string, d Defaults) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if modelName == "" {
		modelName = "gpt-5-mini"
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}

	return &OpenAI{
		client:   openai.NewClientWithConfig(cfg),
		model:    modelName,
		defaults: d,
	}, nil
}

// ExtractPage sends the page image inline as a data URI together with the
// instruction prompt and parses the JSON-only reply.
func (o *OpenAI) ExtractPage(ctx context.Context, imagePath string, hints Hints) (*ledger.TransactionGroup, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	slog.Info("starting_extraction", "path", imagePath)
	dataURL, err := imageDataURL(imagePath)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: buildPrompt(hints, o.defaults),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, &ServiceError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ServiceError{Err: errors.New("no choices in response")}
	}

	group, err := parsePage(resp.Choices[0].Message.Content, o.defaults)
	if err != nil {
		return nil, err
	}
	slog.Info("extraction_successful", "transactions", len(group.Transactions))
	return group, nil
}

// Close is a no-op; the client holds no persistent resources.
func (o *OpenAI) Close() error { return nil }

// imageDataURL inlines the image as a base64 data URI. The MIME type is
// chosen by file extension: PNG keeps image/png, everything else is treated
// as JPEG.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	mime := "image/jpeg"
	if strings.EqualFold(filepath.Ext(path), ".png") {
		mime = "image/png"
	}

	slog.Info("image_encoded", "path", path, "mime", mime, "size", len(data))
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
