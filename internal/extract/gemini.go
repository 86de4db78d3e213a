package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/rsjoberg/firefly-receipts/internal/ledger"
)

// Gemini implements the Extractor interface using Google Gemini.
type Gemini struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	defaults Defaults
}

// NewGemini creates a Gemini extractor.
func NewGemini(apiKey, modelName string, d Defaults) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:   client,
		model:    client.GenerativeModel(modelName),
		defaults: d,
	}, nil
}

// ExtractPage sends the page image bytes with the instruction prompt and
// parses the JSON reply.
func (g *Gemini) ExtractPage(ctx context.Context, imagePath string, hints Hints) (*ledger.TransactionGroup, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	slog.Info("starting_extraction", "path", imagePath)
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	// genai.ImageData wants the bare format suffix, not a full MIME type.
	format := "jpeg"
	if strings.EqualFold(filepath.Ext(imagePath), ".png") {
		format = "png"
	}

	parts := []genai.Part{
		genai.ImageData(format, data),
		genai.Text(buildPrompt(hints, g.defaults)),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, &ServiceError{Err: err}
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &ServiceError{Err: errors.New("no response from gemini")}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	group, err := parsePage(responseText.String(), g.defaults)
	if err != nil {
		return nil, err
	}
	slog.Info("extraction_successful", "transactions", len(group.Transactions))
	return group, nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
