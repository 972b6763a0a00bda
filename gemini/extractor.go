// Package gemini asks a Gemini model to pull a meeting time out of a
// transcript the rule-based parser could not read.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const systemPrompt = `You extract meeting times from phone call transcripts.
Reply with JSON only. Set "found" to false when the caller did not give a date or time.
Otherwise set "datetime" to the requested start time in RFC 3339 with the caller's UTC offset.
Resolve relative phrases against the reference time and prefer future dates.`

// ErrNoDateTime is returned when the model reports no date in the transcript
var ErrNoDateTime = errors.New("no date or time in transcript")

// Extractor implements dates.Fallback with a Gemini text model
type Extractor struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewExtractor creates the GenAI client
func NewExtractor(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Extractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Extractor{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// ExtractDateTime returns the start time named in utterance, relative to now
func (e *Extractor) ExtractDateTime(ctx context.Context, utterance string, now time.Time) (time.Time, error) {
	prompt := fmt.Sprintf("Reference time: %s (%s)\nTranscript: %q",
		now.Format(time.RFC3339), now.Location(), utterance)

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: systemPrompt},
			},
		},
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"found":    {Type: genai.TypeBoolean},
				"datetime": {Type: genai.TypeString},
			},
			Required: []string{"found"},
		},
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), config)
	if err != nil {
		return time.Time{}, fmt.Errorf("gemini request failed: %w", err)
	}

	text := resp.Text()
	e.logger.Debug("gemini date extraction", zap.String("utterance", utterance), zap.String("response", text))

	return parseExtraction(text, now.Location())
}

type extraction struct {
	Found    bool   `json:"found"`
	DateTime string `json:"datetime"`
}

func parseExtraction(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")

	var out extraction
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err != nil {
		return time.Time{}, fmt.Errorf("unexpected gemini response: %w", err)
	}
	if !out.Found || out.DateTime == "" {
		return time.Time{}, ErrNoDateTime
	}

	t, err := time.Parse(time.RFC3339, out.DateTime)
	if err != nil {
		// Some replies omit the offset; read them as wall time in loc.
		t, err = time.ParseInLocation("2006-01-02T15:04:05", out.DateTime, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("unexpected gemini datetime %q: %w", out.DateTime, err)
		}
	}
	return t, nil
}
