package gemini

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/phrazzld/concrawl/internal/config"
	"github.com/phrazzld/concrawl/internal/domain"
	"google.golang.org/genai"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// DefaultLabels are the categories offered to the model.
var DefaultLabels = []string{
	"prints", "stickers", "pins", "plush", "apparel", "jewelry", "books", "badges",
}

// Classifier labels a single image.
type Classifier interface {
	Classify(ctx context.Context, imageURL string) (domain.ImageLabel, error)
}

// contentGenerator is the slice of the genai client the classifier uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GeminiClassifier implements Classifier with the Gemini API.
type GeminiClassifier struct {
	models contentGenerator
	model  string
	prompt *template.Template
	labels []string
	logger *slog.Logger
}

var _ Classifier = (*GeminiClassifier)(nil)

// NewClassifier creates a classifier from the LLM configuration.
func NewClassifier(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiClassifier, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: GeminiAPIKey cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: ModelName cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger.InfoContext(ctx, "initialized gemini classifier", "model", cfg.ModelName)
	return newClassifier(client.Models, cfg.ModelName, logger)
}

func newClassifier(models contentGenerator, model string, logger *slog.Logger) (*GeminiClassifier, error) {
	tmpl, err := template.New("classify.tmpl").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(promptFS, "prompts/classify.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	return &GeminiClassifier{
		models: models,
		model:  model,
		prompt: tmpl,
		labels: DefaultLabels,
		logger: logger.With("component", "gemini_classifier"),
	}, nil
}

// Classify asks the model for a label for the image at imageURL.
func (c *GeminiClassifier) Classify(ctx context.Context, imageURL string) (domain.ImageLabel, error) {
	if imageURL == "" {
		return domain.ImageLabel{}, ErrEmptyImageURL
	}

	prompt, err := c.buildPrompt(imageURL)
	if err != nil {
		return domain.ImageLabel{}, err
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		c.logger.WarnContext(ctx, "gemini request failed", "image_url", imageURL, "error", err)
		return domain.ImageLabel{}, fmt.Errorf("gemini request failed: %w", err)
	}

	label, err := parseResponse(resp, imageURL)
	if err != nil {
		c.logger.WarnContext(ctx, "unusable gemini answer", "image_url", imageURL, "error", err)
		return domain.ImageLabel{}, err
	}

	c.logger.DebugContext(ctx, "classified image",
		"image_url", imageURL,
		"label", label.Label,
		"confidence", label.Confidence)
	return label, nil
}

func (c *GeminiClassifier) buildPrompt(imageURL string) (string, error) {
	var buf bytes.Buffer
	data := struct {
		URL    string
		Labels []string
	}{URL: imageURL, Labels: c.labels}
	if err := c.prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

type labelAnswer struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
}

// parseResponse extracts and validates the JSON answer of the first candidate.
func parseResponse(resp *genai.GenerateContentResponse, imageURL string) (domain.ImageLabel, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return domain.ImageLabel{}, fmt.Errorf("%w: no candidates", ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return domain.ImageLabel{}, ErrContentBlocked
	}
	if candidate.Content == nil {
		return domain.ImageLabel{}, fmt.Errorf("%w: empty candidate", ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	raw := strings.TrimSpace(text.String())
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var answer labelAnswer
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &answer); err != nil {
		return domain.ImageLabel{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if answer.Confidence == nil {
		return domain.ImageLabel{}, fmt.Errorf("%w: missing confidence", ErrInvalidResponse)
	}

	label := domain.ImageLabel{
		URL:        imageURL,
		Label:      strings.ToLower(strings.TrimSpace(answer.Label)),
		Confidence: *answer.Confidence,
	}
	if err := label.Validate(); err != nil {
		return domain.ImageLabel{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return label, nil
}
