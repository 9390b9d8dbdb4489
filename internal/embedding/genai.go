package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"
)

// GenAIConfig configures a GenAIEngine.
type GenAIConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	TaskType   string
	BaseURL    string // overrides the API endpoint, used by tests
}

// GenAIEngine generates embeddings with the Gemini API. Consecutive
// failures open a breaker so a backfill over a dead key fails fast.
type GenAIEngine struct {
	client   *genai.Client
	model    string
	dims     int
	taskType string
	cb       *gobreaker.CircuitBreaker
}

// NewGenAIEngine creates a new GenAI embedding engine.
func NewGenAIEngine(ctx context.Context, cfg GenAIConfig) (*GenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.TaskType == "" {
		cfg.TaskType = "RETRIEVAL_DOCUMENT"
	}

	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIEngine{
		client:   client,
		model:    cfg.Model,
		dims:     cfg.Dimensions,
		taskType: cfg.TaskType,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "genai",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}, nil
}

// Embed generates an embedding for a single text.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	out, err := e.cb.Execute(func() (interface{}, error) {
		return e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
			TaskType:             e.taskType,
			OutputDimensionality: genai.Ptr(int32(e.dims)),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}
	result := out.(*genai.EmbedContentResponse)
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("GenAI returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		if err := checkDims(emb.Values, e.dims); err != nil {
			return nil, err
		}
		vecs[i] = emb.Values
	}
	return vecs, nil
}

func (e *GenAIEngine) Dimensions() int { return e.dims }

func (e *GenAIEngine) Name() string { return "genai:" + e.model }
