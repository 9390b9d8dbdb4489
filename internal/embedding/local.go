package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LocalEngine calls a self-hosted embedding server: POST /embed with
// {"text": ...} answering {"embedding": [...]}.
type LocalEngine struct {
	baseURL string
	dims    int
	client  *http.Client
}

// NewLocalEngine creates an engine for the server at baseURL.
func NewLocalEngine(baseURL string, dims int) *LocalEngine {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &LocalEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type localRequest struct {
	Text string `json:"text"`
}

type localResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error"`
}

func (e *LocalEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(localRequest{Text: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local embed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}
	var out localResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode embed response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local embed: status %d: %s", resp.StatusCode, out.Error)
	}
	if err := checkDims(out.Embedding, e.dims); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

// EmbedBatch embeds texts one request at a time.
func (e *LocalEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

func (e *LocalEngine) Dimensions() int { return e.dims }

func (e *LocalEngine) Name() string { return "local:" + e.baseURL }
