package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"lumi/internal/config"
)

// Embedder turns text into a vector. Implementations must be safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder builds an embedder from config, or returns nil when the
// provider is "none" (keyword-only retrieval).
func NewEmbedder(cfg config.EmbedConfig) (Embedder, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "ollama":
		return &ollamaEmbedder{baseURL: cfg.BaseURL, model: cfg.Model, client: &http.Client{Timeout: 30 * time.Second}}, nil
	case "openai":
		return &openaiEmbedder{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, model: cfg.Model, client: &http.Client{Timeout: 30 * time.Second}}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

type ollamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

func (e *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]string{"model": e.model, "prompt": text})
	if err != nil {
		return nil, err
	}
	body, err := postJSON(ctx, e.client, e.baseURL+"/api/embeddings", "", payload)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding")
	}
	return out.Embedding, nil
}

type openaiEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]any{"model": e.model, "input": text})
	if err != nil {
		return nil, err
	}
	body, err := postJSON(ctx, e.client, e.baseURL+"/embeddings", e.apiKey, payload)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("openai embed decode: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned empty embedding")
	}
	return out.Data[0].Embedding, nil
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
