package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lumi/internal/config"
	"lumi/pkg/retrylimit"
)

// OpenAIProvider speaks the OpenAI chat-completions wire format against any
// compatible endpoint (OpenRouter, Ollama, g4f, ...).
type OpenAIProvider struct {
	baseURL        string
	apiKey         string
	model          string
	analyticsModel string
	client         *http.Client
	limiter        *retrylimit.AdaptiveLimiter
	logger         zerolog.Logger
}

// NewOpenAIProvider creates a provider from config. The adaptive limiter
// starts conservative; the upstream's behavior tunes it from there.
func NewOpenAIProvider(cfg config.AIConfig) *OpenAIProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		analyticsModel: cfg.AnalyticsModel,
		client:         &http.Client{Timeout: timeout},
		limiter:        retrylimit.NewAdaptiveLimiter(2, 0.2, 5, 0.2, 0.5),
		logger:         log.With().Str("comp", "ai").Logger(),
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, e.body)
}

func (e *httpStatusError) StatusCode() int { return e.code }

// Generate performs one chat completion with retries. The model is chosen by
// usage category: analytics and planning share the cheaper analytics model.
func (p *OpenAIProvider) Generate(ctx context.Context, usage Usage, messages []Message) (string, error) {
	model := p.model
	if usage == UsageAnalytics || usage == UsagePlanning {
		model = p.analyticsModel
	}
	params := ParamsFor(usage)

	payload, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	var out string
	err = retrylimit.WithRetry(ctx, func() error {
		reply, rerr := p.once(ctx, payload)
		if rerr != nil {
			return rerr
		}
		out = reply
		return nil
	}, p.limiter, 3)
	if err != nil {
		return "", fmt.Errorf("generate (%s): %w", usage, err)
	}

	p.logger.Debug().Str("usage", string(usage)).Int("messages", len(messages)).Int("reply_len", len(out)).Msg("generation done")
	return cleanReply(out), nil
}

func (p *OpenAIProvider) once(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &retrylimit.Fatal{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &httpStatusError{code: resp.StatusCode, body: truncate(body)}
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("upstream error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	reply := cr.Choices[0].Message.Content
	if isGarbageResponse(reply) {
		return "", fmt.Errorf("unusable reply: %s", truncate([]byte(reply)))
	}
	return reply, nil
}
