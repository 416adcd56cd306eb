package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	scribeerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
)

// ProviderConfig configures the chat completion endpoint.
type ProviderConfig struct {
	// BaseURL is the OpenAI-compatible endpoint base URL.
	BaseURL string

	// Model is the model identifier sent with each request.
	Model string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds a single chunk analysis call.
	Timeout time.Duration

	// MaxTokens caps the completion size per chunk.
	MaxTokens int

	// MaxRetries is the number of reparse attempts for malformed JSON output.
	MaxRetries int
}

// HTTPProvider implements Analyzer against an OpenAI-compatible chat
// completion API.
type HTTPProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client
	logger     logging.Logger
}

// NewHTTPProvider creates an HTTPProvider. A nil logger is replaced with a
// nop logger.
func NewHTTPProvider(cfg ProviderConfig, logger logging.Logger) *HTTPProvider {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &HTTPProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(logging.F("component", "analyzer_provider")),
	}
}

// chatMessage represents a message in the chat conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the OpenAI-compatible chat completion request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatChoice represents a completion choice.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatUsage represents token usage.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// chatResponse is the OpenAI-compatible chat completion response.
type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// turnsPayload is the JSON document the model is asked to produce.
type turnsPayload struct {
	Turns []Turn `json:"turns"`
}

// AnalyzeChunk sends one chunk to the model and parses the structured turn
// output. Malformed JSON is retried up to MaxRetries times with a stronger
// format hint; timeouts are not retried.
func (p *HTTPProvider) AnalyzeChunk(ctx context.Context, req ChunkRequest) (*ChunkResult, error) {
	userPrompt := buildUserPrompt(req)
	prompt := userPrompt

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		resp, err := p.complete(ctx, req.ChunkIndex, turnsSystemPrompt, prompt)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			if pe, ok := err.(*scribeerrors.PipelineError); ok && pe.Code == scribeerrors.ErrTimeout {
				return nil, err // retrying a saturated server won't help
			}
			continue
		}

		if resp.finishReason == "length" {
			return nil, &scribeerrors.PipelineError{
				Code:       scribeerrors.ErrParseError,
				Stage:      "analyze",
				ChunkIndex: req.ChunkIndex,
				Message:    fmt.Sprintf("response truncated: hit max_tokens limit (%d completion tokens used)", resp.completionTokens),
			}
		}

		var payload turnsPayload
		if err := json.Unmarshal([]byte(stripMarkdownFences(resp.content)), &payload); err != nil {
			lastErr = &scribeerrors.PipelineError{
				Code:       scribeerrors.ErrParseError,
				Stage:      "analyze",
				ChunkIndex: req.ChunkIndex,
				Message:    fmt.Sprintf("parse JSON: %v", err),
				Cause:      err,
			}
			if attempt < p.cfg.MaxRetries {
				prompt = userPrompt + "\n\nIMPORTANT: Respond with valid JSON only. No markdown, no explanations."
			}
			continue
		}

		NormalizeTurns(payload.Turns, p.logger)

		return &ChunkResult{
			ChunkIndex:   req.ChunkIndex,
			Turns:        payload.Turns,
			Model:        resp.model,
			InputTokens:  resp.promptTokens,
			OutputTokens: resp.completionTokens,
			Latency:      resp.latency,
		}, nil
	}

	return nil, lastErr
}

type completion struct {
	content          string
	finishReason     string
	model            string
	promptTokens     int
	completionTokens int
	latency          time.Duration
}

// complete executes one chat completion round trip.
func (p *HTTPProvider) complete(ctx context.Context, chunkIndex int, systemPrompt, userPrompt string) (*completion, error) {
	start := time.Now()

	chatReq := chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.1, // low temperature for structured extraction
		MaxTokens:   p.cfg.MaxTokens,
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, &scribeerrors.PipelineError{
			Code: scribeerrors.ErrParseError, Stage: "analyze", ChunkIndex: chunkIndex,
			Message: fmt.Sprintf("marshal request: %v", err), Cause: err,
		}
	}

	url := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &scribeerrors.PipelineError{
			Code: scribeerrors.ErrModelUnavailable, Stage: "analyze", ChunkIndex: chunkIndex,
			Message: fmt.Sprintf("create request: %v", err), Cause: err,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &scribeerrors.PipelineError{
				Code: scribeerrors.ErrTimeout, Stage: "analyze", ChunkIndex: chunkIndex,
				Message: "request timeout", Duration: time.Since(start), Timeout: p.cfg.Timeout,
			}
		}
		return nil, &scribeerrors.PipelineError{
			Code: scribeerrors.ErrModelUnavailable, Stage: "analyze", ChunkIndex: chunkIndex,
			Message: fmt.Sprintf("request failed: %v", err), Cause: err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &scribeerrors.PipelineError{
			Code: scribeerrors.ErrParseError, Stage: "analyze", ChunkIndex: chunkIndex,
			Message: fmt.Sprintf("read response: %v", err), Cause: err,
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &scribeerrors.PipelineError{
			Code: scribeerrors.ErrRateLimit, Stage: "analyze", ChunkIndex: chunkIndex,
			Message: fmt.Sprintf("HTTP 429: %s", string(respBody)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &scribeerrors.PipelineError{
			Code: scribeerrors.ErrModelUnavailable, Stage: "analyze", ChunkIndex: chunkIndex,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &scribeerrors.PipelineError{
			Code: scribeerrors.ErrParseError, Stage: "analyze", ChunkIndex: chunkIndex,
			Message: fmt.Sprintf("parse response: %v", err), Cause: err,
		}
	}

	if len(chatResp.Choices) == 0 {
		return nil, &scribeerrors.PipelineError{
			Code: scribeerrors.ErrParseError, Stage: "analyze", ChunkIndex: chunkIndex,
			Message: "no choices in response",
		}
	}

	return &completion{
		content:          chatResp.Choices[0].Message.Content,
		finishReason:     chatResp.Choices[0].FinishReason,
		model:            chatResp.Model,
		promptTokens:     chatResp.Usage.PromptTokens,
		completionTokens: chatResp.Usage.CompletionTokens,
		latency:          time.Since(start),
	}, nil
}

// IsAvailable checks if the endpoint is currently reachable.
func (p *HTTPProvider) IsAvailable(ctx context.Context) bool {
	url := fmt.Sprintf("%s/health", strings.TrimRight(p.cfg.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Close releases provider resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// stripMarkdownFences removes markdown code fences the model sometimes wraps
// JSON output in.
func stripMarkdownFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
