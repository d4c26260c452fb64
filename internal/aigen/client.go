// Package aigen talks to the external generation provider (OpenRouter) and
// turns its free-text completions into structured content fields.
package aigen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1"
	defaultHTTPTimeout = 60 * time.Second

	// Model routing: cheaper/stronger models per task family.
	ModelContent  = "anthropic/claude-3.5-sonnet"
	ModelCreative = "openai/gpt-4-turbo"
	ModelAnalysis = "meta-llama/llama-3.1-70b-instruct"
)

// GenerationError is any failure of the outbound model call: transport error,
// timeout, or a non-2xx provider status. Upstream carries the provider's error
// payload when one was readable.
type GenerationError struct {
	StatusCode int
	Message    string
	Upstream   json.RawMessage
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation failed (status %d): %s", e.StatusCode, e.Message)
	}
	return "generation failed: " + e.Message
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client is a rate-limited OpenRouter chat-completions client. The limiter
// and timeout are env-tunable the same way the import framework's outbound
// clients were (AI_RPS, AI_BURST, AI_HTTP_TIMEOUT_SECONDS).
type Client struct {
	apiKey  string
	baseURL string
	referer string
	title   string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClientFromEnv() *Client {
	baseURL := os.Getenv("OPENROUTER_API_BASE")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := defaultHTTPTimeout
	if v := os.Getenv("AI_HTTP_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}
	rps := 2.0
	if v := os.Getenv("AI_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	burst := 4
	if v := os.Getenv("AI_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	referer := os.Getenv("OPENROUTER_REFERER")
	if referer == "" {
		referer = "https://creator-ai.app"
	}
	return &Client{
		apiKey:  os.Getenv("OPENROUTER_API_KEY"),
		baseURL: baseURL,
		referer: referer,
		title:   "CreatorAI",
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// NewClient builds a client against a specific endpoint. Used by tests.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		referer: "https://creator-ai.app",
		title:   "CreatorAI",
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

// Complete sends one system+user exchange and returns the raw completion text.
// The call is bounded by the client timeout and the request context; a hung
// provider surfaces as a GenerationError rather than blocking forever.
func (c *Client) Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &GenerationError{Message: err.Error()}
	}

	payload, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", &GenerationError{Message: "marshal request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &GenerationError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.title)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &GenerationError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GenerationError{StatusCode: resp.StatusCode, Message: "read response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ge := &GenerationError{StatusCode: resp.StatusCode, Message: "provider returned non-success status"}
		if json.Valid(body) {
			ge.Upstream = json.RawMessage(body)
		}
		return "", ge
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &GenerationError{StatusCode: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	if len(out.Choices) == 0 {
		return "", &GenerationError{StatusCode: resp.StatusCode, Message: "no choices returned"}
	}
	return out.Choices[0].Message.Content, nil
}
