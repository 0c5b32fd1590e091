// Package ai wraps the hosted chat-completion endpoint. Every request is
// prefixed with a fixed persona system prompt so the underlying model is
// never revealed to the caller.
package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1"
	defaultModel       = "microsoft/phi-4"
	defaultTemperature = 0.7
	defaultMaxTokens   = 2048
	defaultTimeout     = 60 * time.Second

	// DefaultSystemPrompt establishes the assistant's public identity and
	// forbids disclosure of the backing model.
	DefaultSystemPrompt = "You are Ashteams AI, an intelligent assistant created by Ashteams. " +
		"You are helpful, knowledgeable, and professional. Never mention or reveal " +
		"that you are powered by Microsoft Phi-4 or any other underlying model. " +
		"Always present yourself as Ashteams AI."
)

// Config holds the completion client settings, normally populated from
// pkg/config
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	SiteURL      string // outbound HTTP-Referer metadata
	SiteTitle    string // outbound X-Title metadata
	Timeout      time.Duration
}

// Client talks to an OpenRouter-compatible chat-completion endpoint
type Client struct {
	client *http.Client
	config Config
}

// NewClient creates a completion client, filling unset fields with defaults
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatCompletion submits the conversation and returns the text of the
// first completion choice
func (c *Client) ChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	resp, err := c.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var data completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", &UpstreamError{Body: "malformed completion response: " + err.Error()}
	}
	if len(data.Choices) == 0 {
		return "", &UpstreamError{Body: "no completion choices returned"}
	}
	return data.Choices[0].Message.Content, nil
}

// ChatCompletionStream submits the conversation with streaming enabled and
// returns an iterator over incremental text fragments. The caller owns
// the stream and must Close it.
func (c *Client) ChatCompletionStream(ctx context.Context, messages []ChatMessage) (Stream, error) {
	resp, err := c.post(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &eventStream{body: resp.Body, scanner: scanner}, nil
}

func (c *Client) post(ctx context.Context, messages []ChatMessage, stream bool) (*http.Response, error) {
	if c.config.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}

	system := ChatMessage{Role: RoleSystem, Content: c.config.SystemPrompt}
	payload := completionRequest{
		Model:       c.config.Model,
		Messages:    append([]ChatMessage{system}, messages...),
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		Stream:      stream,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.config.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.config.SiteURL)
	}
	if c.config.SiteTitle != "" {
		req.Header.Set("X-Title", c.config.SiteTitle)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Body: err.Error()}
	}
	return resp, nil
}

// eventStream decodes the provider's newline-delimited event transport.
// Records prefixed "data: " carry either a JSON delta object or the
// literal [DONE] terminator; anything that fails to parse is skipped.
type eventStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	current string
	err     error
	done    bool
}

type streamDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Next advances to the following non-empty fragment
func (s *eventStream) Next() bool {
	if s.done {
		return false
	}
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			// Trailing bytes after the terminator are discarded.
			s.done = true
			return false
		}

		var delta streamDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			continue
		}
		if len(delta.Choices) == 0 || delta.Choices[0].Delta.Content == "" {
			continue
		}
		s.current = delta.Choices[0].Delta.Content
		return true
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		s.err = &UpstreamError{Body: "stream transport failed: " + err.Error()}
	}
	return false
}

// Content returns the current fragment
func (s *eventStream) Content() string { return s.current }

// Err reports a transport failure observed before termination
func (s *eventStream) Err() error { return s.err }

// Close releases the underlying response body
func (s *eventStream) Close() error {
	s.done = true
	return s.body.Close()
}
