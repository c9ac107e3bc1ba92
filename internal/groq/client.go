// Package groq is the boundary to the completion and embedding backend.
// The API is OpenAI-compatible; only the pieces the generator needs are modeled.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	completionsURL = "https://api.groq.com/openai/v1/chat/completions"
	embeddingsURL  = "https://api.groq.com/openai/v1/embeddings"
)

// ErrNotConfigured means the backend credential is missing. Fatal to the
// call; callers must not retry.
var ErrNotConfigured = errors.New("groq: api key not configured")

// ErrBackend covers transport, quota, and auth failures from the backend.
var ErrBackend = errors.New("groq: backend failure")

type Client struct {
	apiKey         string
	model          string
	embeddingModel string
	baseURL        string
	embedURL       string
	client         *http.Client
}

func NewClient(apiKey, model, embeddingModel string) *Client {
	return &Client{
		apiKey:         apiKey,
		model:          model,
		embeddingModel: embeddingModel,
		baseURL:        completionsURL,
		embedURL:       embeddingsURL,
		client:         &http.Client{Timeout: 120 * time.Second},
	}
}

// SetTestTransport points the client at a test server.
func (c *Client) SetTestTransport(base string) {
	c.baseURL = base + "/chat/completions"
	c.embedURL = base + "/embeddings"
}

// CompletionRequest is one completion call. Model overrides the client
// default when set.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int

	// AuxiliaryContext carries advisory embedding vectors alongside the
	// request. The wire format has no field for them; they exist for
	// request inspection and future retrieval plumbing.
	AuxiliaryContext map[string][]float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one chat completion request and returns the generated text.
// Context cancellation surfaces as context.Canceled, distinct from ErrBackend.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var resp chatResponse
	if err := c.post(ctx, c.baseURL, body, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response content", ErrBackend)
	}
	return resp.Choices[0].Message.Content, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one embedding vector per named text. Best-effort enrichment:
// callers tolerate failure and proceed without vectors.
func (c *Client) Embed(ctx context.Context, texts map[string]string) (map[string][]float64, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if len(texts) == 0 {
		return map[string][]float64{}, nil
	}

	names := make([]string, 0, len(texts))
	inputs := make([]string, 0, len(texts))
	for name, text := range texts {
		names = append(names, name)
		inputs = append(inputs, text)
	}

	var resp embedResponse
	if err := c.post(ctx, c.embedURL, embedRequest{Model: c.embeddingModel, Input: inputs}, &resp); err != nil {
		return nil, err
	}

	out := make(map[string][]float64, len(names))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(names) {
			out[names[d.Index]] = d.Embedding
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		// Cancellation must stay recognizable through the wrap.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: api call: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: read response: %v", ErrBackend, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return fmt.Errorf("%w: api error %d: %s — %s", ErrBackend, resp.StatusCode, errResp.Error.Type, errResp.Error.Message)
		}
		return fmt.Errorf("%w: api error %d: %s", ErrBackend, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", ErrBackend, err)
	}
	return nil
}
