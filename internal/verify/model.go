package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxResponseBytes = 4 * 1024 * 1024

// Model answers a prompt. Implementations must honour ctx cancellation.
type Model interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewModel builds the secondary model for a provider name. It returns nil,
// nil for "none" or when no API key is available, which callers treat as
// not configured.
func NewModel(provider, baseURL, apiKey, model string) (Model, error) {
	switch provider {
	case "", "none":
		return nil, nil
	case "gemini", "openai":
	default:
		return nil, fmt.Errorf("verify: unknown provider %q", provider)
	}
	if apiKey == "" {
		return nil, nil
	}
	if provider == "gemini" {
		return NewGemini(baseURL, apiKey, model), nil
	}
	return NewOpenAI(baseURL, apiKey, model), nil
}

// GeminiModel calls the Generative Language generateContent endpoint.
type GeminiModel struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewGemini(baseURL, apiKey, model string) *GeminiModel {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if model == "" {
		model = "gemini-pro"
	}
	return &GeminiModel{baseURL: baseURL, apiKey: apiKey, model: model, client: &http.Client{}}
}

func (g *GeminiModel) Name() string { return "Gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	raw, status, err := do(g.client, req)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode gemini response (status %d): %w", status, err)
	}
	if status >= 400 {
		if resp.Error != nil {
			return "", fmt.Errorf("gemini error: %s", resp.Error.Message)
		}
		return "", fmt.Errorf("gemini error status %d", status)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response had no candidates")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// OpenAIModel calls an OpenAI-compatible chat completions endpoint.
type OpenAIModel struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAI(baseURL, apiKey, model string) *OpenAIModel {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIModel{baseURL: baseURL, apiKey: apiKey, model: model, client: &http.Client{}}
}

func (o *OpenAIModel) Name() string { return "OpenAI" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (o *OpenAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(openAIRequest{
		Model:    o.model,
		Messages: []openAIMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	raw, status, err := do(o.client, req)
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}

	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode openai response (status %d): %w", status, err)
	}
	if status >= 400 {
		if resp.Error != nil {
			return "", fmt.Errorf("openai error: %s (type=%s)", resp.Error.Message, resp.Error.Type)
		}
		return "", fmt.Errorf("openai error status %d", status)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response had no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func do(client *http.Client, req *http.Request) ([]byte, int, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if len(raw) > maxResponseBytes {
		return nil, resp.StatusCode, fmt.Errorf("response exceeded limit (%d bytes)", maxResponseBytes)
	}
	return raw, resp.StatusCode, nil
}
