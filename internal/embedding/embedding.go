// Package embedding turns text into vectors for similarity search.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/soyeahso/agentloop/internal/config"
	"github.com/soyeahso/agentloop/internal/llm"
)

const (
	DefaultGeminiModel = "text-embedding-004"
	DefaultOpenAIModel = string(openai.SmallEmbedding3)
)

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Gemini embeds text with the Gemini embedContent API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini embedder. endpoint may be empty.
func NewGemini(ctx context.Context, apiKey, model, endpoint string) (*Gemini, error) {
	if apiKey == "" {
		return nil, &llm.ProviderError{Provider: "gemini", Message: "API key is not set"}
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &llm.ProviderError{Provider: "gemini", Message: apiErr.Message, Code: apiErr.Code}
		}
		return nil, &llm.ProviderError{Provider: "gemini", Message: err.Error()}
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, &llm.ProviderError{Provider: "gemini", Message: "response contained no embeddings"}
	}
	return resp.Embeddings[0].Values, nil
}

// OpenAI embeds text with an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	client   *openai.Client
	model    string
	provider string
}

// NewOpenAI creates an OpenAI embedder. endpoint may be empty.
func NewOpenAI(apiKey, model, endpoint string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, &llm.ProviderError{Provider: "openai", Message: "API key is not set"}
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, provider: "openai"}, nil
}

func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &llm.ProviderError{Provider: o.provider, Message: apiErr.Message, Code: apiErr.HTTPStatusCode}
		}
		return nil, &llm.ProviderError{Provider: o.provider, Message: err.Error()}
	}
	if len(resp.Data) == 0 {
		return nil, &llm.ProviderError{Provider: o.provider, Message: "response contained no embeddings"}
	}
	return resp.Data[0].Embedding, nil
}

// New builds the embedder selected by cfg. An empty embedding API key falls
// back to the model API key.
func New(ctx context.Context, cfg config.EmbeddingConfig, fallbackKey string) (Embedder, error) {
	key := cfg.APIKey
	if key == "" {
		key = fallbackKey
	}
	switch cfg.Provider {
	case "", "gemini":
		return NewGemini(ctx, key, cfg.Model, cfg.Endpoint)
	case "openai":
		return NewOpenAI(key, cfg.Model, cfg.Endpoint)
	case "ollama":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = llm.DefaultOllamaEndpoint
		}
		e, err := NewOpenAI("ollama", cfg.Model, endpoint)
		if err != nil {
			return nil, err
		}
		e.provider = "ollama"
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
