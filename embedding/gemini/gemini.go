package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"solver_gateway/errs"
)

// Service implements embedding.Service with the Gemini embedding models.
type Service struct {
	client     *genai.Client
	model      string
	dimensions int
}

// New creates a Gemini embedding client. baseURL is optional and points the
// client at a proxy or test server.
func New(ctx context.Context, apiKey string, model string, dimensions int, baseURL string) (*Service, error) {
	if apiKey == "" {
		return nil, errs.New(errs.CodeConfigInvalid, "gemini: missing api key")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeConfigInvalid, "gemini: creating client")
	}

	return &Service{client: client, model: model, dimensions: dimensions}, nil
}

func (s *Service) Get(ctx context.Context, text string) ([]float32, error) {
	dims := int32(s.dimensions)
	resp, err := s.client.Models.EmbedContent(ctx, s.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, errs.Upstream(err, errs.UpstreamEmbedding, "fail to get gemini embedding")
	}

	vector, err := vectorFrom(resp, s.dimensions)
	if err != nil {
		return nil, errs.Upstream(err, errs.UpstreamEmbedding, "malformed gemini embedding response")
	}
	return vector, nil
}

func vectorFrom(resp *genai.EmbedContentResponse, dimensions int) ([]float32, error) {
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("response has no embeddings")
	}
	values := resp.Embeddings[0].Values
	if len(values) != dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(values), dimensions)
	}
	return values, nil
}
