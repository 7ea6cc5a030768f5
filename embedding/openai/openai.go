package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/bytedance/sonic"

	"solver_gateway/errs"
)

// Service implements embedding.Service against an OpenAI-compatible
// /v1/embeddings endpoint.
type Service struct {
	endpoint   string
	model      string
	apiKeyEnv  string
	client     *http.Client
	dimensions int
}

func New(endpoint string, model string, apiKeyEnvName string, dimensions int) *Service {
	return &Service{
		endpoint:   endpoint,
		model:      model,
		apiKeyEnv:  apiKeyEnvName,
		client:     &http.Client{},
		dimensions: dimensions,
	}
}

// Get implements embedding.Service. The caller bounds the call through ctx.
func (s *Service) Get(ctx context.Context, text string) ([]float32, error) {
	vector, err := s.getEmbedding(ctx, text)
	if err != nil {
		return nil, errs.Upstream(err, errs.UpstreamEmbedding, "fail to get openai embedding")
	}
	return vector, nil
}

func (s *Service) getEmbedding(ctx context.Context, input string) ([]float32, error) {
	apiKey := os.Getenv(s.apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("empty api key from env: %s", s.apiKeyEnv)
	}

	requestBodyBytes, err := sonic.Marshal(EmbeddingRequest{
		Model:          s.model,
		Input:          input,
		EncodingFormat: "float",
		Dimensions:     int32(s.dimensions),
	})
	if err != nil {
		return nil, fmt.Errorf("fail to marshal embedding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("fail to create embedding request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fail to do embedding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fail to read embedding response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding request fail: (%d) %s", resp.StatusCode, body)
	}

	var respBody EmbeddingResponse
	if err := sonic.Unmarshal(body, &respBody); err != nil {
		return nil, fmt.Errorf("fail to unmarshal embedding response: %w", err)
	}
	if len(respBody.Data) == 0 || len(respBody.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response data")
	}

	vector := respBody.Data[0].Embedding
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(vector), s.dimensions)
	}
	return vector, nil
}
