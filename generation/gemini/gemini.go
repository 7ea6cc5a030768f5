package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"solver_gateway/errs"
	"solver_gateway/generation"
)

type Config struct {
	APIKey         string
	Model          string
	PromptTemplate string
	MaxTokens      int
	Temperature    float64
	// BaseURL is optional and points the client at a proxy or test server.
	BaseURL string
}

// Service implements generation.Service with Gemini GenerateContent.
type Service struct {
	client *genai.Client
	config Config
}

func New(ctx context.Context, cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, errs.New(errs.CodeConfigInvalid, "gemini: missing api key")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeConfigInvalid, "gemini: creating client")
	}
	return &Service{client: client, config: cfg}, nil
}

func (s *Service) Generate(ctx context.Context, question string) (string, error) {
	prompt := generation.BuildPrompt(s.config.PromptTemplate, question)

	resp, err := s.client.Models.GenerateContent(ctx, s.config.Model, genai.Text(prompt), buildConfig(s.config))
	if err != nil {
		return "", errs.Upstream(err, errs.UpstreamGeneration, "fail to call gemini")
	}

	answer, err := answerFrom(resp)
	if err != nil {
		return "", errs.Upstream(err, errs.UpstreamGeneration, "malformed gemini response")
	}
	return answer, nil
}

func buildConfig(cfg Config) *genai.GenerateContentConfig {
	out := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(cfg.Temperature)),
	}
	if cfg.MaxTokens > 0 {
		out.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	return out
}

// answerFrom joins the text parts of the first candidate.
func answerFrom(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("response has no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return "", fmt.Errorf("candidate has no content")
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("candidate has no text")
	}
	return b.String(), nil
}
