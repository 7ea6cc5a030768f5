package anthropic

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"solver_gateway/errs"
	"solver_gateway/generation"
)

type Config struct {
	APIKey         string
	Model          string
	PromptTemplate string
	MaxTokens      int
	Temperature    float64
	BaseURL        string // optional, useful for testing against a mock server
}

// Service implements generation.Service using the Anthropic Messages API.
type Service struct {
	client anthropicsdk.Client
	config Config
}

func New(cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, errs.New(errs.CodeConfigInvalid, "anthropic: missing api key")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retry policy belongs to the caller; a failed call surfaces immediately.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Service{client: anthropicsdk.NewClient(opts...), config: cfg}, nil
}

func (s *Service) Generate(ctx context.Context, question string) (string, error) {
	msg, err := s.client.Messages.New(ctx, s.buildParams(question))
	if err != nil {
		return "", errs.Upstream(err, errs.UpstreamGeneration, "fail to call anthropic")
	}

	answer, err := answerFrom(msg)
	if err != nil {
		return "", errs.Upstream(err, errs.UpstreamGeneration, "malformed anthropic response")
	}
	return answer, nil
}

func (s *Service) buildParams(question string) anthropicsdk.MessageNewParams {
	maxTokens := int64(s.config.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	return anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(s.config.Model),
		MaxTokens: maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(
				generation.BuildPrompt(s.config.PromptTemplate, question),
			)),
		},
		Temperature: anthropicsdk.Float(s.config.Temperature),
	}
}

func answerFrom(msg *anthropicsdk.Message) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("empty message")
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("message has no text content")
	}
	return b.String(), nil
}
