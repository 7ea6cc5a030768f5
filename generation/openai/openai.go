package openai

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/bytedance/sonic"

	"solver_gateway/errs"
	"solver_gateway/generation"
)

type Config struct {
	Endpoint       string
	APIKeyEnv      string
	Model          string
	PromptTemplate string
	MaxTokens      int
	Temperature    float64
}

// Service implements generation.Service against an OpenAI-compatible chat
// completions endpoint. The answer is streamed and accumulated.
type Service struct {
	client *http.Client
	config Config
	log    *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Service {
	return &Service{
		client: &http.Client{},
		config: cfg,
		log:    log,
	}
}

func (s *Service) Generate(ctx context.Context, question string) (string, error) {
	answer, err := s.complete(ctx, question)
	if err != nil {
		return "", errs.Upstream(err, errs.UpstreamGeneration, "fail to get openai completion")
	}
	return answer, nil
}

func (s *Service) complete(ctx context.Context, question string) (string, error) {
	upstreamReq, err := s.buildUpstreamRequest(ctx, question)
	if err != nil {
		return "", fmt.Errorf("fail to build upstream request: %w", err)
	}

	resp, err := s.client.Do(upstreamReq)
	if err != nil {
		return "", fmt.Errorf("fail to call upstream api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upstream api returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return s.readStream(ctx, resp.Body)
}

// readStream accumulates SSE content deltas until [DONE], a finish reason or EOF.
func (s *Service) readStream(ctx context.Context, body io.Reader) (string, error) {
	reader := bufio.NewReader(body)
	var answer strings.Builder
	var totalTokens int

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		line, err := reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read from upstream: %w", err)
		}
		eof := err != nil

		if len(bytes.TrimSpace(line)) > 0 {
			content, done, tokenUsage, parseErr := parseSSELine(line)
			if parseErr != nil {
				s.log.Debug("skipping sse line", "error", parseErr)
			}
			if tokenUsage > 0 {
				totalTokens = tokenUsage
			}
			answer.WriteString(content)
			if done {
				eof = true
			}
		}

		if eof {
			break
		}
	}

	if answer.Len() == 0 {
		return "", fmt.Errorf("upstream stream carried no answer text")
	}
	s.log.Debug("openai completion finished", "tokens", totalTokens, "chars", answer.Len())
	return answer.String(), nil
}

func (s *Service) buildUpstreamRequest(ctx context.Context, question string) (*http.Request, error) {
	apiKey := os.Getenv(s.config.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("empty api key from env: %s", s.config.APIKeyEnv)
	}

	reqBodyBytes, err := sonic.Marshal(ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []Message{
			{
				Role:    "user",
				Content: generation.BuildPrompt(s.config.PromptTemplate, question),
			},
		},
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("fail to marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(reqBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("fail to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

// parseSSELine parses a single SSE line and returns (content, isDone, tokenUsage, error)
func parseSSELine(line []byte) (string, bool, int, error) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte("data:")) {
		return "", false, 0, fmt.Errorf("invalid SSE line, missing 'data:' prefix")
	}

	jsonBytes := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
	if bytes.Equal(jsonBytes, []byte("[DONE]")) {
		return "", true, 0, nil
	}

	var resp ChatStreamResponse
	if err := sonic.Unmarshal(jsonBytes, &resp); err != nil {
		return "", false, 0, fmt.Errorf("fail to unmarshal SSE json: %w", err)
	}

	// Usage arrives in a trailing block without choices.
	if resp.Usage != nil && resp.Usage.TotalTokens != 0 && len(resp.Choices) == 0 {
		return "", false, resp.Usage.TotalTokens, nil
	}
	if len(resp.Choices) == 0 {
		return "", false, 0, nil
	}

	choice := resp.Choices[0]
	return choice.Delta.Content, choice.FinishReason != "", 0, nil
}
