package generation

import "context"

//go:generate mockgen -source=interface.go -destination=mock/mock.go -package=mock

// Service produces a fresh answer for a question from the upstream model.
// Implementations fail with errs.CodeUpstreamUnavailable on transport errors
// or when the response carries no answer text.
type Service interface {
	Generate(ctx context.Context, question string) (string, error)
}
