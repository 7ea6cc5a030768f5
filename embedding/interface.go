package embedding

import "context"

//go:generate mockgen -source=interface.go -destination=mock/mock.go -package=mock

// Service turns question text into a fixed-length vector.
// Implementations fail with errs.CodeUpstreamUnavailable and do not retry.
type Service interface {
	Get(ctx context.Context, text string) ([]float32, error)
}
