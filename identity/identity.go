package identity

import (
	"context"
	"strings"

	"solver_gateway/errs"
)

//go:generate mockgen -source=identity.go -destination=mock/mock.go -package=mock

// Resolver maps an auth proof (a bearer token) to an account id.
// Failures carry errs.CodeUnauthenticated.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// StaticResolver resolves tokens from a fixed token -> account id table.
// Intended for local runs and tests.
type StaticResolver struct {
	tokens map[string]string
}

func NewStatic(tokens map[string]string) *StaticResolver {
	copied := make(map[string]string, len(tokens))
	for token, account := range tokens {
		copied[token] = account
	}
	return &StaticResolver{tokens: copied}
}

func (r *StaticResolver) Resolve(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", errs.New(errs.CodeUnauthenticated, "missing token")
	}
	account, ok := r.tokens[token]
	if !ok {
		return "", errs.New(errs.CodeUnauthenticated, "unknown token")
	}
	return account, nil
}
