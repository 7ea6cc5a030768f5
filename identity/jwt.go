package identity

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"solver_gateway/errs"
)

// JWTResolver verifies HS256 tokens and uses the subject claim as the account id.
type JWTResolver struct {
	secret []byte
	opts   []jwt.ParserOption
}

func NewJWT(secret string, issuer string, audience string) *JWTResolver {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWTResolver{secret: []byte(secret), opts: opts}
}

func (r *JWTResolver) Resolve(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", errs.New(errs.CodeUnauthenticated, "missing token")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, r.opts...)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeUnauthenticated, "invalid token")
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errs.New(errs.CodeUnauthenticated, "token has no subject")
	}
	return claims.Subject, nil
}

// IssueToken signs an HS256 token for accountID. Used by tooling and tests.
func IssueToken(secret string, accountID string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = accountID
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
