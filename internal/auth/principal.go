// Package auth verifies basic-auth credentials against the user store and carries
// the resulting principal through request contexts.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"google.golang.org/grpc/metadata"

	"deliveryService/internal/apperr"
	"deliveryService/models"
)

// Principal represents the authenticated caller.
type Principal struct {
	Username string
	Role     models.Role
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// CredentialsFromMD extracts basic-auth credentials from incoming gRPC metadata.
func CredentialsFromMD(ctx context.Context) (username, password string, err error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", "", errors.New("missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return "", "", errors.New("missing authorization")
	}
	return ParseBasic(vals[0])
}

// ParseBasic decodes an Authorization header value of the form "Basic base64(user:pass)".
func ParseBasic(header string) (username, password string, err error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Basic") {
		return "", "", errors.New("invalid authorization header")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", "", errors.New("invalid basic credentials encoding")
	}
	username, password, ok := strings.Cut(string(raw), ":")
	if !ok || username == "" {
		return "", "", errors.New("invalid basic credentials")
	}
	return username, password, nil
}

// Require returns an Unauthorized error unless p has one of roles.
func (p *Principal) Require(roles ...models.Role) error {
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return apperr.New(apperr.Unauthorized, "this operation is only for %s use", joinRoles(roles))
}

func joinRoles(roles []models.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, " or ")
}
