// Package identity abstracts how bearer tokens are verified. The service
// runs with exactly one verifier, chosen from config at startup: locally
// signed JWTs, or delegation to an external OIDC provider.
package identity

import (
	"context"
	"errors"
	"fmt"

	"convflow/api/internal/config"
)

// ErrUnauthenticated covers every verification failure. Callers get no
// detail about why a token was rejected.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the claim set shared by both auth modes.
type Identity struct {
	UserID   string
	Email    string
	Username string
	Roles    []string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// New builds the verifier selected by cfg.Auth.Mode.
func New(cfg *config.AppConfig) (Verifier, error) {
	switch cfg.Auth.Mode {
	case "", "local":
		return NewLocalVerifier(cfg.Security.JWTSecret), nil
	case "oidc":
		return NewOIDCVerifier(cfg.Auth)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}
