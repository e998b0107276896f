package identity

import (
	"context"

	"convflow/api/internal/security"
)

// LocalVerifier checks tokens issued by this service's own signing secret.
type LocalVerifier struct {
	secret string
}

func NewLocalVerifier(secret string) *LocalVerifier {
	return &LocalVerifier{secret: secret}
}

func (v *LocalVerifier) Verify(_ context.Context, token string) (Identity, error) {
	claims, err := security.ParseAccessToken(token, v.secret)
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}

	return Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}
