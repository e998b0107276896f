package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"convflow/api/internal/config"
)

const oidcLeeway = 30 * time.Second

type oidcClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

// OIDCVerifier validates provider-issued bearer tokens against the
// provider's JWKS and maps their claims onto the account shape. Password
// and refresh-token management are bypassed entirely in this mode.
type OIDCVerifier struct {
	issuer  string
	keyfunc keyfunc.Keyfunc
	parser  *jwt.Parser
}

func NewOIDCVerifier(cfg config.AuthConfig) (*OIDCVerifier, error) {
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, errors.New("auth.issuer must be set in oidc mode")
	}

	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		jwksURL = strings.TrimSuffix(issuer, "/") + "/.well-known/jwks.json"
	}

	keyProvider, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("init jwks keyfunc: %w", err)
	}

	opts := []jwt.ParserOption{
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(oidcLeeway),
		jwt.WithValidMethods([]string{
			jwt.SigningMethodRS256.Name,
			jwt.SigningMethodRS384.Name,
			jwt.SigningMethodRS512.Name,
		}),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &OIDCVerifier{
		issuer:  issuer,
		keyfunc: keyProvider,
		parser:  jwt.NewParser(opts...),
	}, nil
}

func (v *OIDCVerifier) Verify(_ context.Context, tokenStr string) (Identity, error) {
	var claims oidcClaims
	token, err := v.parser.ParseWithClaims(tokenStr, &claims, v.keyfunc.Keyfunc)
	if err != nil || !token.Valid {
		return Identity{}, ErrUnauthenticated
	}
	if claims.Subject == "" {
		return Identity{}, ErrUnauthenticated
	}

	return Identity{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Username: claims.PreferredUsername,
		Roles:    claims.RealmAccess.Roles,
	}, nil
}
