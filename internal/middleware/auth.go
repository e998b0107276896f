package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"convflow/api/internal/identity"
	"convflow/api/internal/models"
	"convflow/api/internal/repository"
)

const (
	ContextUser     = "current_user"
	ContextIdentity = "current_identity"
)

// AccountStore is what the auth middleware needs from the credential
// store: lookups for every request, creation only for lazy provisioning in
// delegated mode.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	Create(ctx context.Context, user models.User) error
}

// Auth verifies the bearer token and resolves the account. With
// provisionDelegated set (oidc mode), an account row is created on first
// sight of a provider subject so usage accounting has something to key on.
func Auth(verifier identity.Verifier, accounts AccountStore, provisionDelegated bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		ident, err := verifier.Verify(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		user, err := accounts.GetByID(c.Request.Context(), ident.UserID)
		if errors.Is(err, repository.ErrUserNotFound) && provisionDelegated {
			user, err = provisionFromIdentity(c.Request.Context(), accounts, ident)
		}
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "account_not_found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextIdentity, ident)

		c.Next()
	}
}

func provisionFromIdentity(ctx context.Context, accounts AccountStore, ident identity.Identity) (models.User, error) {
	user := models.User{
		ID:                 ident.UserID,
		Email:              ident.Email,
		FirstName:          ident.Username,
		Plan:               models.PlanBasic,
		SubscriptionStatus: models.SubscriptionActive,
		MonthlyLimit:       models.PlanBasic.MonthlyLimit(),
		Role:               roleFromClaims(ident.Roles),
	}

	if err := accounts.Create(ctx, user); err != nil {
		// Lost a provisioning race or the email exists; re-read.
		if errors.Is(err, repository.ErrEmailTaken) {
			return accounts.GetByID(ctx, ident.UserID)
		}
		return models.User{}, err
	}
	return user, nil
}

func roleFromClaims(roles []string) models.UserRole {
	for _, role := range roles {
		if role == "admin" {
			return models.UserRoleAdmin
		}
	}
	return models.UserRoleUser
}

// CurrentUser pulls the authenticated account set by Auth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(ContextUser)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}
