package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"convflow/api/internal/config"
	"convflow/api/internal/identity"
	"convflow/api/internal/ids"
	"convflow/api/internal/models"
	"convflow/api/internal/repository"
	"convflow/api/internal/security"
)

// UserStore is the slice of the credential store the auth flow needs.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
}

// SessionStore is the session ledger. ConsumeByHash must be a destructive
// read: at most one caller ever receives a given session.
type SessionStore interface {
	Create(ctx context.Context, session models.RefreshSession) error
	ConsumeByHash(ctx context.Context, tokenHash []byte) (models.RefreshSession, error)
	DeleteByHash(ctx context.Context, tokenHash []byte) (int64, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type AuthService struct {
	users    UserStore
	sessions SessionStore
	verifier identity.Verifier
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewAuthService(
	users UserStore,
	sessions SessionStore,
	verifier identity.Verifier,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		verifier: verifier,
		cfg:      cfg,
		log:      log,
	}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	User         models.User
}

// Register is the only path that creates an account. New accounts start a
// trial on the basic plan. The email uniqueness check is ultimately the
// store's unique constraint; concurrent registrations with the same email
// resolve to exactly one success.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	trialEnd := time.Now().Add(s.cfg.Security.TrialPeriod)
	user := models.User{
		ID:                 ids.New(),
		Email:              email,
		FirstName:          input.FirstName,
		LastName:           input.LastName,
		PasswordHash:       passwordHash,
		Plan:               models.PlanBasic,
		SubscriptionStatus: models.SubscriptionTrial,
		TrialEndsAt:        &trialEnd,
		MonthlyLimit:       models.PlanBasic.MonthlyLimit(),
		Role:               models.UserRoleUser,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("account registered")

	return s.issueTokens(ctx, user)
}

// Login verifies the password and opens a fresh session. Unknown email and
// wrong password are indistinguishable to the caller. Multiple concurrent
// sessions per account are permitted.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// Refresh redeems a raw refresh token for a new pair. The consume is a
// destructive read, so a given raw token is valid for exactly one refresh
// call ever; the loser of a concurrent race sees ErrInvalidRefreshToken.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (AuthResult, error) {
	tokenHash := security.HashRefreshToken(rawRefreshToken)

	session, err := s.sessions.ConsumeByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return AuthResult{}, ErrInvalidRefreshToken
		}
		return AuthResult{}, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidRefreshToken
		}
		return AuthResult{}, err
	}

	return s.issueTokens(ctx, user)
}

// Logout discards the session matching the token. Deleting zero rows is
// not an error; it only changes what gets logged.
func (s *AuthService) Logout(ctx context.Context, rawRefreshToken string) error {
	tokenHash := security.HashRefreshToken(rawRefreshToken)

	deleted, err := s.sessions.DeleteByHash(ctx, tokenHash)
	if err != nil {
		return err
	}
	if deleted == 0 {
		s.log.Debug().Msg("logout for already-invalid refresh token")
	} else {
		s.log.Info().Msg("session closed")
	}
	return nil
}

// ChangePassword re-verifies the current password before storing the new
// hash, then revokes every outstanding refresh session for the account so
// a stolen refresh token dies with the old password.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	ok, err := security.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	newHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return err
	}

	revoked, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("revoke sessions after password change failed")
		return err
	}
	s.log.Info().Str("user_id", userID).Int64("revoked", revoked).Msg("password changed")
	return nil
}

// CurrentUser resolves a bearer token to an account. Any verification
// failure is ErrUnauthenticated; an account deleted after issuance is
// ErrAccountNotFound.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (models.User, error) {
	ident, err := s.verifier.Verify(ctx, accessToken)
	if err != nil {
		return models.User{}, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrAccountNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user models.User) (AuthResult, error) {
	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTSecret,
		user.ID,
		user.Email,
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, err
	}

	refreshToken, refreshHash, err := security.GenerateRefreshToken()
	if err != nil {
		return AuthResult{}, err
	}

	session := models.RefreshSession{
		ID:        ids.New(),
		UserID:    user.ID,
		TokenHash: refreshHash,
		ExpiresAt: time.Now().Add(s.cfg.Security.RefreshTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.cfg.Security.JWTAccessTTL.Seconds()),
		User:         user,
	}, nil
}
