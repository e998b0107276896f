package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"convflow/api/internal/config"
	"convflow/api/internal/identity"
	"convflow/api/internal/models"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Security: config.SecurityConfig{
			JWTSecret:    "test-secret",
			JWTAccessTTL: time.Hour,
			RefreshTTL:   720 * time.Hour,
			TrialPeriod:  168 * time.Hour,
		},
		Convert: config.ConvertConfig{
			MaxFileSize:  5 * 1024 * 1024,
			MaxBatchSize: 20 * 1024 * 1024,
		},
	}
}

func newTestAuthService(users *memUserStore, sessions *memSessionStore) *AuthService {
	cfg := testConfig()
	verifier := identity.NewLocalVerifier(cfg.Security.JWTSecret)
	return NewAuthService(users, sessions, verifier, cfg, zerolog.Nop())
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	users := newMemUserStore()
	svc := newTestAuthService(users, newMemSessionStore())

	result, err := svc.Register(ctx, RegisterInput{
		Email:     "New@Example.COM",
		Password:  "password123",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if result.User.Email != "new@example.com" {
		t.Fatalf("email = %q, want lowercased", result.User.Email)
	}
	if result.User.Plan != models.PlanBasic {
		t.Fatalf("plan = %q, want basic", result.User.Plan)
	}
	if result.User.MonthlyLimit != 50 {
		t.Fatalf("monthly limit = %d, want 50", result.User.MonthlyLimit)
	}
	if result.User.SubscriptionStatus != models.SubscriptionTrial {
		t.Fatalf("subscription status = %q, want trial", result.User.SubscriptionStatus)
	}
	if result.User.TrialEndsAt == nil || !result.User.TrialEndsAt.After(time.Now()) {
		t.Fatal("trial end should be set in the future")
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if result.ExpiresIn != 3600 {
		t.Fatalf("expiresIn = %d, want 3600", result.ExpiresIn)
	}

	if _, err := svc.Register(ctx, RegisterInput{Email: "new@example.com", Password: "password123"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate register = %v, want ErrEmailTaken", err)
	}
}

func TestRegisterConcurrentSameEmail(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(newMemUserStore(), newMemSessionStore())

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(ctx, RegisterInput{
				Email:    "race@example.com",
				Password: "password123",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrEmailTaken):
		default:
			t.Fatalf("racer %d: unexpected error %v", i, err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("successes = %d, want exactly 1", succeeded)
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(newMemUserStore(), newMemSessionStore())

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "password123"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := svc.Login(ctx, "A@B.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}

	// Unknown email and wrong password must be indistinguishable.
	if _, err := svc.Login(ctx, "a@b.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody@b.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginAllowsConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	sessions := newMemSessionStore()
	svc := newTestAuthService(newMemUserStore(), sessions)

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "password123"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, "a@b.com", "password123"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := svc.Login(ctx, "a@b.com", "password123"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if got := sessions.count(); got != 3 {
		t.Fatalf("open sessions = %d, want 3", got)
	}
}

func TestRefreshRotates(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(newMemUserStore(), newMemSessionStore())

	registered, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, registered.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.RefreshToken == registered.RefreshToken {
		t.Fatal("refresh should rotate the token")
	}

	// The consumed token is gone for good.
	if _, err := svc.Refresh(ctx, registered.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("second refresh = %v, want ErrInvalidRefreshToken", err)
	}

	// The replacement still works.
	if _, err := svc.Refresh(ctx, refreshed.RefreshToken); err != nil {
		t.Fatalf("refresh with rotated token: %v", err)
	}
}

func TestRefreshConcurrentSameToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(newMemUserStore(), newMemSessionStore())

	registered, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Refresh(ctx, registered.RefreshToken)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInvalidRefreshToken):
		default:
			t.Fatalf("racer %d: unexpected error %v", i, err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("successes = %d, want exactly 1", succeeded)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	svc := newTestAuthService(newMemUserStore(), newMemSessionStore())
	if _, err := svc.Refresh(context.Background(), "never-issued"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("Refresh = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sessions := newMemSessionStore()
	svc := newTestAuthService(newMemUserStore(), sessions)

	registered, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.Logout(ctx, registered.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got := sessions.count(); got != 0 {
		t.Fatalf("open sessions = %d, want 0", got)
	}

	// Second logout with the same token is a no-op, not an error.
	if err := svc.Logout(ctx, registered.RefreshToken); err != nil {
		t.Fatalf("repeat Logout: %v", err)
	}
	if err := svc.Logout(ctx, "never-issued"); err != nil {
		t.Fatalf("Logout of unknown token: %v", err)
	}

	if _, err := svc.Refresh(ctx, registered.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("refresh after logout = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(newMemUserStore(), newMemSessionStore())

	registered, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "old-password"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	userID := registered.User.ID

	if err := svc.ChangePassword(ctx, userID, "wrong", "new-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password = %v, want ErrInvalidCredentials", err)
	}

	if err := svc.ChangePassword(ctx, userID, "old-password", "new-password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := svc.Login(ctx, "a@b.com", "old-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("login with old password = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "a@b.com", "new-password"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	ctx := context.Background()
	sessions := newMemSessionStore()
	svc := newTestAuthService(newMemUserStore(), sessions)

	registered, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "old-password"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	other, err := svc.Login(ctx, "a@b.com", "old-password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.ChangePassword(ctx, registered.User.ID, "old-password", "new-password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if got := sessions.count(); got != 0 {
		t.Fatalf("open sessions after password change = %d, want 0", got)
	}
	for _, token := range []string{registered.RefreshToken, other.RefreshToken} {
		if _, err := svc.Refresh(ctx, token); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("refresh after password change = %v, want ErrInvalidRefreshToken", err)
		}
	}
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()
	users := newMemUserStore()
	svc := newTestAuthService(users, newMemSessionStore())

	registered, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	user, err := svc.CurrentUser(ctx, registered.AccessToken)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if user.ID != registered.User.ID {
		t.Fatalf("user id = %q, want %q", user.ID, registered.User.ID)
	}

	if _, err := svc.CurrentUser(ctx, "garbage"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("CurrentUser(garbage) = %v, want ErrUnauthenticated", err)
	}

	// Valid token for an account that no longer exists.
	users.mu.Lock()
	delete(users.byID, registered.User.ID)
	users.mu.Unlock()
	if _, err := svc.CurrentUser(ctx, registered.AccessToken); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("CurrentUser(deleted account) = %v, want ErrAccountNotFound", err)
	}
}
