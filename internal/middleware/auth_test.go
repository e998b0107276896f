package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"convflow/api/internal/identity"
	"convflow/api/internal/models"
	"convflow/api/internal/repository"
	"convflow/api/internal/security"
)

type fakeAccountStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{users: make(map[string]models.User)}
}

func (s *fakeAccountStore) GetByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeAccountStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	s.users[user.ID] = user
	return nil
}

func authTestRouter(t *testing.T, accounts *fakeAccountStore, provision bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/whoami", Auth(identity.NewLocalVerifier("secret"), accounts, provision), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	return router
}

func doWhoami(t *testing.T, router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	accounts := newFakeAccountStore()
	accounts.users["user-1"] = models.User{ID: "user-1", Email: "a@b.com"}
	router := authTestRouter(t, accounts, false)

	token, err := security.GenerateAccessToken("secret", "user-1", "a@b.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if rec := doWhoami(t, router, "Bearer "+token); rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, want 200 (%s)", rec.Code, rec.Body)
	}
	if rec := doWhoami(t, router, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no header: status = %d, want 401", rec.Code)
	}
	if rec := doWhoami(t, router, "Basic abc"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("non-bearer: status = %d, want 401", rec.Code)
	}
	if rec := doWhoami(t, router, "Bearer garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}

	wrongKey, err := security.GenerateAccessToken("other-secret", "user-1", "a@b.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if rec := doWhoami(t, router, "Bearer "+wrongKey); rec.Code != http.StatusUnauthorized {
		t.Fatalf("token signed with wrong key: status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddlewareUnknownAccount(t *testing.T) {
	router := authTestRouter(t, newFakeAccountStore(), false)

	token, err := security.GenerateAccessToken("secret", "ghost", "ghost@b.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if rec := doWhoami(t, router, "Bearer "+token); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown account: status = %d, want 404", rec.Code)
	}
}

func TestAuthMiddlewareProvisionsDelegatedAccounts(t *testing.T) {
	accounts := newFakeAccountStore()
	router := authTestRouter(t, accounts, true)

	token, err := security.GenerateAccessToken("secret", "sub-123", "new@b.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if rec := doWhoami(t, router, "Bearer "+token); rec.Code != http.StatusOK {
		t.Fatalf("first sight: status = %d, want 200 (%s)", rec.Code, rec.Body)
	}

	user, err := accounts.GetByID(context.Background(), "sub-123")
	if err != nil {
		t.Fatalf("provisioned account missing: %v", err)
	}
	if user.Plan != models.PlanBasic {
		t.Fatalf("provisioned plan = %q, want basic", user.Plan)
	}
	if user.MonthlyLimit != models.PlanBasic.MonthlyLimit() {
		t.Fatalf("provisioned limit = %d, want %d", user.MonthlyLimit, models.PlanBasic.MonthlyLimit())
	}

	// Second request reuses the row instead of creating another.
	if rec := doWhoami(t, router, "Bearer "+token); rec.Code != http.StatusOK {
		t.Fatalf("second sight: status = %d, want 200", rec.Code)
	}
	accounts.mu.Lock()
	total := len(accounts.users)
	accounts.mu.Unlock()
	if total != 1 {
		t.Fatalf("accounts = %d, want 1", total)
	}
}
