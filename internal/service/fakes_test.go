package service

import (
	"bytes"
	"context"
	"sync"
	"time"

	"convflow/api/internal/models"
	"convflow/api/internal/repository"
)

var (
	_ UserStore       = (*memUserStore)(nil)
	_ AccountSource   = (*memUserStore)(nil)
	_ SessionStore    = (*memSessionStore)(nil)
	_ ConversionStore = (*memConversionStore)(nil)
)

// memUserStore is an in-memory credential store with the same atomicity
// guarantees as the real one: Create enforces email uniqueness under a
// single lock, and usage increments are atomic.
type memUserStore struct {
	mu      sync.Mutex
	byID    map[string]models.User
	byEmail map[string]string
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		byID:    make(map[string]models.User),
		byEmail: make(map[string]string),
	}
}

func (s *memUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[user.Email]; exists {
		return repository.ErrEmailTaken
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *memUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *memUserStore) UpdatePassword(_ context.Context, id string, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	s.byID[id] = user
	return nil
}

func (s *memUserStore) IncrementMonthlyUsage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.MonthlyUsage++
	s.byID[id] = user
	return nil
}

// memSessionStore mirrors the session ledger's delete-returns-row
// semantics: ConsumeByHash removes the session under one lock, so two
// concurrent consumers of the same hash cannot both succeed.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.RefreshSession
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]models.RefreshSession)}
}

func (s *memSessionStore) Create(_ context.Context, session models.RefreshSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.CreatedAt = time.Now()
	s.sessions[session.ID] = session
	return nil
}

func (s *memSessionStore) ConsumeByHash(_ context.Context, tokenHash []byte) (models.RefreshSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if bytes.Equal(session.TokenHash, tokenHash) && session.ExpiresAt.After(time.Now()) {
			delete(s.sessions, id)
			return session, nil
		}
	}
	return models.RefreshSession{}, repository.ErrSessionNotFound
}

func (s *memSessionStore) DeleteByHash(_ context.Context, tokenHash []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, session := range s.sessions {
		if bytes.Equal(session.TokenHash, tokenHash) {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memSessionStore) DeleteByUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memSessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// memConversionStore keeps records in memory and derives aggregates the
// way the SQL does, so window semantics are exercised for real.
type memConversionStore struct {
	mu      sync.Mutex
	records []models.Conversion
}

func newMemConversionStore() *memConversionStore {
	return &memConversionStore{}
}

func (s *memConversionStore) Insert(_ context.Context, conv models.Conversion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	s.records = append(s.records, conv)
	return nil
}

func (s *memConversionStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Conversion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Conversion
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].UserID == userID {
			out = append(out, s.records[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memConversionStore) CountCompletedSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, rec := range s.records {
		if rec.UserID == userID && rec.Status == models.ConversionCompleted && !rec.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *memConversionStore) Stats(_ context.Context, userID string, monthStart, dayStart time.Time) (models.UsageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats models.UsageStats
	for _, rec := range s.records {
		if rec.UserID != userID || rec.Status != models.ConversionCompleted {
			continue
		}
		stats.TotalConversions++
		if !rec.CreatedAt.Before(monthStart) {
			stats.MonthlyConversions++
			stats.StorageUsed += rec.FileSize
		}
		if !rec.CreatedAt.Before(dayStart) {
			stats.DailyConversions++
		}
	}
	return stats, nil
}
