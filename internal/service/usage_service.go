package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"convflow/api/internal/ids"
	"convflow/api/internal/models"
	"convflow/api/internal/repository"
)

// ConversionStore is the usage ledger: append-only records plus the
// windowed aggregates derived from them.
type ConversionStore interface {
	Insert(ctx context.Context, conv models.Conversion) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Conversion, error)
	CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error)
	Stats(ctx context.Context, userID string, monthStart, dayStart time.Time) (models.UsageStats, error)
}

// AccountSource is the slice of the credential store the usage guard needs.
type AccountSource interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	IncrementMonthlyUsage(ctx context.Context, id string) error
}

type UsageService struct {
	conversions ConversionStore
	accounts    AccountSource
	log         zerolog.Logger

	// now is swappable in tests; windows are computed in UTC from a single
	// reference time.
	now func() time.Time
}

func NewUsageService(conversions ConversionStore, accounts AccountSource, log zerolog.Logger) *UsageService {
	return &UsageService{
		conversions: conversions,
		accounts:    accounts,
		log:         log,
		now:         time.Now,
	}
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CheckAndAdmit compares the current month's completed count against the
// account's plan limit. The limit is inclusive of the cap: an account
// sitting at exactly the limit is denied. The check is advisory and
// reserves nothing; concurrent admissions may both pass, trading slight
// over-quota bursts for not serializing every conversion.
func (s *UsageService) CheckAndAdmit(ctx context.Context, userID string) error {
	user, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	if user.MonthlyLimit <= 0 {
		return nil // unlimited plan
	}

	count, err := s.conversions.CountCompletedSince(ctx, userID, monthStart(s.now()))
	if err != nil {
		return err
	}
	if count >= user.MonthlyLimit {
		return ErrQuotaExceeded
	}
	return nil
}

type OutcomeInput struct {
	// ID is optional; one is generated when empty. Callers that also
	// archive output pass their own so the record and the archived object
	// share an id.
	ID           string
	UserID       string
	Filename     string
	FileType     string
	FileSize     int64
	Status       models.ConversionStatus
	ErrorMessage string
}

// RecordOutcome appends a conversion record and, on completion, bumps the
// account's monthly counter. Bookkeeping must never fail the conversion
// that triggered it: storage errors are logged and swallowed.
func (s *UsageService) RecordOutcome(ctx context.Context, input OutcomeInput) {
	conv := models.Conversion{
		ID:       input.ID,
		UserID:   input.UserID,
		Filename: input.Filename,
		FileType: input.FileType,
		FileSize: input.FileSize,
		Status:   input.Status,
	}
	if conv.ID == "" {
		conv.ID = ids.New()
	}
	if input.ErrorMessage != "" {
		msg := input.ErrorMessage
		conv.ErrorMessage = &msg
	}
	if input.Status == models.ConversionCompleted {
		completedAt := s.now().UTC()
		conv.CompletedAt = &completedAt
	}

	if err := s.conversions.Insert(ctx, conv); err != nil {
		s.log.Error().Err(err).
			Str("user_id", input.UserID).
			Str("filename", input.Filename).
			Msg("record conversion failed")
		return
	}

	if input.Status == models.ConversionCompleted {
		if err := s.accounts.IncrementMonthlyUsage(ctx, input.UserID); err != nil {
			s.log.Error().Err(err).Str("user_id", input.UserID).Msg("increment monthly usage failed")
		}
	}
}

// Snapshot reports the account's completed-conversion counts windowed at
// the start of the current calendar month and day, both taken from one
// reference time, plus the month's byte volume in whole megabytes.
func (s *UsageService) Snapshot(ctx context.Context, userID string) (models.UsageStats, error) {
	user, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.UsageStats{}, ErrAccountNotFound
		}
		return models.UsageStats{}, err
	}

	ref := s.now()
	stats, err := s.conversions.Stats(ctx, userID, monthStart(ref), dayStart(ref))
	if err != nil {
		return models.UsageStats{}, err
	}

	stats.StorageUsed = roundToMB(stats.StorageUsed)
	stats.PlanLimit = user.MonthlyLimit
	return stats, nil
}

// History returns the account's conversion records, newest first.
func (s *UsageService) History(ctx context.Context, userID string, limit, offset int) ([]models.Conversion, error) {
	return s.conversions.ListByUser(ctx, userID, limit, offset)
}

func roundToMB(bytes int64) int64 {
	const mb = 1024 * 1024
	return (bytes + mb/2) / mb
}
