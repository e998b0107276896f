package models

import "time"

type Plan string

const (
	PlanBasic     Plan = "basic"
	PlanPremium   Plan = "premium"
	PlanUnlimited Plan = "unlimited"
)

// MonthlyLimit is the number of completed conversions a plan allows per
// calendar month. Zero means no cap.
func (p Plan) MonthlyLimit() int {
	switch p {
	case PlanPremium:
		return 500
	case PlanUnlimited:
		return 0
	default:
		return 50
	}
}

type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type User struct {
	ID                 string
	Email              string
	FirstName          string
	LastName           string
	PasswordHash       []byte
	Plan               Plan
	SubscriptionStatus SubscriptionStatus
	TrialEndsAt        *time.Time
	MonthlyUsage       int
	MonthlyLimit       int
	Role               UserRole
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RefreshSession is the persisted half of a refresh token. Only the
// SHA-256 hash of the raw token is stored; consuming a session deletes
// the row, so a rotated token can never validate twice.
type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}
