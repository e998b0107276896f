package models

import "time"

type ConversionStatus string

const (
	ConversionCompleted  ConversionStatus = "completed"
	ConversionFailed     ConversionStatus = "failed"
	ConversionProcessing ConversionStatus = "processing"
)

// Conversion is one attempt at converting a file. Records are append-only:
// a failed attempt and a later retry are two distinct rows.
type Conversion struct {
	ID           string
	UserID       string
	Filename     string
	FileType     string
	FileSize     int64
	Status       ConversionStatus
	ErrorMessage *string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// UsageStats is derived on demand from the conversions table; it is never
// stored. The repository fills StorageUsed with the current month's
// completed byte volume; the usage service reports it in whole megabytes.
type UsageStats struct {
	TotalConversions   int
	MonthlyConversions int
	DailyConversions   int
	StorageUsed        int64
	PlanLimit          int
}
