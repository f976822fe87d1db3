package models

import (
	"math"
	"strings"
)

const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
)

const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusRetry      = "retry"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

const (
	// DateLayout формат дат бронирования
	DateLayout = "2006-01-02"

	// DefaultMaxBookingDays насколько вперед можно бронировать
	DefaultMaxBookingDays = 365

	// MinPasswordLength минимальная длина пароля
	MinPasswordLength = 6

	// MinRating и MaxRating границы оценки отзыва
	MinRating = 1
	MaxRating = 5

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// ListingCacheTTL время жизни кэша объявлений в секундах
	ListingCacheTTL = 10 * 60
)

var weekDays = map[string]bool{
	"monday":    true,
	"tuesday":   true,
	"wednesday": true,
	"thursday":  true,
	"friday":    true,
	"saturday":  true,
	"sunday":    true,
}

// NormalizeDay lower-cases and trims a weekday name. ok is false for
// anything that is not monday..sunday.
func NormalizeDay(day string) (string, bool) {
	d := strings.ToLower(strings.TrimSpace(day))
	return d, weekDays[d]
}

// IsTargetStatus reports whether status is a valid transition target.
func IsTargetStatus(status string) bool {
	switch status {
	case StatusAccepted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// RoundRating rounds an average rating to one decimal place.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}
