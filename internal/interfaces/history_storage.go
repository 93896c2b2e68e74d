package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/akile-checkin/internal/models"
)

// ErrRecordNotFound is returned when no history record matches
var ErrRecordNotFound = errors.New("record not found")

// HistoryStorage persists check-in attempts
type HistoryStorage interface {
	// Append stores one record; an empty ID is filled in
	Append(ctx context.Context, record *models.CheckinRecord) error

	// List returns up to limit records, newest first. limit <= 0 returns all
	List(ctx context.Context, limit int) ([]models.CheckinRecord, error)

	// Last returns the most recent record, or ErrRecordNotFound
	Last(ctx context.Context) (*models.CheckinRecord, error)

	// LastSuccess returns the most recent successful record, or ErrRecordNotFound
	LastSuccess(ctx context.Context) (*models.CheckinRecord, error)

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)
}
