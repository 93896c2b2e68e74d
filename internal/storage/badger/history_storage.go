package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/akile-checkin/internal/common"
	"github.com/ternarybob/akile-checkin/internal/interfaces"
	"github.com/ternarybob/akile-checkin/internal/models"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// HistoryStorage implements interfaces.HistoryStorage for Badger
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

// Append stores one check-in record
func (s *HistoryStorage) Append(ctx context.Context, record *models.CheckinRecord) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if record.ID == "" {
		record.ID = common.NewRecordID()
	}

	if err := s.db.Store().Insert(record.ID, record); err != nil {
		return fmt.Errorf("failed to append check-in record: %w", err)
	}

	s.logger.Debug().
		Str("record_id", record.ID).
		Str("outcome", string(record.Outcome)).
		Msg("Check-in record stored")
	return nil
}

// List returns records ordered by StartedAt DESC
func (s *HistoryStorage) List(ctx context.Context, limit int) ([]models.CheckinRecord, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.CheckinRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list check-in records: %w", err)
	}
	return records, nil
}

// Last returns the most recent record
func (s *HistoryStorage) Last(ctx context.Context) (*models.CheckinRecord, error) {
	return s.first(badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse().Limit(1))
}

// LastSuccess returns the most recent successful record
func (s *HistoryStorage) LastSuccess(ctx context.Context) (*models.CheckinRecord, error) {
	return s.first(badgerhold.Where("Success").Eq(true).SortBy("StartedAt").Reverse().Limit(1))
}

func (s *HistoryStorage) first(query *badgerhold.Query) (*models.CheckinRecord, error) {
	var records []models.CheckinRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to query check-in records: %w", err)
	}
	if len(records) == 0 {
		return nil, interfaces.ErrRecordNotFound
	}
	return &records[0], nil
}

// Count returns the number of stored records
func (s *HistoryStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.CheckinRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count check-in records: %w", err)
	}
	return int(count), nil
}
