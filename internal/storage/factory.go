package storage

import (
	"errors"

	"github.com/ternarybob/akile-checkin/internal/common"
	"github.com/ternarybob/akile-checkin/internal/interfaces"
	"github.com/ternarybob/akile-checkin/internal/storage/badger"
	"github.com/ternarybob/arbor"
)

// ErrStorageDisabled is returned when history storage is switched off in config
var ErrStorageDisabled = errors.New("storage disabled")

// NewStorageManager creates a new storage manager based on config
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	if !config.Storage.Badger.Enabled {
		return nil, ErrStorageDisabled
	}
	return badger.NewManager(logger, &config.Storage.Badger)
}
