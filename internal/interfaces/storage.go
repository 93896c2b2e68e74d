package interfaces

// StorageManager owns the embedded database and the stores built on it
type StorageManager interface {
	HistoryStorage() HistoryStorage
	Close() error
}
