package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique check-in run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewRecordID generates a unique history record ID with the "chk_" prefix
func NewRecordID() string {
	return "chk_" + uuid.New().String()
}
