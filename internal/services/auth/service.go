package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/akile-checkin/internal/common"
	"github.com/ternarybob/akile-checkin/internal/models"
	"github.com/ternarybob/arbor"
)

// Service resolves and persists the bearer credential
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new credential service
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// LoadCredential resolves the credential from configuration.
// A readable token file wins over an inline token; with neither, ErrMissingCredential is returned.
func (s *Service) LoadCredential(config common.CredentialConfig) (models.Credential, error) {
	var credential models.Credential
	var err error

	if config.TokenFile != "" {
		data, readErr := os.ReadFile(config.TokenFile)
		switch {
		case readErr == nil:
			credential, err = models.NewCredential(string(data), "file:"+config.TokenFile)
			if err != nil {
				return models.Credential{}, fmt.Errorf("token file %s is empty: %w", config.TokenFile, err)
			}
		case errors.Is(readErr, os.ErrNotExist):
			s.logger.Warn().Str("path", config.TokenFile).Msg("Token file not found, falling back to inline token")
		default:
			return models.Credential{}, fmt.Errorf("failed to read token file %s: %w", config.TokenFile, readErr)
		}
	}

	if credential.IsZero() {
		credential, err = models.NewCredential(config.Token, "token")
		if err != nil {
			return models.Credential{}, err
		}
	}

	if userID, ok := ExtractUserID(credential.Token, s.logger); ok {
		credential.UserID = userID
		s.logger.Debug().Str("user_id", userID).Msg("Decoded user id from token")
	}

	s.logger.Debug().
		Str("source", credential.Source).
		Str("token", credential.Masked()).
		Msg("Credential loaded")

	return credential, nil
}

// SaveToken writes the token verbatim to path, creating parent directories
func (s *Service) SaveToken(path, token string) error {
	if _, err := models.NewCredential(token, "flag"); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return fmt.Errorf("failed to write token file %s: %w", path, err)
	}

	s.logger.Info().Str("path", path).Msg("Token saved to file")
	return nil
}
