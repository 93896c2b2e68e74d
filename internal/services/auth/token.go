package auth

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"
)

// UserIDClaim is the payload field carrying the account identifier
const UserIDClaim = "userId"

// ExtractUserID decodes the middle segment of a JWT-style token and returns its userId.
// It never fails loudly: malformed input yields ("", false) and a debug line when logger is set.
func ExtractUserID(token string, logger arbor.ILogger) (string, bool) {
	id, err := extractClaim(token, UserIDClaim)
	if err != nil {
		if logger != nil {
			logger.Debug().Err(err).Msg("Could not decode user id from token")
		}
		return "", false
	}
	return id, true
}

func extractClaim(token, claim string) (string, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("expected 3 token segments, got %d", len(parts))
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return "", fmt.Errorf("failed to decode token payload: %w", err)
	}

	if !gjson.ValidBytes(payload) {
		return "", fmt.Errorf("token payload is not valid JSON")
	}

	value := gjson.GetBytes(payload, claim)
	switch value.Type {
	case gjson.Null:
		if !value.Exists() {
			return "", fmt.Errorf("token payload has no %s field", claim)
		}
		return "", fmt.Errorf("token payload %s is null", claim)
	case gjson.Number:
		// Raw keeps large ids exact instead of round-tripping through float64
		return value.Raw, nil
	case gjson.String:
		return value.Str, nil
	default:
		return "", fmt.Errorf("token payload %s has unsupported type %s", claim, value.Type)
	}
}

// decodeSegment accepts base64url with or without padding, falling back to the standard alphabet
func decodeSegment(segment string) ([]byte, error) {
	trimmed := strings.TrimRight(segment, "=")
	if trimmed == "" {
		return nil, fmt.Errorf("empty segment")
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(trimmed); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(trimmed)
}
