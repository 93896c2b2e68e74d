package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StatusCodeSuccess is the status_code the remote API uses for success
const StatusCodeSuccess = 0

// StatusCodeRejected is the status_code returned for refused check-ins, including repeats
const StatusCodeRejected = 1

// ErrInvalidEnvelope is returned when a remote response is not a usable JSON envelope
var ErrInvalidEnvelope = errors.New("invalid response envelope")

// Envelope is the JSON wrapper every remote endpoint returns
type Envelope struct {
	StatusCode *int            `json:"status_code"`
	StatusMsg  string          `json:"status_msg"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope validates a raw response body at the boundary.
// The body must be a JSON object with an integer status_code.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidEnvelope)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.StatusCode == nil {
		return nil, fmt.Errorf("%w: status_code missing", ErrInvalidEnvelope)
	}
	return &env, nil
}

// Code returns the status code; ok is false when absent
func (e *Envelope) Code() (int, bool) {
	if e == nil || e.StatusCode == nil {
		return 0, false
	}
	return *e.StatusCode, true
}

// IsSuccess reports status_code == 0
func (e *Envelope) IsSuccess() bool {
	code, ok := e.Code()
	return ok && code == StatusCodeSuccess
}

// UserInfo is the data object of the user info endpoint
type UserInfo struct {
	Username        string      `json:"username"`
	LastCheckinTime json.Number `json:"last_checkin_time,omitempty"` // Epoch seconds
}

// LastCheckin returns the last check-in time when the server supplied one
func (u UserInfo) LastCheckin() (time.Time, bool) {
	if u.LastCheckinTime == "" {
		return time.Time{}, false
	}
	secs, err := u.LastCheckinTime.Float64()
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(secs), 0), true
}

// UserInfoFromEnvelope extracts the data payload of a successful user info response
func UserInfoFromEnvelope(env *Envelope) (*UserInfo, error) {
	if !env.IsSuccess() {
		return nil, fmt.Errorf("user info request rejected: %s", env.StatusMsg)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: data missing", ErrInvalidEnvelope)
	}

	var info UserInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrInvalidEnvelope, err)
	}
	return &info, nil
}

// CheckinOutcome is the classification of one check-in response
type CheckinOutcome string

const (
	CheckinOutcomeSuccess          CheckinOutcome = "success"
	CheckinOutcomeAlreadyCheckedIn CheckinOutcome = "already_checked_in"
	CheckinOutcomeFailed           CheckinOutcome = "failed"
	CheckinOutcomeNoResponse       CheckinOutcome = "no_response"
)

// NoResponseMessage is reported when the check-in call produced no envelope
const NoResponseMessage = "服务器无响应"

// CheckinResult is the structured outcome of one check-in call
type CheckinResult struct {
	StatusCode int            `json:"status_code"`
	Message    string         `json:"message"`
	Outcome    CheckinOutcome `json:"outcome"`
	Success    bool           `json:"success"`
}

// ClassifyCheckin maps a check-in response to a result.
//
//	status_code 0                                  -> success
//	status_code 1 and message contains the phrase  -> success (already checked in today)
//	anything else, or nil                          -> failure
//
// The phrase is matched as a substring because the server wording varies around it.
func ClassifyCheckin(env *Envelope, alreadyCheckedInPhrase string) CheckinResult {
	code, ok := env.Code()
	if !ok {
		return CheckinResult{
			StatusCode: -1,
			Message:    NoResponseMessage,
			Outcome:    CheckinOutcomeNoResponse,
		}
	}

	result := CheckinResult{StatusCode: code, Message: env.StatusMsg}
	switch {
	case code == StatusCodeSuccess:
		result.Outcome = CheckinOutcomeSuccess
		result.Success = true
	case code == StatusCodeRejected && alreadyCheckedInPhrase != "" && strings.Contains(env.StatusMsg, alreadyCheckedInPhrase):
		result.Outcome = CheckinOutcomeAlreadyCheckedIn
		result.Success = true
	default:
		result.Outcome = CheckinOutcomeFailed
		if result.Message == "" {
			result.Message = "未知错误"
		}
	}
	return result
}
