package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/akile-checkin/internal/common"
	"github.com/ternarybob/akile-checkin/internal/interfaces"
	"github.com/ternarybob/akile-checkin/internal/models"
	"github.com/ternarybob/arbor"
)

// LastCheckinLayout formats the server-reported last check-in time
const LastCheckinLayout = "2006-01-02 15:04:05"

// Service runs the check-in state machine against a browser session:
//
//	Idle -> Initializing -> InfoFetch -> CheckingIn -> Done
//
// Only session launch failures surface as errors. Every remote problem
// after launch becomes a logged, failed CheckinResult.
type Service struct {
	driver     interfaces.SessionDriver
	history    interfaces.HistoryStorage // nil disables history
	credential models.Credential
	phrase     string
	logger     arbor.ILogger
}

// NewService creates the check-in orchestrator.
// phrase is the status_msg substring that marks an "already checked in today" reply.
func NewService(
	driver interfaces.SessionDriver,
	history interfaces.HistoryStorage,
	credential models.Credential,
	phrase string,
	logger arbor.ILogger,
) *Service {
	return &Service{
		driver:     driver,
		history:    history,
		credential: credential,
		phrase:     phrase,
		logger:     logger,
	}
}

// OpenSession launches a browser session bound to the credential
func (s *Service) OpenSession(ctx context.Context) (interfaces.Session, error) {
	if s.credential.IsZero() {
		return nil, models.ErrMissingCredential
	}

	s.logger.Info().Str("engine", s.driver.Name()).Msg("Starting browser session")

	session, err := s.driver.Open(ctx, s.credential)
	if err != nil {
		s.logger.Error().Err(err).Str("engine", s.driver.Name()).Msg("Failed to initialize browser session")
		return nil, err
	}
	return session, nil
}

// ReportUserInfo fetches and logs the account info. Any failure is logged and yields nil.
func (s *Service) ReportUserInfo(ctx context.Context, session interfaces.Session) *models.UserInfo {
	return s.reportUserInfo(ctx, s.logger, session)
}

// Checkin performs one check-in on an existing session and records it
func (s *Service) Checkin(ctx context.Context, session interfaces.Session, trigger models.CheckinTrigger) models.CheckinResult {
	report := s.newReport(trigger)
	logger := s.logger.WithCorrelationId(report.RunID)

	report.Enter(models.RunStateCheckingIn)
	report.Result = s.checkin(ctx, logger, session)
	s.finish(ctx, logger, report)

	return report.Result
}

// RunOnce runs the full state machine in a dedicated session.
// The session is closed before returning on every path.
func (s *Service) RunOnce(ctx context.Context, trigger models.CheckinTrigger) (*models.RunReport, error) {
	report := s.newReport(trigger)
	logger := s.logger.WithCorrelationId(report.RunID)

	report.Enter(models.RunStateInitializing)
	session, err := s.OpenSession(ctx)
	if err != nil {
		report.Result = models.CheckinResult{
			StatusCode: -1,
			Message:    err.Error(),
			Outcome:    models.CheckinOutcomeFailed,
		}
		s.finish(ctx, logger, report)
		return report, fmt.Errorf("failed to open session: %w", err)
	}
	defer s.CloseSession(session)

	report.Enter(models.RunStateInfoFetch)
	report.UserInfo = s.reportUserInfo(ctx, logger, session)

	report.Enter(models.RunStateCheckingIn)
	report.Result = s.checkin(ctx, logger, session)
	s.finish(ctx, logger, report)

	return report, nil
}

// CloseSession closes a session and logs any teardown failure
func (s *Service) CloseSession(session interfaces.Session) {
	if session == nil {
		return
	}
	if err := session.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close browser session")
		return
	}
	s.logger.Debug().Msg("Browser session closed")
}

func (s *Service) newReport(trigger models.CheckinTrigger) *models.RunReport {
	report := &models.RunReport{
		RunID:     common.NewRunID(),
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
	report.Enter(models.RunStateIdle)
	return report
}

func (s *Service) reportUserInfo(ctx context.Context, logger arbor.ILogger, session interfaces.Session) *models.UserInfo {
	env, err := session.FetchUserInfo(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch user info")
		return nil
	}

	info, err := models.UserInfoFromEnvelope(env)
	if err != nil {
		logger.Warn().Err(err).Msg("User info unavailable")
		return nil
	}

	logger.Info().
		Str("username", info.Username).
		Str("user_id", s.credential.UserID).
		Msg("Logged in")

	if last, ok := info.LastCheckin(); ok {
		logger.Info().Str("last_checkin", last.Format(LastCheckinLayout)).Msg("Previous check-in")
	}
	return info
}

func (s *Service) checkin(ctx context.Context, logger arbor.ILogger, session interfaces.Session) models.CheckinResult {
	env, err := session.FetchCheckin(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Check-in request failed")
		env = nil
	}

	result := models.ClassifyCheckin(env, s.phrase)
	switch result.Outcome {
	case models.CheckinOutcomeSuccess:
		logger.Info().Str("message", result.Message).Msg("Check-in succeeded")
	case models.CheckinOutcomeAlreadyCheckedIn:
		logger.Info().Str("message", result.Message).Msg("Already checked in today")
	default:
		logger.Warn().
			Int("status_code", result.StatusCode).
			Str("message", result.Message).
			Msg("Check-in failed")
	}
	return result
}

// finish moves the run to Done and appends it to history
func (s *Service) finish(ctx context.Context, logger arbor.ILogger, report *models.RunReport) {
	report.Enter(models.RunStateDone)
	report.FinishedAt = time.Now()

	if s.history == nil {
		return
	}

	record := &models.CheckinRecord{
		RunID:      report.RunID,
		Trigger:    report.Trigger,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Success:    report.Result.Success,
		Outcome:    report.Result.Outcome,
		StatusCode: report.Result.StatusCode,
		Message:    report.Result.Message,
		UserID:     s.credential.UserID,
	}
	if report.UserInfo != nil {
		record.Username = report.UserInfo.Username
	}

	if err := s.history.Append(ctx, record); err != nil {
		logger.Warn().Err(err).Msg("Failed to record check-in history")
	}
}
