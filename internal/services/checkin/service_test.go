package checkin

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/akile-checkin/internal/interfaces"
	"github.com/ternarybob/akile-checkin/internal/models"
	"github.com/ternarybob/arbor"
)

const alreadyCheckedIn = "今日已签到"

// MockSession is a mock implementation of interfaces.Session
type MockSession struct {
	mock.Mock
}

func (m *MockSession) FetchUserInfo(ctx context.Context) (*models.Envelope, error) {
	args := m.Called(ctx)
	if env, ok := args.Get(0).(*models.Envelope); ok {
		return env, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSession) FetchCheckin(ctx context.Context) (*models.Envelope, error) {
	args := m.Called(ctx)
	if env, ok := args.Get(0).(*models.Envelope); ok {
		return env, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSession) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockDriver is a mock implementation of interfaces.SessionDriver
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) Open(ctx context.Context, credential models.Credential) (interfaces.Session, error) {
	args := m.Called(ctx, credential)
	if session, ok := args.Get(0).(interfaces.Session); ok {
		return session, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDriver) Name() string {
	return "mock"
}

// MockHistoryStorage is a mock implementation of interfaces.HistoryStorage
type MockHistoryStorage struct {
	mock.Mock
}

func (m *MockHistoryStorage) Append(ctx context.Context, record *models.CheckinRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockHistoryStorage) List(ctx context.Context, limit int) ([]models.CheckinRecord, error) {
	args := m.Called(ctx, limit)
	if records, ok := args.Get(0).([]models.CheckinRecord); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockHistoryStorage) Last(ctx context.Context) (*models.CheckinRecord, error) {
	args := m.Called(ctx)
	if record, ok := args.Get(0).(*models.CheckinRecord); ok {
		return record, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockHistoryStorage) LastSuccess(ctx context.Context) (*models.CheckinRecord, error) {
	args := m.Called(ctx)
	if record, ok := args.Get(0).(*models.CheckinRecord); ok {
		return record, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockHistoryStorage) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func envelope(t *testing.T, body string) *models.Envelope {
	t.Helper()
	env, err := models.DecodeEnvelope([]byte(body))
	require.NoError(t, err)
	return env
}

func testCredential(t *testing.T) models.Credential {
	t.Helper()
	credential, err := models.NewCredential("header.eyJ1c2VySWQiOjQyfQ.signature", "test")
	require.NoError(t, err)
	credential.UserID = "42"
	return credential
}

func TestRunOnce_Success(t *testing.T) {
	ctx := context.Background()
	session := new(MockSession)
	driver := new(MockDriver)
	history := new(MockHistoryStorage)

	driver.On("Open", ctx, mock.Anything).Return(session, nil).Once()
	session.On("FetchUserInfo", ctx).
		Return(envelope(t, `{"status_code":0,"status_msg":"ok","data":{"username":"alice","last_checkin_time":1700000000}}`), nil).Once()
	session.On("FetchCheckin", ctx).
		Return(envelope(t, `{"status_code":0,"status_msg":"签到成功"}`), nil).Once()
	session.On("Close").Return(nil).Once()

	var stored *models.CheckinRecord
	history.On("Append", ctx, mock.AnythingOfType("*models.CheckinRecord")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*models.CheckinRecord) }).
		Return(nil).Once()

	svc := NewService(driver, history, testCredential(t), alreadyCheckedIn, arbor.NewNoOpLogger())
	report, err := svc.RunOnce(ctx, models.TriggerOnce)
	require.NoError(t, err)

	assert.Equal(t, []models.RunState{
		models.RunStateIdle,
		models.RunStateInitializing,
		models.RunStateInfoFetch,
		models.RunStateCheckingIn,
		models.RunStateDone,
	}, report.States)
	require.NotNil(t, report.UserInfo)
	assert.Equal(t, "alice", report.UserInfo.Username)
	assert.True(t, report.Result.Success)
	assert.Equal(t, "签到成功", report.Result.Message)

	require.NotNil(t, stored)
	assert.Equal(t, report.RunID, stored.RunID)
	assert.Equal(t, "alice", stored.Username)
	assert.Equal(t, "42", stored.UserID)
	assert.Equal(t, models.TriggerOnce, stored.Trigger)

	session.AssertExpectations(t)
	driver.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestRunOnce_Classification(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		fetchErr    error
		wantSuccess bool
		wantOutcome models.CheckinOutcome
		wantMessage string
	}{
		{"already checked in", `{"status_code":1,"status_msg":"今日已签到"}`, nil, true, models.CheckinOutcomeAlreadyCheckedIn, "今日已签到"},
		{"already checked in with suffix", `{"status_code":1,"status_msg":"今日已签到，请明天再来"}`, nil, true, models.CheckinOutcomeAlreadyCheckedIn, "今日已签到，请明天再来"},
		{"other rejection", `{"status_code":1,"status_msg":"其他错误"}`, nil, false, models.CheckinOutcomeFailed, "其他错误"},
		{"success", `{"status_code":0,"status_msg":"OK"}`, nil, true, models.CheckinOutcomeSuccess, "OK"},
		{"fetch timeout", "", context.DeadlineExceeded, false, models.CheckinOutcomeNoResponse, models.NoResponseMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			session := new(MockSession)
			driver := new(MockDriver)

			driver.On("Open", ctx, mock.Anything).Return(session, nil)
			session.On("FetchUserInfo", ctx).Return(nil, errors.New("info unavailable"))
			if tt.fetchErr != nil {
				session.On("FetchCheckin", ctx).Return(nil, tt.fetchErr)
			} else {
				session.On("FetchCheckin", ctx).Return(envelope(t, tt.body), nil)
			}
			session.On("Close").Return(nil).Once()

			svc := NewService(driver, nil, testCredential(t), alreadyCheckedIn, arbor.NewNoOpLogger())
			report, err := svc.RunOnce(ctx, models.TriggerSchedule)
			require.NoError(t, err)

			assert.Nil(t, report.UserInfo, "info failure is not fatal")
			assert.Equal(t, tt.wantSuccess, report.Result.Success)
			assert.Equal(t, tt.wantOutcome, report.Result.Outcome)
			assert.Equal(t, tt.wantMessage, report.Result.Message)
			assert.Equal(t, models.RunStateDone, report.State())
			session.AssertNumberOfCalls(t, "Close", 1)
		})
	}
}

func TestRunOnce_DriverInitError(t *testing.T) {
	ctx := context.Background()
	driver := new(MockDriver)
	history := new(MockHistoryStorage)

	initErr := &interfaces.DriverInitError{Engine: "mock", Stage: "launch", Err: errors.New("chrome not found")}
	driver.On("Open", ctx, mock.Anything).Return(nil, initErr)
	history.On("Append", ctx, mock.Anything).Return(nil).Once()

	svc := NewService(driver, history, testCredential(t), alreadyCheckedIn, arbor.NewNoOpLogger())
	report, err := svc.RunOnce(ctx, models.TriggerOnce)
	require.Error(t, err)

	var target *interfaces.DriverInitError
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, "launch", target.Stage)
	assert.False(t, report.Result.Success)
	assert.Equal(t, []models.RunState{models.RunStateIdle, models.RunStateInitializing, models.RunStateDone}, report.States)
	history.AssertExpectations(t)
}

func TestRunOnce_MissingCredential(t *testing.T) {
	driver := new(MockDriver)

	svc := NewService(driver, nil, models.Credential{}, alreadyCheckedIn, arbor.NewNoOpLogger())
	_, err := svc.RunOnce(context.Background(), models.TriggerOnce)

	assert.ErrorIs(t, err, models.ErrMissingCredential)
	driver.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}

func TestRunOnce_ClosesSessionOnPanic(t *testing.T) {
	ctx := context.Background()
	session := new(MockSession)
	driver := new(MockDriver)

	driver.On("Open", ctx, mock.Anything).Return(session, nil)
	session.On("FetchUserInfo", ctx).Return(nil, errors.New("info unavailable"))
	session.On("FetchCheckin", ctx).Run(func(mock.Arguments) { panic("boom") })
	session.On("Close").Return(nil).Once()

	svc := NewService(driver, nil, testCredential(t), alreadyCheckedIn, arbor.NewNoOpLogger())
	assert.Panics(t, func() { svc.RunOnce(ctx, models.TriggerOnce) })
	session.AssertNumberOfCalls(t, "Close", 1)
}

func TestRunOnce_HistoryFailureDoesNotChangeOutcome(t *testing.T) {
	ctx := context.Background()
	session := new(MockSession)
	driver := new(MockDriver)
	history := new(MockHistoryStorage)

	driver.On("Open", ctx, mock.Anything).Return(session, nil)
	session.On("FetchUserInfo", ctx).Return(nil, errors.New("info unavailable"))
	session.On("FetchCheckin", ctx).Return(envelope(t, `{"status_code":0,"status_msg":"签到成功"}`), nil)
	session.On("Close").Return(fmt.Errorf("already gone"))
	history.On("Append", ctx, mock.Anything).Return(errors.New("disk full"))

	svc := NewService(driver, history, testCredential(t), alreadyCheckedIn, arbor.NewNoOpLogger())
	report, err := svc.RunOnce(ctx, models.TriggerOnce)

	require.NoError(t, err)
	assert.True(t, report.Result.Success)
	session.AssertNumberOfCalls(t, "Close", 1)
}

func TestCheckin_ReusesSession(t *testing.T) {
	ctx := context.Background()
	session := new(MockSession)
	history := new(MockHistoryStorage)

	session.On("FetchCheckin", ctx).Return(envelope(t, `{"status_code":1,"status_msg":"今日已签到"}`), nil).Twice()
	history.On("Append", ctx, mock.Anything).Return(nil).Twice()

	svc := NewService(new(MockDriver), history, testCredential(t), alreadyCheckedIn, arbor.NewNoOpLogger())
	first := svc.Checkin(ctx, session, models.TriggerStartup)
	second := svc.Checkin(ctx, session, models.TriggerSchedule)

	assert.True(t, first.Success)
	assert.True(t, second.Success)
	session.AssertNotCalled(t, "Close")
	session.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestReportUserInfo_Rejected(t *testing.T) {
	ctx := context.Background()
	session := new(MockSession)
	session.On("FetchUserInfo", ctx).Return(envelope(t, `{"status_code":401,"status_msg":"unauthorized"}`), nil)

	svc := NewService(new(MockDriver), nil, testCredential(t), alreadyCheckedIn, arbor.NewNoOpLogger())
	assert.Nil(t, svc.ReportUserInfo(ctx, session))
}

func TestCloseSession_Nil(t *testing.T) {
	svc := NewService(new(MockDriver), nil, testCredential(t), alreadyCheckedIn, arbor.NewNoOpLogger())
	assert.NotPanics(t, func() { svc.CloseSession(nil) })
}
