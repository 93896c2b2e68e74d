package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/akile-checkin/internal/common"
	"github.com/ternarybob/akile-checkin/internal/interfaces"
	"github.com/ternarybob/akile-checkin/internal/models"
	"github.com/ternarybob/akile-checkin/internal/services/scheduler"
	"github.com/ternarybob/arbor"
)

// fakeSession serves canned envelopes and counts calls
type fakeSession struct {
	mu        sync.Mutex
	checkins  int
	closes    int
	onCheckin func(n int)
}

func (s *fakeSession) FetchUserInfo(ctx context.Context) (*models.Envelope, error) {
	return models.DecodeEnvelope([]byte(`{"status_code":0,"status_msg":"ok","data":{"username":"alice","last_checkin_time":1700000000}}`))
}

func (s *fakeSession) FetchCheckin(ctx context.Context) (*models.Envelope, error) {
	s.mu.Lock()
	s.checkins++
	n := s.checkins
	hook := s.onCheckin
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if n == 1 {
		return models.DecodeEnvelope([]byte(`{"status_code":0,"status_msg":"签到成功"}`))
	}
	return models.DecodeEnvelope([]byte(`{"status_code":1,"status_msg":"今日已签到"}`))
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSession) counts() (checkins, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkins, s.closes
}

// fakeDriver hands out fakeSessions
type fakeDriver struct {
	mu       sync.Mutex
	sessions []*fakeSession
	err      error
	hook     func(n int)
}

func (d *fakeDriver) Open(ctx context.Context, credential models.Credential) (interfaces.Session, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	session := &fakeSession{onCheckin: d.hook}
	d.sessions = append(d.sessions, session)
	return session, nil
}

func (d *fakeDriver) Name() string {
	return "fake"
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Credential.Token = "header.eyJ1c2VySWQiOjQyfQ.signature"
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "history")
	cfg.Scheduler.PollInterval = "5ms"
	return cfg
}

func TestNew_MissingCredential(t *testing.T) {
	cfg := testConfig(t)
	cfg.Credential.Token = ""

	_, err := New(cfg, arbor.NewNoOpLogger(), WithDriver(&fakeDriver{}))
	assert.ErrorIs(t, err, models.ErrMissingCredential)
}

func TestNew_UsesConfiguredEngine(t *testing.T) {
	cfg := testConfig(t)
	cfg.Browser.Engine = "rod"
	cfg.Storage.Badger.Enabled = false

	a, err := New(cfg, arbor.NewNoOpLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "rod", a.Driver.Name())
	assert.Nil(t, a.StorageManager)
	assert.Equal(t, "42", a.Credential.UserID)
}

func TestRun_Once(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Once = true
	driver := &fakeDriver{}

	a, err := New(cfg, arbor.NewNoOpLogger(), WithDriver(driver))
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Run(context.Background()))

	require.Len(t, driver.sessions, 1)
	checkins, closes := driver.sessions[0].counts()
	assert.Equal(t, 1, checkins)
	assert.Equal(t, 1, closes)

	records, err := a.StorageManager.HistoryStorage().List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, models.TriggerOnce, records[0].Trigger)
	assert.Equal(t, "alice", records[0].Username)
	assert.Equal(t, "42", records[0].UserID)
}

func TestRun_DriverFailure(t *testing.T) {
	cfg := testConfig(t)
	driver := &fakeDriver{err: &interfaces.DriverInitError{Engine: "fake", Stage: "launch", Err: errors.New("no chrome")}}

	a, err := New(cfg, arbor.NewNoOpLogger(), WithDriver(driver))
	require.NoError(t, err)
	defer a.Close()

	err = a.Run(context.Background())
	var initErr *interfaces.DriverInitError
	assert.True(t, errors.As(err, &initErr))
}

func TestRun_SharedSessionStartupThenSchedule(t *testing.T) {
	cfg := testConfig(t)
	clock := &testClock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.Local)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := &fakeDriver{hook: func(n int) {
		switch n {
		case 1:
			// Startup check-in done; move the clock onto the daily trigger
			clock.Set(time.Date(2026, 6, 1, 8, 30, 0, 0, time.Local))
		case 2:
			cancel()
		}
	}}

	a, err := New(cfg, arbor.NewNoOpLogger(),
		WithDriver(driver),
		WithSchedulerOptions(scheduler.WithClock(clock.Now)),
	)
	require.NoError(t, err)
	defer a.Close()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	require.Len(t, driver.sessions, 1, "one browser for the whole process")
	checkins, closes := driver.sessions[0].counts()
	assert.Equal(t, 2, checkins)
	assert.Equal(t, 1, closes)

	records, err := a.StorageManager.HistoryStorage().List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.TriggerSchedule, records[0].Trigger)
	assert.Equal(t, models.CheckinOutcomeAlreadyCheckedIn, records[0].Outcome)
	assert.Equal(t, models.TriggerStartup, records[1].Trigger)
}

func TestRun_FreshSessionPerCheckin(t *testing.T) {
	cfg := testConfig(t)
	cfg.Browser.FreshSessionPerCheckin = true
	clock := &testClock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.Local)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := &fakeDriver{}
	driver.hook = func(int) {
		driver.mu.Lock()
		opened := len(driver.sessions)
		driver.mu.Unlock()
		if opened == 1 {
			clock.Set(time.Date(2026, 6, 1, 8, 30, 0, 0, time.Local))
			return
		}
		cancel()
	}

	a, err := New(cfg, arbor.NewNoOpLogger(),
		WithDriver(driver),
		WithSchedulerOptions(scheduler.WithClock(clock.Now)),
	)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Run(ctx))

	require.Len(t, driver.sessions, 2)
	for _, session := range driver.sessions {
		_, closes := session.counts()
		assert.Equal(t, 1, closes)
	}
}
