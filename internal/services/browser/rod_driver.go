package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ternarybob/akile-checkin/internal/interfaces"
	"github.com/ternarybob/akile-checkin/internal/models"
	"github.com/ternarybob/arbor"
)

// RodDriver launches Chrome through go-rod
type RodDriver struct {
	opts   Options
	logger arbor.ILogger
}

// NewRodDriver creates a rod-backed session driver
func NewRodDriver(opts Options, logger arbor.ILogger) *RodDriver {
	return &RodDriver{opts: opts, logger: logger}
}

// Name identifies the engine
func (d *RodDriver) Name() string {
	return EngineRod
}

func (d *RodDriver) launcher() *launcher.Launcher {
	l := launcher.New().
		Headless(d.opts.Headless).
		Set(flags.Flag("no-sandbox")).
		Set(flags.Flag("disable-dev-shm-usage")).
		Set(flags.Flag("disable-gpu")).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", d.opts.WindowWidth, d.opts.WindowHeight)).
		Set(flags.Flag("log-level"), "3").
		Delete(flags.Flag("enable-automation"))
	if d.opts.IgnoreCertErrors {
		l = l.Set(flags.Flag("ignore-certificate-errors")).Set(flags.Flag("ignore-ssl-errors"))
	}
	if d.opts.ExecPath != "" {
		l = l.Bin(d.opts.ExecPath)
	}
	return l
}

// Open launches a browser, navigates to the site root and writes the credential into localStorage
func (d *RodDriver) Open(ctx context.Context, credential models.Credential) (interfaces.Session, error) {
	if credential.IsZero() {
		return nil, models.ErrMissingCredential
	}

	startTime := time.Now()
	session := &rodSession{opts: d.opts, logger: d.logger}

	fail := func(stage string, err error) (interfaces.Session, error) {
		session.Close()
		return nil, &interfaces.DriverInitError{Engine: EngineRod, Stage: stage, Err: err}
	}

	startCtx, cancel := context.WithTimeout(ctx, d.opts.StartupTimeout)
	defer cancel()

	// Launched without startCtx: a launcher context would kill the process once Open returns
	l := d.launcher()
	controlURL, err := l.Launch()
	if err != nil {
		return fail("launch", err)
	}
	// Only a launched process may be cleaned up; Cleanup blocks until it exits
	session.launcher = l

	// The browser connection is not bound to startCtx; Close is the only way it is torn down
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fail("launch", err)
	}
	session.browser = browser

	if d.opts.IgnoreCertErrors {
		if err := browser.IgnoreCertErrors(true); err != nil {
			return fail("launch", err)
		}
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fail("launch", err)
	}
	session.page = page

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: d.opts.UserAgent}); err != nil {
		return fail("user_agent", err)
	}

	p := page.Context(startCtx)
	if err := p.Navigate(d.opts.BaseURL); err != nil {
		return fail("navigate", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fail("navigate", err)
	}

	if _, err := p.Evaluate(rod.Eval(setItemFunction, d.opts.TokenStorageKey, credential.Token)); err != nil {
		return fail("inject", err)
	}

	d.logger.Debug().
		Str("engine", EngineRod).
		Bool("headless", d.opts.Headless).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser session initialized")

	return session, nil
}

type rodSession struct {
	launcher  *launcher.Launcher
	browser   *rod.Browser
	page      *rod.Page
	opts      Options
	logger    arbor.ILogger
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// FetchUserInfo calls the user info endpoint from inside the page
func (s *rodSession) FetchUserInfo(ctx context.Context) (*models.Envelope, error) {
	return s.fetch(ctx, s.opts.UserInfoURL)
}

// FetchCheckin calls the check-in endpoint from inside the page
func (s *rodSession) FetchCheckin(ctx context.Context) (*models.Envelope, error) {
	return s.fetch(ctx, s.opts.CheckinURL)
}

func (s *rodSession) fetch(ctx context.Context, endpoint string) (*models.Envelope, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || s.page == nil {
		return nil, fmt.Errorf("session closed")
	}

	readyCtx, cancelReady := context.WithTimeout(ctx, s.opts.ReadyTimeout)
	defer cancelReady()

	p := s.page.Context(readyCtx)
	if err := p.Navigate(s.opts.BaseURL); err != nil {
		return nil, fmt.Errorf("page not ready: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("page not ready: %w", err)
	}

	fetchCtx, cancelFetch := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancelFetch()

	res, err := s.page.Context(fetchCtx).Evaluate(
		rod.Eval(fetchFunction, endpoint, s.opts.TokenStorageKey).ByPromise(),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch %s failed: %w", endpoint, err)
	}

	body := res.Value.Str()
	s.logger.Debug().Str("endpoint", endpoint).Str("body", body).Msg("Fetch response")

	return models.DecodeEnvelope([]byte(body))
}

// Close disconnects from the browser, kills the process and removes its profile directory
func (s *rodSession) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				closeErr = fmt.Errorf("failed to close browser: %w", err)
			}
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		s.logger.Debug().Str("engine", EngineRod).Msg("Browser session closed")
	})
	return closeErr
}
