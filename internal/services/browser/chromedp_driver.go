package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/akile-checkin/internal/interfaces"
	"github.com/ternarybob/akile-checkin/internal/models"
	"github.com/ternarybob/arbor"
)

// ChromeDPDriver launches Chrome through chromedp
type ChromeDPDriver struct {
	opts   Options
	logger arbor.ILogger
}

// NewChromeDPDriver creates a chromedp-backed session driver
func NewChromeDPDriver(opts Options, logger arbor.ILogger) *ChromeDPDriver {
	return &ChromeDPDriver{opts: opts, logger: logger}
}

// Name identifies the engine
func (d *ChromeDPDriver) Name() string {
	return EngineChromeDP
}

func (d *ChromeDPDriver) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("log-level", "3"),
		chromedp.WindowSize(d.opts.WindowWidth, d.opts.WindowHeight),
		chromedp.UserAgent(d.opts.UserAgent),
	)
	if d.opts.IgnoreCertErrors {
		opts = append(opts,
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("ignore-ssl-errors", true),
		)
	}
	if d.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(d.opts.ExecPath))
	}
	return opts
}

// Open launches a browser, navigates to the site root and writes the credential into localStorage
func (d *ChromeDPDriver) Open(ctx context.Context, credential models.Credential) (interfaces.Session, error) {
	if credential.IsZero() {
		return nil, models.ErrMissingCredential
	}

	startTime := time.Now()

	// The browser outlives the caller's context; Close is the only way it is torn down
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), d.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	session := &chromedpSession{
		ctx:             browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		opts:            d.opts,
		logger:          d.logger,
	}

	fail := func(stage string, err error) (interfaces.Session, error) {
		session.Close()
		return nil, &interfaces.DriverInitError{Engine: EngineChromeDP, Stage: stage, Err: err}
	}

	// Interrupts during launch must still kill the process
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	// First Run allocates the browser; no timeout here or the whole browser dies with it
	if err := chromedp.Run(browserCtx); err != nil {
		return fail("launch", err)
	}

	startCtx, cancel := context.WithTimeout(browserCtx, d.opts.StartupTimeout)
	defer cancel()

	if err := chromedp.Run(startCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.SetUserAgentOverride(d.opts.UserAgent).Do(ctx)
	})); err != nil {
		return fail("user_agent", err)
	}

	if err := chromedp.Run(startCtx, chromedp.Navigate(d.opts.BaseURL)); err != nil {
		return fail("navigate", err)
	}

	var stored bool
	if err := chromedp.Run(startCtx,
		chromedp.Evaluate(callExpression(setItemFunction, d.opts.TokenStorageKey, credential.Token), &stored),
	); err != nil {
		return fail("inject", err)
	}

	d.logger.Debug().
		Str("engine", EngineChromeDP).
		Bool("headless", d.opts.Headless).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser session initialized")

	return session, nil
}

type chromedpSession struct {
	ctx             context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	opts            Options
	logger          arbor.ILogger
	closeOnce       sync.Once
}

// FetchUserInfo calls the user info endpoint from inside the page
func (s *chromedpSession) FetchUserInfo(ctx context.Context) (*models.Envelope, error) {
	return s.fetch(ctx, s.opts.UserInfoURL)
}

// FetchCheckin calls the check-in endpoint from inside the page
func (s *chromedpSession) FetchCheckin(ctx context.Context) (*models.Envelope, error) {
	return s.fetch(ctx, s.opts.CheckinURL)
}

func (s *chromedpSession) fetch(ctx context.Context, endpoint string) (*models.Envelope, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, fmt.Errorf("session closed: %w", err)
	}

	readyCtx, cancelReady := context.WithTimeout(s.ctx, s.opts.ReadyTimeout)
	defer cancelReady()
	stopReady := context.AfterFunc(ctx, cancelReady)
	defer stopReady()

	var ready bool
	if err := chromedp.Run(readyCtx,
		chromedp.Navigate(s.opts.BaseURL),
		chromedp.Poll(readyExpression, &ready,
			chromedp.WithPollingInterval(100*time.Millisecond),
			chromedp.WithPollingTimeout(s.opts.ReadyTimeout),
		),
	); err != nil {
		return nil, fmt.Errorf("page not ready: %w", err)
	}

	fetchCtx, cancelFetch := context.WithTimeout(s.ctx, s.opts.FetchTimeout)
	defer cancelFetch()
	stopFetch := context.AfterFunc(ctx, cancelFetch)
	defer stopFetch()

	var body string
	err := chromedp.Run(fetchCtx,
		chromedp.Evaluate(callExpression(fetchFunction, endpoint, s.opts.TokenStorageKey), &body,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch %s failed: %w", endpoint, err)
	}

	s.logger.Debug().Str("endpoint", endpoint).Str("body", body).Msg("Fetch response")

	return models.DecodeEnvelope([]byte(body))
}

// Close cancels the browser and allocator contexts, which terminates the Chrome process
func (s *chromedpSession) Close() error {
	s.closeOnce.Do(func() {
		if s.browserCancel != nil {
			s.browserCancel()
		}
		if s.allocatorCancel != nil {
			s.allocatorCancel()
		}
		s.logger.Debug().Str("engine", EngineChromeDP).Msg("Browser session closed")
	})
	return nil
}
