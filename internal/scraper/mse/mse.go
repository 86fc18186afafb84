// Package mse drives the Macedonian Stock Exchange web site through a headless
// Chrome instance. Each Session owns one browser process and one tab.
package mse

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahmethakanbesel/mse-harvester/internal/scraper"
)

const (
	defaultBaseURL     = "https://www.mse.mk"
	historyPath        = "/mk/stats/symbolhistory/"
	catalogPath        = "/mk/issuers/free-market"
	inputDateLayout    = "02.01.2006"
	defaultStepTimeout = 5 * time.Second
	defaultRatePerSec  = 4

	fromInput    = `input[name="FromDate"]`
	toInput      = `input[name="ToDate"]`
	submitButton = `.btn-primary-sm`

	cellsScript = `Array.from(document.querySelectorAll('td')).map(c => c.textContent.trim())`

	catalogScript = `Array.from(document.querySelectorAll('table tr'))
		.map(r => r.querySelector('td'))
		.filter(c => c !== null)
		.map(c => c.textContent.trim())
		.filter(s => s !== '')`
)

// Source launches browser sessions against the exchange.
type Source struct {
	baseURL     string
	headless    bool
	stepTimeout time.Duration
	limiter     *rate.Limiter
	allocOpts   []chromedp.ExecAllocatorOption

	seq atomic.Int64
}

type Option func(*Source)

func WithBaseURL(u string) Option {
	return func(s *Source) { s.baseURL = strings.TrimRight(u, "/") }
}

func WithHeadless(b bool) Option {
	return func(s *Source) { s.headless = b }
}

// WithStepTimeout bounds every wait for an element or for the result table.
func WithStepTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.stepTimeout = d
		}
	}
}

// WithRate limits page loads across all sessions of the source. A
// non-positive rate disables pacing.
func WithRate(perSec float64) Option {
	return func(s *Source) {
		if perSec <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(perSec)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithAllocatorOptions appends raw Chrome flags, e.g. chromedp.ExecPath.
func WithAllocatorOptions(opts ...chromedp.ExecAllocatorOption) Option {
	return func(s *Source) { s.allocOpts = append(s.allocOpts, opts...) }
}

func New(opts ...Option) *Source {
	s := &Source{
		baseURL:     defaultBaseURL,
		headless:    true,
		stepTimeout: defaultStepTimeout,
		limiter:     rate.NewLimiter(rate.Limit(defaultRatePerSec), defaultRatePerSec),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Source) historyURL(code string) string {
	return s.baseURL + historyPath + url.PathEscape(code)
}

func (s *Source) catalogURL() string {
	return s.baseURL + catalogPath
}

func (s *Source) execOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", s.headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1280, 1024),
	)
	return append(opts, s.allocOpts...)
}

// OpenSession starts a browser. The browser lives until Close; ctx only bounds
// the start-up.
func (s *Source) OpenSession(ctx context.Context) (scraper.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), s.execOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	sess := &Session{
		id:     fmt.Sprintf("mse-%d", s.seq.Add(1)),
		src:    s,
		tabCtx: tabCtx,
		cancel: func() { tabCancel(); allocCancel() },
	}

	// The first Run launches the browser; it must not carry a deadline.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()
	select {
	case err := <-started:
		if err != nil {
			sess.cancel()
			return nil, eris.Wrap(err, "mse: start browser")
		}
	case <-ctx.Done():
		sess.cancel()
		return nil, fmt.Errorf("mse: start browser: %w", ctx.Err())
	}

	zap.L().Debug("browser session opened", zap.String("session", sess.id))
	return sess, nil
}

// Session is one browser tab. Not safe for concurrent use.
type Session struct {
	id     string
	src    *Source
	tabCtx context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func (s *Session) ID() string { return s.id }

func (s *Session) FetchCatalogCodes(ctx context.Context) ([]string, error) {
	if err := s.src.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("mse: catalog: %w", err)
	}

	var codes []string
	err := s.step(ctx, "load catalog",
		network.ClearBrowserCookies(),
		chromedp.Navigate(s.src.catalogURL()),
		chromedp.WaitReady("table tr td", chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}
	if err := s.step(ctx, "read catalog", chromedp.Evaluate(catalogScript, &codes)); err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *Session) FetchRows(ctx context.Context, code string, from, to time.Time) ([]string, error) {
	if err := s.src.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("mse: %s: %w", code, err)
	}

	if err := s.step(ctx, "open history",
		chromedp.Navigate(s.src.historyURL(code)),
		network.ClearBrowserCookies(),
	); err != nil {
		return nil, err
	}
	if err := s.step(ctx, "wait for date inputs",
		chromedp.WaitVisible(fromInput, chromedp.ByQuery),
		chromedp.WaitVisible(toInput, chromedp.ByQuery),
	); err != nil {
		return nil, err
	}
	if err := s.step(ctx, "set dates",
		chromedp.SetValue(fromInput, FormatInputDate(from), chromedp.ByQuery),
		chromedp.SetValue(toInput, FormatInputDate(to), chromedp.ByQuery),
	); err != nil {
		return nil, err
	}
	if err := s.step(ctx, "submit",
		chromedp.WaitVisible(submitButton, chromedp.ByQuery),
		chromedp.Click(submitButton, chromedp.ByQuery),
	); err != nil {
		return nil, err
	}
	if err := s.step(ctx, "wait for table", chromedp.WaitReady("td", chromedp.ByQuery)); err != nil {
		return nil, err
	}

	var cells []string
	if err := s.step(ctx, "read table", chromedp.Evaluate(cellsScript, &cells)); err != nil {
		return nil, err
	}
	return cells, nil
}

// step runs actions in the tab under the step timeout. A cancelled ctx aborts
// the step without tearing down the browser.
func (s *Session) step(ctx context.Context, name string, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(s.tabCtx, s.src.stepTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(stepCtx, actions...)
	return classify(ctx, stepCtx, s.id, name, err)
}

func classify(callerCtx, stepCtx context.Context, id, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case callerCtx.Err() != nil:
		return fmt.Errorf("mse %s: %s: %w", id, name, callerCtx.Err())
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(stepCtx.Err(), context.DeadlineExceeded):
		return eris.Wrapf(scraper.ErrTimeout, "mse %s: %s", id, name)
	default:
		return eris.Wrapf(scraper.ErrInteraction, "mse %s: %s: %v", id, name, err)
	}
}

// Close shuts the browser down. Subsequent calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.tabCtx)
		s.cancel()
		if errors.Is(s.closeErr, context.Canceled) {
			s.closeErr = nil
		}
		if s.closeErr != nil {
			s.closeErr = eris.Wrapf(s.closeErr, "mse %s: close", s.id)
		}
		zap.L().Debug("browser session closed", zap.String("session", s.id))
	})
	return s.closeErr
}

// FormatInputDate renders t the way the exchange's date inputs expect.
func FormatInputDate(t time.Time) string {
	return t.Format(inputDateLayout)
}

var _ scraper.Source = (*Source)(nil)
