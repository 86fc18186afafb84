package mse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/ahmethakanbesel/mse-harvester/internal/scraper"
)

func TestNew_Defaults(t *testing.T) {
	s := New()
	assert.Equal(t, defaultBaseURL, s.baseURL)
	assert.True(t, s.headless)
	assert.Equal(t, defaultStepTimeout, s.stepTimeout)
	assert.Equal(t, rate.Limit(defaultRatePerSec), s.limiter.Limit())
}

func TestOptions(t *testing.T) {
	s := New(
		WithBaseURL("http://localhost:8080/"),
		WithHeadless(false),
		WithStepTimeout(2*time.Second),
		WithRate(0),
	)
	assert.Equal(t, "http://localhost:8080", s.baseURL)
	assert.False(t, s.headless)
	assert.Equal(t, 2*time.Second, s.stepTimeout)
	assert.Equal(t, rate.Inf, s.limiter.Limit())

	// Non-positive timeouts keep the default.
	assert.Equal(t, defaultStepTimeout, New(WithStepTimeout(0)).stepTimeout)
}

func TestURLs(t *testing.T) {
	s := New()
	assert.Equal(t, "https://www.mse.mk/mk/stats/symbolhistory/ALK", s.historyURL("ALK"))
	assert.Equal(t, "https://www.mse.mk/mk/issuers/free-market", s.catalogURL())
}

func TestFormatInputDate(t *testing.T) {
	assert.Equal(t, "01.01.2016", FormatInputDate(time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "31.12.2025", FormatInputDate(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestExecOptions_AppendExtras(t *testing.T) {
	base := len(New().execOptions())
	s := New(WithAllocatorOptions(chromedp.ExecPath("/usr/bin/chromium")))
	assert.Len(t, s.execOptions(), base+1)
}

func TestClassify(t *testing.T) {
	live := context.Background()

	expired, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expired.Done()

	assert.NoError(t, classify(live, live, "s1", "submit", nil))

	err := classify(live, expired, "s1", "wait for table", context.DeadlineExceeded)
	assert.ErrorIs(t, err, scraper.ErrTimeout)
	assert.True(t, scraper.IsTransient(err))

	err = classify(live, live, "s1", "set dates", errors.New("node not found"))
	assert.ErrorIs(t, err, scraper.ErrInteraction)
	assert.NotErrorIs(t, err, scraper.ErrTimeout)

	caller, stop := context.WithCancel(context.Background())
	stop()
	err = classify(caller, caller, "s1", "submit", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, scraper.IsTransient(err))
}
