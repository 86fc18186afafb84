// Package session owns the fixed set of remote sessions shared by all fetch
// workers of a run.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ahmethakanbesel/mse-harvester/internal/metrics"
	"github.com/ahmethakanbesel/mse-harvester/internal/scraper"
)

// MaxSize caps the pool regardless of available parallelism.
const MaxSize = 32

// ErrPoolClosed is returned by Do once CloseAll has run.
var ErrPoolClosed = eris.New("session pool closed")

// DefaultSize is min(32, GOMAXPROCS+4).
func DefaultSize() int {
	return min(MaxSize, runtime.GOMAXPROCS(0)+4)
}

// Pool hands out sessions one holder at a time. Checkout only happens through
// Do, which always returns the session.
type Pool struct {
	size int
	idle chan scraper.Session
	done chan struct{}

	mu        sync.Mutex
	all       []scraper.Session
	held      map[string]scraper.Session
	closeOnce sync.Once
	closeErr  error
}

// NewPool opens size sessions from src. On failure the sessions opened so far
// are closed again.
func NewPool(ctx context.Context, src scraper.Source, size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultSize()
	}
	p := &Pool{
		size: size,
		idle: make(chan scraper.Session, size),
		done: make(chan struct{}),
		held: make(map[string]scraper.Session, size),
	}
	for i := 0; i < size; i++ {
		s, err := src.OpenSession(ctx)
		if err != nil {
			_ = p.CloseAll()
			return nil, eris.Wrapf(err, "open session %d of %d", i+1, size)
		}
		p.all = append(p.all, s)
		p.idle <- s
	}
	zap.L().Info("session pool ready", zap.Int("size", size))
	return p, nil
}

func (p *Pool) Size() int { return p.size }

// InUse is the number of sessions currently checked out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.held)
}

// Do runs fn with an exclusive session. It blocks while every session is
// checked out and gives up only when ctx ends or the pool is closed.
func (p *Pool) Do(ctx context.Context, fn func(scraper.Session) error) (err error) {
	s, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			p.release(s)
			panic(r)
		}
		p.release(s)
	}()
	return fn(s)
}

func (p *Pool) acquire(ctx context.Context) (scraper.Session, error) {
	select {
	case <-p.done:
		return nil, ErrPoolClosed
	default:
	}

	select {
	case s := <-p.idle:
		p.mu.Lock()
		p.held[s.ID()] = s
		metrics.SessionsInUse.Set(float64(len(p.held)))
		p.mu.Unlock()
		return s, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire session: %w", ctx.Err())
	}
}

func (p *Pool) release(s scraper.Session) {
	p.mu.Lock()
	held, ok := p.held[s.ID()]
	if !ok || held != s {
		p.mu.Unlock()
		zap.L().Error("refusing to release a session not checked out from this pool", zap.String("session", s.ID()))
		return
	}
	delete(p.held, s.ID())
	metrics.SessionsInUse.Set(float64(len(p.held)))
	p.mu.Unlock()

	p.idle <- s
}

// CloseAll stops further checkouts and closes every session. Call it after
// all holders have returned; later calls are no-ops.
func (p *Pool) CloseAll() error {
	p.closeOnce.Do(func() {
		close(p.done)

		p.mu.Lock()
		if n := len(p.held); n > 0 {
			zap.L().Warn("closing session pool with sessions still checked out", zap.Int("held", n))
		}
		all := p.all
		p.mu.Unlock()

		var errs []error
		for _, s := range all {
			if err := s.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close session %s: %w", s.ID(), err))
			}
		}
		p.closeErr = errors.Join(errs...)
		zap.L().Info("session pool closed", zap.Int("sessions", len(all)))
	})
	return p.closeErr
}
