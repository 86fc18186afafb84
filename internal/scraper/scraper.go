package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
)

// CellsPerRecord is the number of table cells the exchange renders per
// trading day.
const CellsPerRecord = 9

var (
	// ErrTimeout means an interactive element or the result table did not
	// show up within its bounded wait.
	ErrTimeout = eris.New("interaction timed out")
	// ErrInteraction is any other failure while driving a session.
	ErrInteraction = eris.New("interaction failed")
)

// IsTransient reports whether err is a session interaction failure that
// should fail the current sub-window and be retried on the next run.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrInteraction) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Source opens stateful sessions against the remote exchange.
type Source interface {
	OpenSession(ctx context.Context) (Session, error)
}

// Session is one exclusive interactive connection. A session is not safe for
// concurrent use; the session pool hands it to one worker at a time.
type Session interface {
	ID() string
	// FetchCatalogCodes returns the codes of every listed entity.
	FetchCatalogCodes(ctx context.Context) ([]string, error)
	// FetchRows returns the raw result table for code between from and to,
	// row-major, CellsPerRecord cells per trading day.
	FetchRows(ctx context.Context, code string, from, to time.Time) ([]string, error)
	Close() error
}
