package ports

import (
	"context"
	"time"

	"github.com/ewilliams-labs/aura/internal/core/domain"
)

type SessionRepository interface {
	GetByID(ctx context.Context, id string) (domain.Session, error)
	Save(ctx context.Context, s domain.Session) error
	// DeleteIdleSince removes sessions last updated before cutoff. Sessions
	// with a request loading are only removed when also updated before
	// loadingCutoff; a zero loadingCutoff keeps them.
	DeleteIdleSince(ctx context.Context, cutoff, loadingCutoff time.Time) (int64, error)
	ListInFlight(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}
