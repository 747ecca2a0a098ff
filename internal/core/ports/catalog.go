package ports

import (
	"context"

	"github.com/ewilliams-labs/aura/internal/core/domain"
)

// TrackFinder finds a playable track for a symphony's primary mood keyword.
// Failures are reported as *domain.TrackSearchError.
type TrackFinder interface {
	FindSoundtrack(ctx context.Context, s domain.Symphony) (domain.Track, error)
}
