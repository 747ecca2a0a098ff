package ports

import (
	"context"

	"github.com/ewilliams-labs/aura/internal/core/domain"
)

// SymphonyComposer turns an emotional description into a Symphony.
// Failures are reported as *domain.GenerationError.
type SymphonyComposer interface {
	Compose(ctx context.Context, in domain.EmotionInput) (domain.Symphony, error)
}
