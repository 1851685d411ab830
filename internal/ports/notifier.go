package ports

import (
	"context"

	"github.com/alejandrodnm/swaproute/internal/domain"
)

// Notifier presenta los quotes rankeados de un request (consola, etc.).
type Notifier interface {
	Notify(ctx context.Context, quotes []domain.RankedQuote) error
}
