package catalog

import (
	"context"
	"errors"
	"fmt"

	optionerrors "github.com/abgdnv/gocommerce/option_service/internal/errors"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/config"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// BreakerItemFinder guards an ItemFinder with a circuit breaker.
type BreakerItemFinder struct {
	next ItemFinder
	cb   *gobreaker.CircuitBreaker[*Item]
}

// NewBreakerItemFinder wraps next. ErrItemNotFound and caller cancellations do not count as failures.
func NewBreakerItemFinder(next ItemFinder, cfg config.CircuitBreakerConfig) *BreakerItemFinder {
	st := gobreaker.Settings{
		Name:        "catalog-item-finder",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures > cfg.ConsecutiveFailures {
				return true
			}
			return cfg.ErrorRatePercent > 0 && counts.Requests > cfg.ConsecutiveFailures &&
				float64(counts.TotalFailures)/float64(counts.Requests)*100 > float64(cfg.ErrorRatePercent)
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, optionerrors.ErrItemNotFound) ||
				errors.Is(err, context.Canceled)
		},
	}
	return &BreakerItemFinder{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[*Item](st),
	}
}

func (b *BreakerItemFinder) FindActiveByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := b.cb.Execute(func() (*Item, error) {
		return b.next.FindActiveByID(ctx, id)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", optionerrors.ErrCatalogUnavailable, err)
	}
	return item, err
}

// State exposes the breaker state for logging.
func (b *BreakerItemFinder) State() gobreaker.State {
	return b.cb.State()
}
