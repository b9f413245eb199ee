// Package subscriber consumes catalog events from NATS JetStream.
package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/abgdnv/gocommerce/option_service/internal/platform/config"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/messaging/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
)

// OptionsDeleter removes the options of a deleted item.
type OptionsDeleter interface {
	DeleteOptionsByParent(ctx context.Context, itemID uuid.UUID) (int64, error)
}

// Start creates the durable consumer for item deletions and runs cfg.Workers workers until ctx is done.
func Start(ctx context.Context, js jetstream.JetStream, cfg config.SubscriberConfig, deleter OptionsDeleter, logger *slog.Logger) error {
	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.Stream, jetstream.ConsumerConfig{
		FilterSubject: cfg.Subject,
		Durable:       cfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return err
	}
	logger = logger.With("component", "items-subscriber", "consumer", cfg.Consumer)

	g, gCtx := errgroup.WithContext(ctx)
	for range cfg.Workers {
		g.Go(func() error {
			return runWorker(gCtx, consumer, cfg, deleter, logger)
		})
	}
	return g.Wait()
}

func runWorker(ctx context.Context, consumer jetstream.Consumer, cfg config.SubscriberConfig, deleter OptionsDeleter, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := consumer.Fetch(cfg.Batch, jetstream.FetchMaxWait(cfg.Timeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			logger.ErrorContext(ctx, "failed to fetch messages", "error", err)
			sleep(ctx, cfg.Interval)
			continue
		}
		for msg := range batch.Messages() {
			handleMessage(ctx, msg, deleter, cfg.Interval, logger)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			logger.WarnContext(ctx, "fetch ended with error", "error", err)
		}
	}
}

// handleMessage deletes the options of the item in msg.
// Undecodable messages are terminated, failed deletions are redelivered after retryDelay.
func handleMessage(ctx context.Context, msg jetstream.Msg, deleter OptionsDeleter, retryDelay time.Duration, logger *slog.Logger) {
	if msg == nil {
		logger.ErrorContext(ctx, "received nil message")
		return
	}
	var event events.ItemDeletedEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil || event.ItemID == uuid.Nil {
		logger.ErrorContext(ctx, "dropping malformed item event", "subject", msg.Subject(), "error", err)
		if err := msg.Term(); err != nil {
			logger.ErrorContext(ctx, "failed to terminate message", "error", err)
		}
		return
	}

	count, err := deleter.DeleteOptionsByParent(ctx, event.ItemID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete options of item", "item_id", event.ItemID, "error", err)
		if err := msg.NakWithDelay(retryDelay); err != nil {
			logger.ErrorContext(ctx, "failed to nack message", "error", err)
		}
		return
	}
	logger.InfoContext(ctx, "deleted options of removed item", "item_id", event.ItemID, "count", count)

	if err := msg.Ack(); err != nil {
		logger.ErrorContext(ctx, "failed to ack message", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
