// Package service implements the option business logic: adding variants to item options,
// reading options back and updating a variant in place.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abgdnv/gocommerce/option_service/internal/catalog"
	optionerrors "github.com/abgdnv/gocommerce/option_service/internal/errors"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/config"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/messaging"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/messaging/events"
	"github.com/abgdnv/gocommerce/option_service/internal/store"
	"github.com/abgdnv/gocommerce/option_service/internal/store/db"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// OptionService defines the methods for managing item options and their variants.
type OptionService interface {
	// AddVariant attaches a (name, value) variant to an active item.
	// The first value for a name creates the option, later values extend it.
	// Returns ErrVariantConflict if the item already has the pair, ErrItemNotFound
	// if the item does not exist or is not active and ErrInvalidStock for a negative stock.
	AddVariant(ctx context.Context, itemID uuid.UUID, variant VariantCreateDto) (*OptionDto, error)

	// GetOption retrieves a single option by its ID.
	// Returns ErrOptionNotFound if no option exists with the given ID.
	GetOption(ctx context.Context, id uuid.UUID) (*OptionDto, error)

	// ListOptionsByParent returns all options of an item.
	// Returns ErrOptionNotFound when the item has none, unless empty lists are allowed.
	ListOptionsByParent(ctx context.Context, itemID uuid.UUID) ([]OptionDto, error)

	// UpdateVariant renames the option and sets the value and stock of the variants matching currentValue.
	// Returns ErrOptionNotFound if the option has no such value, ErrVariantConflict if the new value
	// is already used by another variant and ErrUpdateFailed if the option cannot be saved. An option
	// changed by another writer after it was read fails with ErrUpdateFailed wrapping ErrOptimisticLock.
	UpdateVariant(ctx context.Context, optionID uuid.UUID, currentValue string, update VariantUpdateDto) (*OptionDto, error)

	// DeleteOptionsByParent removes every option of an item and returns how many were removed.
	DeleteOptionsByParent(ctx context.Context, itemID uuid.UUID) (int64, error)
}

// Service implements OptionService.
type Service struct {
	store          store.Store
	items          catalog.ItemFinder
	publisher      messaging.Publisher
	logger         *slog.Logger
	allowEmptyList bool

	variantsAdded    metric.Int64Counter
	variantConflicts metric.Int64Counter
	variantsUpdated  metric.Int64Counter
}

// NewService creates a new instance of OptionService.
func NewService(st store.Store, items catalog.ItemFinder, publisher messaging.Publisher, cfg config.OptionsConfig, logger *slog.Logger) *Service {
	meter := otel.Meter("option-service")
	return &Service{
		store:            st,
		items:            items,
		publisher:        publisher,
		logger:           logger,
		allowEmptyList:   cfg.AllowEmptyList,
		variantsAdded:    mustCounter(meter, "option_variants_added", "Total number of variants added to options"),
		variantConflicts: mustCounter(meter, "option_variant_conflicts", "Total number of rejected duplicate variants"),
		variantsUpdated:  mustCounter(meter, "option_variants_updated", "Total number of variant updates"),
	}
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
	}
	return counter
}

// VariantCreateDto is the request to add a variant to an item.
type VariantCreateDto struct {
	Name  string `json:"name"  validate:"required,max=100"`
	Value string `json:"value" validate:"required,max=100"`
	Stock int64  `json:"stock" validate:"min=0"`
}

// VariantUpdateDto carries the new option name and the new value and stock of a variant.
type VariantUpdateDto struct {
	Name  string `json:"name"  validate:"required,max=100"`
	Value string `json:"value" validate:"required,max=100"`
	Stock int64  `json:"stock" validate:"min=0"`
}

// OptionDto represents an option with its variants in insertion order.
type OptionDto struct {
	ID       uuid.UUID    `json:"id"`
	ItemID   uuid.UUID    `json:"item_id"`
	Name     string       `json:"name"`
	Version  int32        `json:"version"`
	Variants []VariantDto `json:"variants"`
}

type VariantDto struct {
	Token uuid.UUID `json:"token"`
	Value string    `json:"value"`
	Stock int64     `json:"stock"`
}

func (s *Service) AddVariant(ctx context.Context, itemID uuid.UUID, variant VariantCreateDto) (*OptionDto, error) {
	if variant.Stock < 0 {
		return nil, fmt.Errorf("%w: value %q has stock %d", optionerrors.ErrInvalidStock, variant.Value, variant.Stock)
	}
	var saved *db.Option
	var created bool
	token := uuid.New()

	txErr := s.store.WithinTransaction(ctx, func(tx store.OptionStore) error {
		_, err := tx.FindByNameValueAndParent(ctx, variant.Name, variant.Value, itemID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: name: %s, value: %s, item id: %s",
				optionerrors.ErrVariantConflict, variant.Name, variant.Value, itemID)
		case !errors.Is(err, optionerrors.ErrOptionNotFound):
			return fmt.Errorf("failed to check for duplicate variant: %w", err)
		}

		if _, err := s.items.FindActiveByID(ctx, itemID); err != nil {
			if errors.Is(err, optionerrors.ErrItemNotFound) || errors.Is(err, optionerrors.ErrCatalogUnavailable) {
				return err
			}
			return fmt.Errorf("failed to look up item %s: %w", itemID, err)
		}

		newVariant := db.OptionVariant{Token: token, Value: variant.Value, Stock: variant.Stock}
		option, err := tx.FindByParentAndName(ctx, itemID, variant.Name)
		switch {
		case errors.Is(err, optionerrors.ErrOptionNotFound):
			created = true
			saved, err = tx.Save(ctx, &db.Option{
				ID:       uuid.New(),
				ItemID:   itemID,
				Name:     variant.Name,
				Variants: []db.OptionVariant{newVariant},
			})
			return err
		case err != nil:
			return fmt.Errorf("failed to find option %q of item %s: %w", variant.Name, itemID, err)
		}

		// only the new row is written, so concurrent updates of the option survive
		saved, err = tx.AddVariant(ctx, option.ID, newVariant)
		return err
	})
	if txErr != nil {
		if errors.Is(txErr, optionerrors.ErrUniqueViolation) {
			s.logger.InfoContext(ctx, "variant lost a concurrent write", "item_id", itemID, "name", variant.Name, "error", txErr)
			txErr = fmt.Errorf("%w: value already exists", optionerrors.ErrVariantConflict)
		}
		if errors.Is(txErr, optionerrors.ErrVariantConflict) {
			s.variantConflicts.Add(ctx, 1)
		}
		return nil, txErr
	}

	s.variantsAdded.Add(ctx, 1)
	s.publish(ctx, events.VariantAddedEvent{
		OptionID:   saved.ID,
		ItemID:     saved.ItemID,
		Name:       saved.Name,
		Value:      variant.Value,
		Token:      token,
		Stock:      variant.Stock,
		NewOption:  created,
		OccurredAt: time.Now().UTC(),
	})
	return toDto(saved), nil
}

func (s *Service) GetOption(ctx context.Context, id uuid.UUID) (*OptionDto, error) {
	option, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch option by ID %s: %w", id, err)
	}
	return toDto(option), nil
}

func (s *Service) ListOptionsByParent(ctx context.Context, itemID uuid.UUID) ([]OptionDto, error) {
	options, err := s.store.FindAllByParent(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch options of item %s: %w", itemID, err)
	}
	if len(options) == 0 && !s.allowEmptyList {
		return nil, fmt.Errorf("item %s has no options: %w", itemID, optionerrors.ErrOptionNotFound)
	}

	dtos := make([]OptionDto, len(options))
	for i := range options {
		dtos[i] = *toDto(&options[i])
	}
	return dtos, nil
}

func (s *Service) UpdateVariant(ctx context.Context, optionID uuid.UUID, currentValue string, update VariantUpdateDto) (*OptionDto, error) {
	if update.Stock < 0 {
		return nil, fmt.Errorf("%w: value %q has stock %d", optionerrors.ErrInvalidStock, update.Value, update.Stock)
	}
	var saved *db.Option

	txErr := s.store.WithinTransaction(ctx, func(tx store.OptionStore) error {
		option, err := tx.FindByIDAndVariantValue(ctx, optionID, currentValue)
		if err != nil {
			if errors.Is(err, optionerrors.ErrOptionNotFound) {
				return fmt.Errorf("option %s has no value %q: %w", optionID, currentValue, err)
			}
			return fmt.Errorf("%w: %w", optionerrors.ErrUpdateFailed, err)
		}

		if update.Value != currentValue && hasValue(option, update.Value) {
			return fmt.Errorf("%w: value: %s, option id: %s", optionerrors.ErrVariantConflict, update.Value, optionID)
		}

		option.Name = update.Name
		for i := range option.Variants {
			if option.Variants[i].Value != currentValue {
				continue
			}
			option.Variants[i].Stock = update.Stock
			if update.Value != currentValue {
				option.Variants[i].Value = update.Value
			}
		}

		saved, err = tx.Save(ctx, option)
		if err != nil {
			return fmt.Errorf("%w: %w", optionerrors.ErrUpdateFailed, err)
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, optionerrors.ErrOptimisticLock) {
			s.logger.InfoContext(ctx, "option changed during update", "option_id", optionID, "error", txErr)
		}
		if errors.Is(txErr, optionerrors.ErrOptionNotFound) || errors.Is(txErr, optionerrors.ErrVariantConflict) ||
			errors.Is(txErr, optionerrors.ErrUpdateFailed) {
			return nil, txErr
		}
		return nil, fmt.Errorf("%w: %w", optionerrors.ErrUpdateFailed, txErr)
	}

	s.variantsUpdated.Add(ctx, 1)
	s.publish(ctx, events.VariantUpdatedEvent{
		OptionID:      saved.ID,
		ItemID:        saved.ItemID,
		Name:          saved.Name,
		PreviousValue: currentValue,
		Value:         update.Value,
		Stock:         update.Stock,
		OccurredAt:    time.Now().UTC(),
	})
	return toDto(saved), nil
}

func (s *Service) DeleteOptionsByParent(ctx context.Context, itemID uuid.UUID) (int64, error) {
	count, err := s.store.DeleteAllByParent(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete options of item %s: %w", itemID, err)
	}
	if count > 0 {
		s.publish(ctx, events.OptionsDeletedEvent{ItemID: itemID, Count: count, OccurredAt: time.Now().UTC()})
	}
	return count, nil
}

// publish sends the event after the change is committed. Failures are logged and never returned.
func (s *Service) publish(ctx context.Context, event messaging.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "subject", event.Subject(), "error", err)
	}
}

func hasValue(option *db.Option, value string) bool {
	for _, v := range option.Variants {
		if v.Value == value {
			return true
		}
	}
	return false
}

func toDto(option *db.Option) *OptionDto {
	variants := make([]VariantDto, len(option.Variants))
	for i, v := range option.Variants {
		variants[i] = VariantDto{Token: v.Token, Value: v.Value, Stock: v.Stock}
	}
	return &OptionDto{
		ID:       option.ID,
		ItemID:   option.ItemID,
		Name:     option.Name,
		Version:  option.Version,
		Variants: variants,
	}
}
