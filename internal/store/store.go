// Package store provides an interface for option storage operations.
package store

import (
	"context"

	"github.com/abgdnv/gocommerce/option_service/internal/store/db"
	"github.com/google/uuid"
)

// OptionStore is an interface for option storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type OptionStore interface {
	// FindByID retrieves a single option with its variants.
	// Returns ErrOptionNotFound if no option exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*db.Option, error)

	// FindByParentAndName retrieves the option of an item with the given name.
	// Returns ErrOptionNotFound if the item has no such option.
	FindByParentAndName(ctx context.Context, itemID uuid.UUID, name string) (*db.Option, error)

	// FindAllByParent returns all options of an item.
	// Returns an empty slice if the item has no options.
	FindAllByParent(ctx context.Context, itemID uuid.UUID) ([]db.Option, error)

	// FindByNameValueAndParent retrieves the option of an item that already holds the (name, value) pair.
	// Returns ErrOptionNotFound if no such option exists.
	FindByNameValueAndParent(ctx context.Context, name, value string, itemID uuid.UUID) (*db.Option, error)

	// FindByIDAndVariantValue retrieves the option with the given ID if it holds a variant with the given value.
	// Returns ErrOptionNotFound otherwise.
	FindByIDAndVariantValue(ctx context.Context, id uuid.UUID, value string) (*db.Option, error)

	// DeleteAllByParent removes every option of an item and returns how many were removed.
	DeleteAllByParent(ctx context.Context, itemID uuid.UUID) (int64, error)

	// Save inserts the option with its variants when option.Version is 0. Otherwise it updates
	// the name and the given variants, provided the stored option still has option.Version.
	// Returns ErrUniqueViolation if (item, name) or (option, value) is already taken and
	// ErrOptimisticLock if the option changed since it was read.
	Save(ctx context.Context, option *db.Option) (*db.Option, error)

	// AddVariant appends a variant after the existing ones, leaving the rest of the option as stored.
	// Returns ErrOptionNotFound if the option is gone and ErrUniqueViolation if the value is taken.
	AddVariant(ctx context.Context, optionID uuid.UUID, variant db.OptionVariant) (*db.Option, error)
}

// Transactor runs a unit of work atomically.
type Transactor interface {
	// WithinTransaction calls fn with a store bound to a single transaction.
	// The transaction is committed if fn returns nil and rolled back otherwise.
	WithinTransaction(ctx context.Context, fn func(OptionStore) error) error
}

// Store is an OptionStore that also supports transactions.
type Store interface {
	OptionStore
	Transactor
}
