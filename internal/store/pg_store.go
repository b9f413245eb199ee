package store

import (
	"context"
	"errors"
	"fmt"

	optionerrors "github.com/abgdnv/gocommerce/option_service/internal/errors"
	"github.com/abgdnv/gocommerce/option_service/internal/store/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes raised by PostgreSQL for constraint violations.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// PgStore implements Store using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool // nil when the store is bound to a transaction
	q  *db.Queries
}

// NewPgStore creates a new instance of Store using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db: dbp,
		q:  db.New(dbp),
	}
}

// FindByID retrieves an option by its unique identifier.
// Returns ErrOptionNotFound if no option exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*db.Option, error) {
	option, err := p.q.FindOptionByID(ctx, id)
	return found(option, err, "failed to find option by ID")
}

// FindByParentAndName retrieves the option of an item with the given name.
func (p *PgStore) FindByParentAndName(ctx context.Context, itemID uuid.UUID, name string) (*db.Option, error) {
	option, err := p.q.FindOptionByItemAndName(ctx, db.FindOptionByItemAndNameParams{ItemID: itemID, Name: name})
	return found(option, err, "failed to find option by item and name")
}

// FindAllByParent retrieves all options of an item.
// It returns a slice of options, which may be empty if the item has none.
func (p *PgStore) FindAllByParent(ctx context.Context, itemID uuid.UUID) ([]db.Option, error) {
	options, err := p.q.FindOptionsByItemID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to find options by item: %w", err)
	}
	return options, nil
}

// FindByNameValueAndParent retrieves the option of an item holding the (name, value) pair.
func (p *PgStore) FindByNameValueAndParent(ctx context.Context, name, value string, itemID uuid.UUID) (*db.Option, error) {
	option, err := p.q.FindOptionByNameValueAndItem(ctx, db.FindOptionByNameValueAndItemParams{
		ItemID: itemID,
		Name:   name,
		Value:  value,
	})
	return found(option, err, "failed to find option by name, value and item")
}

// FindByIDAndVariantValue retrieves the option with the given ID if it holds the given variant value.
func (p *PgStore) FindByIDAndVariantValue(ctx context.Context, id uuid.UUID, value string) (*db.Option, error) {
	option, err := p.q.FindOptionByIDAndVariantValue(ctx, db.FindOptionByIDAndVariantValueParams{ID: id, Value: value})
	return found(option, err, "failed to find option by ID and variant value")
}

// DeleteAllByParent removes every option of an item. Variants are removed by the foreign key cascade.
func (p *PgStore) DeleteAllByParent(ctx context.Context, itemID uuid.UUID) (int64, error) {
	count, err := p.q.DeleteOptionsByItemID(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete options by item: %w", err)
	}
	return count, nil
}

// Save inserts a new option (Version 0) or updates an existing one. Updates only apply
// while the stored row still has option.Version, otherwise ErrOptimisticLock is returned.
// Outside a transaction the writes are wrapped in one.
func (p *PgStore) Save(ctx context.Context, option *db.Option) (*db.Option, error) {
	return p.inTransaction(ctx, func(q *db.Queries) (*db.Option, error) {
		if option.Version == 0 {
			return p.insert(ctx, q, option)
		}
		return p.update(ctx, q, option)
	})
}

// AddVariant appends a variant to an existing option without touching its name or
// the other variants. The position is assigned by the database.
func (p *PgStore) AddVariant(ctx context.Context, optionID uuid.UUID, variant db.OptionVariant) (*db.Option, error) {
	return p.inTransaction(ctx, func(q *db.Queries) (*db.Option, error) {
		rows, err := q.TouchOption(ctx, optionID)
		if err != nil {
			return nil, saveError(err)
		}
		if rows == 0 {
			return nil, optionerrors.ErrOptionNotFound
		}
		if err := insertVariant(ctx, q, optionID, variant); err != nil {
			return nil, err
		}
		return reload(ctx, q, optionID)
	})
}

func (p *PgStore) insert(ctx context.Context, q *db.Queries, option *db.Option) (*db.Option, error) {
	err := q.InsertOption(ctx, db.InsertOptionParams{
		ID:     option.ID,
		ItemID: option.ItemID,
		Name:   option.Name,
	})
	if err != nil {
		return nil, saveError(err)
	}
	for _, variant := range option.Variants {
		if err := insertVariant(ctx, q, option.ID, variant); err != nil {
			return nil, err
		}
	}
	return reload(ctx, q, option.ID)
}

func (p *PgStore) update(ctx context.Context, q *db.Queries, option *db.Option) (*db.Option, error) {
	rows, err := q.UpdateOptionName(ctx, db.UpdateOptionNameParams{
		ID:      option.ID,
		Name:    option.Name,
		Version: option.Version,
	})
	if err != nil {
		return nil, saveError(err)
	}
	if rows == 0 {
		if _, findErr := q.FindOptionByID(ctx, option.ID); findErr != nil {
			if errors.Is(findErr, pgx.ErrNoRows) {
				return nil, optionerrors.ErrOptionNotFound
			}
			return nil, fmt.Errorf("%w: %w", optionerrors.ErrSaveOption, findErr)
		}
		return nil, optionerrors.ErrOptimisticLock
	}
	for _, variant := range option.Variants {
		rows, err := q.UpdateVariant(ctx, db.UpdateVariantParams{
			Token:    variant.Token,
			OptionID: option.ID,
			Value:    variant.Value,
			Stock:    variant.Stock,
		})
		if err != nil {
			return nil, saveError(err)
		}
		if rows == 0 {
			if err := insertVariant(ctx, q, option.ID, variant); err != nil {
				return nil, err
			}
		}
	}
	return reload(ctx, q, option.ID)
}

func insertVariant(ctx context.Context, q *db.Queries, optionID uuid.UUID, variant db.OptionVariant) error {
	err := q.InsertVariant(ctx, db.InsertVariantParams{
		Token:    variant.Token,
		OptionID: optionID,
		Value:    variant.Value,
		Stock:    variant.Stock,
	})
	if err != nil {
		return saveError(err)
	}
	return nil
}

func reload(ctx context.Context, q *db.Queries, id uuid.UUID) (*db.Option, error) {
	saved, err := q.FindOptionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", optionerrors.ErrSaveOption, err)
	}
	return &saved, nil
}

// inTransaction runs fn on the bound transaction, or on a new one when the store is not bound.
func (p *PgStore) inTransaction(ctx context.Context, fn func(q *db.Queries) (*db.Option, error)) (*db.Option, error) {
	if p.db == nil {
		return fn(p.q)
	}
	var saved *db.Option
	txErr := p.withTransaction(ctx, func(qtx *db.Queries) error {
		var err error
		saved, err = fn(qtx)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}
	return saved, nil
}

// WithinTransaction runs fn against a store bound to a new transaction.
// Calls on a store that is already bound to a transaction join it.
func (p *PgStore) WithinTransaction(ctx context.Context, fn func(OptionStore) error) error {
	if p.db == nil {
		return fn(p)
	}
	return p.withTransaction(ctx, func(qtx *db.Queries) error {
		return fn(&PgStore{q: qtx})
	})
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(qtx *db.Queries) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", optionerrors.ErrTransactionBegin, err)
	}
	qtx := p.q.WithTx(tx)

	err = fn(qtx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: %w", optionerrors.ErrTransactionRollback, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %w", optionerrors.ErrUniqueViolation, err)
		}
		return fmt.Errorf("%w: %w", optionerrors.ErrTransactionCommit, err)
	}

	return nil
}

// found maps pgx.ErrNoRows to ErrOptionNotFound and wraps any other error.
func found(option db.Option, err error, msg string) (*db.Option, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, optionerrors.ErrOptionNotFound
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	return &option, nil
}

func saveError(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", optionerrors.ErrUniqueViolation, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
		return fmt.Errorf("%w: %w", optionerrors.ErrInvalidStock, err)
	}
	return fmt.Errorf("%w: %w", optionerrors.ErrSaveOption, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
