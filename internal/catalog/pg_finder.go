package catalog

import (
	"context"
	"errors"
	"fmt"

	optionerrors "github.com/abgdnv/gocommerce/option_service/internal/errors"
	"github.com/abgdnv/gocommerce/option_service/internal/store/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgItemFinder reads items from the catalog table.
type PgItemFinder struct {
	q *db.Queries
}

func NewPgItemFinder(dbp *pgxpool.Pool) *PgItemFinder {
	return &PgItemFinder{q: db.New(dbp)}
}

func (f *PgItemFinder) FindActiveByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := f.q.FindItemByIDAndState(ctx, db.FindItemByIDAndStateParams{ID: id, State: StateEnable})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, optionerrors.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to find item by ID: %w", err)
	}
	return &Item{ID: item.ID, Name: item.Name, State: item.State}, nil
}
