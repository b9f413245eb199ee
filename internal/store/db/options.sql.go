package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Options are always read joined with their variants, one row per variant.
const optionColumns = `o.id, o.item_id, o.name, o.version, o.created_at, o.updated_at, v.token, v.value, v.stock`

const optionJoin = `FROM options o JOIN option_variants v ON v.option_id = o.id`

const findOptionByID = `SELECT ` + optionColumns + ` ` + optionJoin + `
WHERE o.id = $1
ORDER BY v.position, v.token`

func (q *Queries) FindOptionByID(ctx context.Context, id uuid.UUID) (Option, error) {
	return q.queryOne(ctx, findOptionByID, id)
}

const findOptionByItemAndName = `SELECT ` + optionColumns + ` ` + optionJoin + `
WHERE o.item_id = $1 AND o.name = $2
ORDER BY v.position, v.token`

type FindOptionByItemAndNameParams struct {
	ItemID uuid.UUID
	Name   string
}

func (q *Queries) FindOptionByItemAndName(ctx context.Context, arg FindOptionByItemAndNameParams) (Option, error) {
	return q.queryOne(ctx, findOptionByItemAndName, arg.ItemID, arg.Name)
}

const findOptionsByItemID = `SELECT ` + optionColumns + ` ` + optionJoin + `
WHERE o.item_id = $1
ORDER BY o.created_at, o.id, v.position, v.token`

func (q *Queries) FindOptionsByItemID(ctx context.Context, itemID uuid.UUID) ([]Option, error) {
	rows, err := q.db.Query(ctx, findOptionsByItemID, itemID)
	if err != nil {
		return nil, err
	}
	return collectOptions(rows)
}

const findOptionByNameValueAndItem = `SELECT ` + optionColumns + ` ` + optionJoin + `
WHERE o.item_id = $1 AND o.name = $2
  AND EXISTS (SELECT 1 FROM option_variants x WHERE x.option_id = o.id AND x.value = $3)
ORDER BY v.position, v.token`

type FindOptionByNameValueAndItemParams struct {
	ItemID uuid.UUID
	Name   string
	Value  string
}

func (q *Queries) FindOptionByNameValueAndItem(ctx context.Context, arg FindOptionByNameValueAndItemParams) (Option, error) {
	return q.queryOne(ctx, findOptionByNameValueAndItem, arg.ItemID, arg.Name, arg.Value)
}

const findOptionByIDAndVariantValue = `SELECT ` + optionColumns + ` ` + optionJoin + `
WHERE o.id = $1
  AND EXISTS (SELECT 1 FROM option_variants x WHERE x.option_id = o.id AND x.value = $2)
ORDER BY v.position, v.token`

type FindOptionByIDAndVariantValueParams struct {
	ID    uuid.UUID
	Value string
}

func (q *Queries) FindOptionByIDAndVariantValue(ctx context.Context, arg FindOptionByIDAndVariantValueParams) (Option, error) {
	return q.queryOne(ctx, findOptionByIDAndVariantValue, arg.ID, arg.Value)
}

const insertOption = `INSERT INTO options (id, item_id, name)
VALUES ($1, $2, $3)`

type InsertOptionParams struct {
	ID     uuid.UUID
	ItemID uuid.UUID
	Name   string
}

func (q *Queries) InsertOption(ctx context.Context, arg InsertOptionParams) error {
	_, err := q.db.Exec(ctx, insertOption, arg.ID, arg.ItemID, arg.Name)
	return err
}

// updateOptionName only matches while the row still carries the version the caller read.
const updateOptionName = `UPDATE options
SET name = $2,
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND version = $3`

type UpdateOptionNameParams struct {
	ID      uuid.UUID
	Name    string
	Version int32
}

func (q *Queries) UpdateOptionName(ctx context.Context, arg UpdateOptionNameParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateOptionName, arg.ID, arg.Name, arg.Version)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// touchOption bumps the version and holds the row lock until the transaction ends,
// which serializes variant inserts into the same option.
const touchOption = `UPDATE options
SET version = version + 1,
    updated_at = now()
WHERE id = $1`

func (q *Queries) TouchOption(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, touchOption, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const insertVariant = `INSERT INTO option_variants (token, option_id, value, stock, position)
SELECT $1, $2, $3, $4, COALESCE(MAX(position), -1) + 1
FROM option_variants
WHERE option_id = $2`

type InsertVariantParams struct {
	Token    uuid.UUID
	OptionID uuid.UUID
	Value    string
	Stock    int64
}

func (q *Queries) InsertVariant(ctx context.Context, arg InsertVariantParams) error {
	_, err := q.db.Exec(ctx, insertVariant, arg.Token, arg.OptionID, arg.Value, arg.Stock)
	return err
}

const updateVariant = `UPDATE option_variants
SET value = $3,
    stock = $4
WHERE token = $1 AND option_id = $2`

type UpdateVariantParams struct {
	Token    uuid.UUID
	OptionID uuid.UUID
	Value    string
	Stock    int64
}

func (q *Queries) UpdateVariant(ctx context.Context, arg UpdateVariantParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateVariant, arg.Token, arg.OptionID, arg.Value, arg.Stock)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteOptionsByItemID = `DELETE FROM options WHERE item_id = $1`

func (q *Queries) DeleteOptionsByItemID(ctx context.Context, itemID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteOptionsByItemID, itemID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const findItemByIDAndState = `SELECT id, name, state FROM items WHERE id = $1 AND state = $2`

type FindItemByIDAndStateParams struct {
	ID    uuid.UUID
	State string
}

func (q *Queries) FindItemByIDAndState(ctx context.Context, arg FindItemByIDAndStateParams) (Item, error) {
	var i Item
	err := q.db.QueryRow(ctx, findItemByIDAndState, arg.ID, arg.State).Scan(&i.ID, &i.Name, &i.State)
	return i, err
}

// queryOne runs a single-option query and returns pgx.ErrNoRows when nothing matched.
func (q *Queries) queryOne(ctx context.Context, sql string, args ...interface{}) (Option, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return Option{}, err
	}
	options, err := collectOptions(rows)
	if err != nil {
		return Option{}, err
	}
	if len(options) == 0 {
		return Option{}, pgx.ErrNoRows
	}
	return options[0], nil
}

// collectOptions folds joined option/variant rows into options, preserving row order.
func collectOptions(rows pgx.Rows) ([]Option, error) {
	defer rows.Close()

	options := make([]Option, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var o Option
		var v OptionVariant
		if err := rows.Scan(&o.ID, &o.ItemID, &o.Name, &o.Version, &o.CreatedAt, &o.UpdatedAt,
			&v.Token, &v.Value, &v.Stock); err != nil {
			return nil, err
		}
		i, ok := index[o.ID]
		if !ok {
			i = len(options)
			index[o.ID] = i
			options = append(options, o)
		}
		options[i].Variants = append(options[i].Variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return options, nil
}
