package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	optionerrors "github.com/abgdnv/gocommerce/option_service/internal/errors"
	"github.com/abgdnv/gocommerce/option_service/internal/store/db"
	"github.com/google/uuid"
)

// InMemoryStore implements Store using an in-memory map.
// Transactions work on a private copy and replay their writes on commit, where the
// unique rules and version checks are evaluated again against the committed state.
type InMemoryStore struct {
	mu    sync.RWMutex
	state memState
	now   func() time.Time
}

type memState struct {
	options map[uuid.UUID]db.Option
	order   []uuid.UUID // insertion order of options
}

// NewInMemoryStore creates a new, empty instance of InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		state: memState{options: make(map[uuid.UUID]db.Option)},
		now:   time.Now,
	}
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*db.Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findByID(id)
}

func (s *InMemoryStore) FindByParentAndName(_ context.Context, itemID uuid.UUID, name string) (*db.Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findByParentAndName(itemID, name)
}

func (s *InMemoryStore) FindAllByParent(_ context.Context, itemID uuid.UUID) ([]db.Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findAllByParent(itemID), nil
}

func (s *InMemoryStore) FindByNameValueAndParent(_ context.Context, name, value string, itemID uuid.UUID) (*db.Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findByNameValueAndParent(name, value, itemID)
}

func (s *InMemoryStore) FindByIDAndVariantValue(_ context.Context, id uuid.UUID, value string) (*db.Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findByIDAndVariantValue(id, value)
}

func (s *InMemoryStore) DeleteAllByParent(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	err := s.WithinTransaction(ctx, func(tx OptionStore) error {
		var err error
		count, err = tx.DeleteAllByParent(ctx, itemID)
		return err
	})
	return count, err
}

func (s *InMemoryStore) Save(ctx context.Context, option *db.Option) (*db.Option, error) {
	err := s.WithinTransaction(ctx, func(tx OptionStore) error {
		_, err := tx.Save(ctx, option)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, option.ID)
}

func (s *InMemoryStore) AddVariant(ctx context.Context, optionID uuid.UUID, variant db.OptionVariant) (*db.Option, error) {
	err := s.WithinTransaction(ctx, func(tx OptionStore) error {
		_, err := tx.AddVariant(ctx, optionID, variant)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, optionID)
}

// WithinTransaction runs fn against a private copy of the store. On success the
// recorded writes are replayed on the latest committed state, so the unique rules
// and the version checks are evaluated again against concurrent commits.
func (s *InMemoryStore) WithinTransaction(ctx context.Context, fn func(OptionStore) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", optionerrors.ErrTransactionBegin, err)
	}
	s.mu.RLock()
	tx := &memTx{
		state: s.state.clone(),
		now:   s.now,
	}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *InMemoryStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	for _, op := range tx.ops {
		if err := op(&next); err != nil {
			return err
		}
	}
	s.state = next
	return nil
}

// memTx is an OptionStore bound to one in-memory transaction.
type memTx struct {
	state memState
	ops   []func(*memState) error // writes to replay at commit
	now   func() time.Time
}

func (t *memTx) FindByID(_ context.Context, id uuid.UUID) (*db.Option, error) {
	return t.state.findByID(id)
}

func (t *memTx) FindByParentAndName(_ context.Context, itemID uuid.UUID, name string) (*db.Option, error) {
	return t.state.findByParentAndName(itemID, name)
}

func (t *memTx) FindAllByParent(_ context.Context, itemID uuid.UUID) ([]db.Option, error) {
	return t.state.findAllByParent(itemID), nil
}

func (t *memTx) FindByNameValueAndParent(_ context.Context, name, value string, itemID uuid.UUID) (*db.Option, error) {
	return t.state.findByNameValueAndParent(name, value, itemID)
}

func (t *memTx) FindByIDAndVariantValue(_ context.Context, id uuid.UUID, value string) (*db.Option, error) {
	return t.state.findByIDAndVariantValue(id, value)
}

func (t *memTx) DeleteAllByParent(_ context.Context, itemID uuid.UUID) (int64, error) {
	count := t.state.deleteByParent(itemID)
	t.record(func(m *memState) error {
		m.deleteByParent(itemID)
		return nil
	})
	return count, nil
}

func (t *memTx) Save(_ context.Context, option *db.Option) (*db.Option, error) {
	now := t.now()
	o := option.Clone()
	write := (*memState).insert
	if o.Version != 0 {
		write = (*memState).update
	}
	saved, err := write(&t.state, o, now)
	if err != nil {
		return nil, err
	}
	t.record(func(m *memState) error {
		_, err := write(m, o, now)
		return err
	})
	return &saved, nil
}

func (t *memTx) AddVariant(_ context.Context, optionID uuid.UUID, variant db.OptionVariant) (*db.Option, error) {
	now := t.now()
	saved, err := t.state.appendVariant(optionID, variant, now)
	if err != nil {
		return nil, err
	}
	t.record(func(m *memState) error {
		_, err := m.appendVariant(optionID, variant, now)
		return err
	})
	return &saved, nil
}

// WithinTransaction joins the current transaction.
func (t *memTx) WithinTransaction(_ context.Context, fn func(OptionStore) error) error {
	return fn(t)
}

func (t *memTx) record(op func(*memState) error) {
	t.ops = append(t.ops, op)
}

// insert stores a new option at version 1.
func (m *memState) insert(o db.Option, now time.Time) (db.Option, error) {
	if _, ok := m.options[o.ID]; ok {
		return db.Option{}, fmt.Errorf("%w: option %s already exists", optionerrors.ErrUniqueViolation, o.ID)
	}
	next := o.Clone()
	next.Version = 1
	next.CreatedAt = now
	next.UpdatedAt = now
	if err := m.put(next); err != nil {
		return db.Option{}, err
	}
	return next.Clone(), nil
}

// update applies the name and the variants of o, matched by token, while the stored
// option still has o.Version. Stored variants missing from o are kept.
func (m *memState) update(o db.Option, now time.Time) (db.Option, error) {
	stored, ok := m.options[o.ID]
	if !ok {
		return db.Option{}, optionerrors.ErrOptionNotFound
	}
	if stored.Version != o.Version {
		return db.Option{}, fmt.Errorf("%w: option %s is at version %d, not %d",
			optionerrors.ErrOptimisticLock, o.ID, stored.Version, o.Version)
	}
	next := stored.Clone()
	next.Name = o.Name
	for _, v := range o.Variants {
		i := slices.IndexFunc(next.Variants, func(x db.OptionVariant) bool { return x.Token == v.Token })
		if i < 0 {
			next.Variants = append(next.Variants, v)
			continue
		}
		next.Variants[i].Value = v.Value
		next.Variants[i].Stock = v.Stock
	}
	next.Version++
	next.UpdatedAt = now
	if err := m.put(next); err != nil {
		return db.Option{}, err
	}
	return next.Clone(), nil
}

// appendVariant adds v after the stored variants of the option and bumps its version.
func (m *memState) appendVariant(id uuid.UUID, v db.OptionVariant, now time.Time) (db.Option, error) {
	stored, ok := m.options[id]
	if !ok {
		return db.Option{}, optionerrors.ErrOptionNotFound
	}
	next := stored.Clone()
	next.Variants = append(next.Variants, v)
	next.Version++
	next.UpdatedAt = now
	if err := m.put(next); err != nil {
		return db.Option{}, err
	}
	return next.Clone(), nil
}

func (m *memState) deleteByParent(itemID uuid.UUID) int64 {
	var count int64
	for _, o := range m.findAllByParent(itemID) {
		m.remove(o.ID)
		count++
	}
	return count
}

func (m memState) clone() memState {
	c := memState{
		options: make(map[uuid.UUID]db.Option, len(m.options)),
		order:   slices.Clone(m.order),
	}
	for id, o := range m.options {
		c.options[id] = o.Clone()
	}
	return c
}

// put checks the column and unique constraints and then stores o.
func (m *memState) put(o db.Option) error {
	for _, v := range o.Variants {
		if v.Stock < 0 {
			return fmt.Errorf("%w: value %q has stock %d", optionerrors.ErrInvalidStock, v.Value, v.Stock)
		}
	}
	if err := m.checkUnique(o); err != nil {
		return fmt.Errorf("%w: %w", optionerrors.ErrUniqueViolation, err)
	}
	if _, ok := m.options[o.ID]; !ok {
		m.order = append(m.order, o.ID)
	}
	m.options[o.ID] = o
	return nil
}

func (m *memState) remove(id uuid.UUID) {
	if _, ok := m.options[id]; !ok {
		return
	}
	delete(m.options, id)
	m.order = slices.DeleteFunc(m.order, func(x uuid.UUID) bool { return x == id })
}

// checkUnique enforces UNIQUE (item_id, name) across options and UNIQUE (option_id, value) within o.
func (m memState) checkUnique(o db.Option) error {
	values := make(map[string]struct{}, len(o.Variants))
	for _, v := range o.Variants {
		if _, dup := values[v.Value]; dup {
			return fmt.Errorf("option %s already has value %q", o.ID, v.Value)
		}
		values[v.Value] = struct{}{}
	}
	for id, other := range m.options {
		if id != o.ID && other.ItemID == o.ItemID && other.Name == o.Name {
			return fmt.Errorf("item %s already has option %q", o.ItemID, o.Name)
		}
	}
	return nil
}

func (m memState) findByID(id uuid.UUID) (*db.Option, error) {
	o, ok := m.options[id]
	if !ok {
		return nil, optionerrors.ErrOptionNotFound
	}
	c := o.Clone()
	return &c, nil
}

func (m memState) findByParentAndName(itemID uuid.UUID, name string) (*db.Option, error) {
	for _, id := range m.order {
		o := m.options[id]
		if o.ItemID == itemID && o.Name == name {
			c := o.Clone()
			return &c, nil
		}
	}
	return nil, optionerrors.ErrOptionNotFound
}

func (m memState) findAllByParent(itemID uuid.UUID) []db.Option {
	list := make([]db.Option, 0)
	for _, id := range m.order {
		if o := m.options[id]; o.ItemID == itemID {
			list = append(list, o.Clone())
		}
	}
	return list
}

func (m memState) findByNameValueAndParent(name, value string, itemID uuid.UUID) (*db.Option, error) {
	o, err := m.findByParentAndName(itemID, name)
	if err != nil {
		return nil, err
	}
	if !hasValue(o, value) {
		return nil, optionerrors.ErrOptionNotFound
	}
	return o, nil
}

func (m memState) findByIDAndVariantValue(id uuid.UUID, value string) (*db.Option, error) {
	o, err := m.findByID(id)
	if err != nil {
		return nil, err
	}
	if !hasValue(o, value) {
		return nil, optionerrors.ErrOptionNotFound
	}
	return o, nil
}

func hasValue(o *db.Option, value string) bool {
	return slices.ContainsFunc(o.Variants, func(v db.OptionVariant) bool { return v.Value == value })
}
