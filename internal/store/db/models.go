package db

import (
	"time"

	"github.com/google/uuid"
)

// Option is a named attribute of a catalog item together with its variants.
type Option struct {
	ID        uuid.UUID
	ItemID    uuid.UUID
	Name      string
	Version   int32
	CreatedAt time.Time
	UpdatedAt time.Time
	Variants  []OptionVariant
}

// OptionVariant is one selectable value of an option. Token is stable across renames of Value.
type OptionVariant struct {
	Token uuid.UUID
	Value string
	Stock int64
}

// Item is the read-only projection of a catalog item.
type Item struct {
	ID    uuid.UUID
	Name  string
	State string
}

// Clone returns a deep copy of the option, variants included.
func (o Option) Clone() Option {
	c := o
	c.Variants = make([]OptionVariant, len(o.Variants))
	copy(c.Variants, o.Variants)
	return c
}
