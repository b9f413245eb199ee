// Package catalog resolves the parent items options are attached to.
// Items are owned by the catalog; this package only reads them.
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Item states as written by the catalog.
const (
	StateEnable  = "enable"
	StateDisable = "disable"
)

// Item is a catalog item as seen by the option service.
type Item struct {
	ID    uuid.UUID
	Name  string
	State string
}

// Active reports whether the item accepts new options.
func (i Item) Active() bool {
	return i.State == StateEnable
}

// ItemFinder looks up catalog items.
type ItemFinder interface {
	// FindActiveByID returns the item if it exists and is enabled.
	// Returns ErrItemNotFound otherwise.
	FindActiveByID(ctx context.Context, id uuid.UUID) (*Item, error)
}
