package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/gocommerce/option_service/internal/platform/messaging"
	"github.com/google/uuid"
)

// ItemDeletedEvent is published by the catalog when an item is removed.
type ItemDeletedEvent struct {
	ItemID    uuid.UUID `json:"item_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

func (e ItemDeletedEvent) Subject() string {
	return messaging.ItemDeletedSubject
}

func (e ItemDeletedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
