// Package events holds the JSON payloads exchanged over the message broker.
package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/gocommerce/option_service/internal/platform/messaging"
	"github.com/google/uuid"
)

type VariantAddedEvent struct {
	OptionID   uuid.UUID `json:"option_id"`
	ItemID     uuid.UUID `json:"item_id"`
	Name       string    `json:"name"`
	Value      string    `json:"value"`
	Token      uuid.UUID `json:"token"`
	Stock      int64     `json:"stock"`
	NewOption  bool      `json:"new_option"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e VariantAddedEvent) Subject() string {
	return messaging.VariantAddedSubject
}

func (e VariantAddedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

type VariantUpdatedEvent struct {
	OptionID      uuid.UUID `json:"option_id"`
	ItemID        uuid.UUID `json:"item_id"`
	Name          string    `json:"name"`
	PreviousValue string    `json:"previous_value"`
	Value         string    `json:"value"`
	Stock         int64     `json:"stock"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e VariantUpdatedEvent) Subject() string {
	return messaging.VariantUpdatedSubject
}

func (e VariantUpdatedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

type OptionsDeletedEvent struct {
	ItemID     uuid.UUID `json:"item_id"`
	Count      int64     `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e OptionsDeletedEvent) Subject() string {
	return messaging.OptionsDeletedSubject
}

func (e OptionsDeletedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
