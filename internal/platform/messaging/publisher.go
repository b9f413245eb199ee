// Package messaging defines the events published by the option service and the publisher abstraction.
package messaging

import (
	"context"
)

const (
	VariantAddedSubject   = "options.variant.added"
	VariantUpdatedSubject = "options.variant.updated"
	OptionsDeletedSubject = "options.deleted"
	ItemDeletedSubject    = "items.deleted"
)

// OptionSubjects are the subjects the option service publishes to.
var OptionSubjects = []string{"options.>"}

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. It is used when messaging is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
