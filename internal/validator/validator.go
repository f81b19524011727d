// Package validator provides payload validation for incoming messages.
package validator

import (
	"fmt"

	"github.com/jittakal/ringstore/internal/errors"
	"github.com/jittakal/ringstore/pkg/record"
)

// PayloadValidator checks that message payloads hold whole objects of one layout.
type PayloadValidator struct {
	layout record.Layout
}

// NewPayloadValidator creates a validator for the given layout.
func NewPayloadValidator(layout record.Layout) *PayloadValidator {
	return &PayloadValidator{layout: layout}
}

// Layout returns the layout payloads are checked against.
func (v *PayloadValidator) Layout() record.Layout {
	return v.layout
}

// Validate validates a message.
func (v *PayloadValidator) Validate(msg *record.Message) error {
	if msg.Stream.Topic == "" {
		return &errors.ValidationError{
			Stream: msg.Stream,
			Offset: msg.Offset,
			Reason: "stream topic is missing",
		}
	}

	if len(msg.Payload) == 0 {
		return &errors.ValidationError{
			Stream: msg.Stream,
			Offset: msg.Offset,
			Reason: "payload is empty",
		}
	}

	if name, ok := msg.Headers[record.LayoutHeader]; ok && name != v.layout.Name() {
		return &errors.ValidationError{
			Stream: msg.Stream,
			Offset: msg.Offset,
			Reason: fmt.Sprintf("layout %s does not match %s", name, v.layout.Name()),
		}
	}

	if size := v.layout.Size(); len(msg.Payload)%size != 0 {
		return &errors.ValidationError{
			Stream: msg.Stream,
			Offset: msg.Offset,
			Reason: fmt.Sprintf("payload of %d bytes is not a multiple of object size %d", len(msg.Payload), size),
		}
	}

	return nil
}

// Objects returns the number of objects in a validated payload.
func (v *PayloadValidator) Objects(msg *record.Message) int {
	return len(msg.Payload) / v.layout.Size()
}
