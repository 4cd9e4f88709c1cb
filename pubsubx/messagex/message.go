package messagex

import (
	"maps"

	"github.com/segmentio/ksuid"
)

// IDAttributeKey carries the client generated id of a published message.
const IDAttributeKey = "_clinia_message_id"

// Message is a message as sent to the emulator publish endpoint.
type Message struct {
	ID         string
	Attributes map[string]string
	Data       []byte
}

// NewMessage creates a new Message with the given payload and options.
// A ksuid is generated for the message unless WithID is given.
func NewMessage(payload []byte, opts ...newMessageOption) *Message {
	o := newMessageOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.id == "" {
		o.id = ksuid.New().String()
	}

	attrs := make(map[string]string, len(o.attributes)+1)
	maps.Copy(attrs, o.attributes)
	attrs[IDAttributeKey] = o.id

	return &Message{
		ID:         o.id,
		Attributes: attrs,
		Data:       payload,
	}
}

type newMessageOptions struct {
	id         string
	attributes map[string]string
}

type newMessageOption func(*newMessageOptions)

// WithID sets the ID of the message.
func WithID(id string) newMessageOption {
	return func(o *newMessageOptions) {
		o.id = id
	}
}

// WithAttributes sets additional attributes on the message.
func WithAttributes(attributes map[string]string) newMessageOption {
	return func(o *newMessageOptions) {
		o.attributes = attributes
	}
}

func (m *Message) Copy() *Message {
	data := make([]byte, len(m.Data))
	copy(data, m.Data)

	return &Message{
		ID:         m.ID,
		Attributes: maps.Clone(m.Attributes),
		Data:       data,
	}
}
