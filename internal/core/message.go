package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// TimestampLayout is the ISO-8601 form used for Envelope timestamps.
// The wire form has millisecond precision; see stamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Class tells subscribers who produced a message.
type Class string

const (
	// ClassUser marks client-submitted content.
	ClassUser Class = proto.TypeUser
	// ClassBot marks server-synthesized greetings.
	ClassBot Class = proto.TypeBot
	// ClassSystem marks join/leave notices.
	ClassSystem Class = proto.TypeSystem
)

// Valid reports whether c is a known message class.
func (c Class) Valid() bool {
	switch c {
	case ClassUser, ClassBot, ClassSystem:
		return true
	default:
		return false
	}
}

// Envelope is the domain model for a chat message after the server stamped it.
type Envelope struct {
	ID        string
	Sender    string
	Text      string
	CreatedAt time.Time
	Class     Class
}

// Delivery is one Envelope together with its serialized form.
// Payload is shared by every subscriber and must not be modified.
type Delivery struct {
	Envelope Envelope
	Payload  []byte
}

// Codec stamps and serializes envelopes.
type Codec struct {
	newID func() string
	now   func() time.Time
}

// NewCodec returns a codec with random UUID ids and the wall clock.
func NewCodec() *Codec {
	return &Codec{
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Encode validates sender and text and wraps them into a fresh Envelope.
func (c *Codec) Encode(class Class, sender, text string) (Envelope, error) {
	if !class.Valid() {
		return Envelope{}, fmt.Errorf("%w: unknown message class %q", ErrInvalidPayload, class)
	}
	if strings.TrimSpace(sender) == "" {
		return Envelope{}, fmt.Errorf("%w: user is required", ErrInvalidPayload)
	}
	if strings.TrimSpace(text) == "" {
		return Envelope{}, fmt.Errorf("%w: text is required", ErrInvalidPayload)
	}

	return Envelope{
		ID:        c.newID(),
		Sender:    sender,
		Text:      text,
		CreatedAt: stamp(c.now()),
		Class:     class,
	}, nil
}

// stamp rounds t up to the next whole millisecond in UTC, so the serialized
// timestamp is never earlier than the moment of publishing.
func stamp(t time.Time) time.Time {
	t = t.UTC()
	if ms := t.Truncate(time.Millisecond); ms.Before(t) {
		return ms.Add(time.Millisecond)
	}
	return t
}

// Serialize renders env as canonical JSON with all five fields present.
func (c *Codec) Serialize(env Envelope) ([]byte, error) {
	return json.Marshal(ToProto(env))
}

// ToProto maps an Envelope to its wire form.
func ToProto(env Envelope) proto.Envelope {
	return proto.Envelope{
		ID:   env.ID,
		User: env.Sender,
		Text: env.Text,
		TS:   env.CreatedAt.UTC().Format(TimestampLayout),
		Type: string(env.Class),
	}
}
