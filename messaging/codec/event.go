package codec

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"nostrdesk/engine/library"
)

const (
	KindMetadata      = 0
	KindDirectMessage = 4
	KindNWCRequest    = 23194
	KindNWCResponse   = 23195
)

// Codec builds, signs, validates and encrypts events. The zero value has no
// primitives and fails every cryptographic operation with ErrSigningUnavailable.
type Codec struct {
	primitives Primitives
}

func New(p Primitives) *Codec {
	return &Codec{primitives: p}
}

// Default returns a Codec backed by go-nostr.
func Default() *Codec {
	return New(NostrPrimitives{})
}

// BuildEvent returns an unsigned event. The caller supplies createdAt so the result is deterministic.
func BuildEvent(kind int, tags nostr.Tags, content string, createdAt nostr.Timestamp) nostr.Event {
	if tags == nil {
		tags = nostr.Tags{}
	}
	return nostr.Event{
		CreatedAt: createdAt,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
}

func (c *Codec) available() error {
	if c == nil || c.primitives == nil {
		return library.ErrSigningUnavailable
	}
	return nil
}

// PublicKey derives the hex public key for secret.
func (c *Codec) PublicKey(secret string) (library.Account, error) {
	if err := c.available(); err != nil {
		return "", err
	}
	if !library.IsValid32ByteHex(secret) {
		return "", library.ErrInvalidKey
	}
	pub, err := c.primitives.PublicKey(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %s", library.ErrInvalidKey, err)
	}
	return pub, nil
}

// Sign returns a copy of event with pubkey, id and signature filled in.
func (c *Codec) Sign(event nostr.Event, secret string) (nostr.Event, error) {
	pub, err := c.PublicKey(secret)
	if err != nil {
		return nostr.Event{}, err
	}
	event.PubKey = pub
	if err := c.primitives.Sign(&event, secret); err != nil {
		return nostr.Event{}, fmt.Errorf("%w: %s", library.ErrInvalidKey, err)
	}
	return event, nil
}

// Validate checks the event id and signature.
func (c *Codec) Validate(event nostr.Event) error {
	if err := c.available(); err != nil {
		return err
	}
	ok, err := c.primitives.Verify(event)
	if err != nil {
		return fmt.Errorf("event %s: %s", event.ID, err)
	}
	if !ok {
		return fmt.Errorf("event %s has an invalid id or signature", event.ID)
	}
	return nil
}
