package codec

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"nostrdesk/engine/library"
)

// Counterparty resolves the other side of a direct message as seen by self.
// A received event belongs to its author; a self-authored event belongs to
// its single p-tagged recipient.
func Counterparty(event nostr.Event, self library.Account) (library.Account, error) {
	if event.PubKey != self {
		return event.PubKey, nil
	}
	recipients := library.GetAllTags(event, "p")
	if len(recipients) != 1 {
		return "", fmt.Errorf("event %s is self-authored with %d p tags, want exactly one", event.ID, len(recipients))
	}
	return recipients[0], nil
}

func (c *Codec) sharedSecret(secret string, counterparty library.Account) ([]byte, error) {
	if err := c.available(); err != nil {
		return nil, err
	}
	if !library.IsValid32ByteHex(secret) {
		return nil, library.ErrInvalidKey
	}
	if !library.IsValid32ByteHex(counterparty) {
		return nil, fmt.Errorf("%w: counterparty %q", library.ErrInvalidKey, counterparty)
	}
	key, err := c.primitives.SharedSecret(counterparty, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", library.ErrInvalidKey, err)
	}
	return key, nil
}

// EncryptDirect encrypts plaintext for recipient with NIP-04.
func (c *Codec) EncryptDirect(plaintext, senderSecret string, recipient library.Account) (string, error) {
	key, err := c.sharedSecret(senderSecret, recipient)
	if err != nil {
		return "", err
	}
	ciphertext, err := c.primitives.Encrypt(plaintext, key)
	if err != nil {
		return "", fmt.Errorf("encrypting for %s: %w", recipient, err)
	}
	return ciphertext, nil
}

// DecryptDirect decrypts NIP-04 ciphertext exchanged with counterparty.
func (c *Codec) DecryptDirect(ciphertext, selfSecret string, counterparty library.Account) (string, error) {
	key, err := c.sharedSecret(selfSecret, counterparty)
	if err != nil {
		return "", err
	}
	plaintext, err := c.primitives.Decrypt(ciphertext, key)
	if err != nil {
		return "", fmt.Errorf("%w: %s", library.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// DirectMessage encrypts text for recipient and returns the signed kind 4 event.
func (c *Codec) DirectMessage(keys library.Keys, recipient library.Account, text string, createdAt nostr.Timestamp) (nostr.Event, error) {
	ciphertext, err := c.EncryptDirect(text, keys.Secret, recipient)
	if err != nil {
		return nostr.Event{}, err
	}
	event := BuildEvent(KindDirectMessage, nostr.Tags{nostr.Tag{"p", recipient}}, ciphertext, createdAt)
	return c.Sign(event, keys.Secret)
}

// DirectDecrypter decrypts direct messages from the point of view of one identity.
type DirectDecrypter struct {
	Codec *Codec
	Keys  library.Keys
}

func (d DirectDecrypter) DecryptEvent(event nostr.Event) (string, error) {
	counterparty, err := Counterparty(event, d.Keys.Public)
	if err != nil {
		return "", fmt.Errorf("%w: %s", library.ErrDecryptionFailed, err)
	}
	return d.Codec.DecryptDirect(event.Content, d.Keys.Secret, counterparty)
}
