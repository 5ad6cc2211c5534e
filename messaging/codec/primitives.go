package codec

import (
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
)

// Primitives is the cryptography the codec delegates to: event hashing and
// schnorr signatures, ECDH shared secrets and the NIP-04 cipher.
type Primitives interface {
	PublicKey(secret string) (string, error)
	Sign(event *nostr.Event, secret string) error
	Verify(event nostr.Event) (bool, error)
	SharedSecret(pubkey, secret string) ([]byte, error)
	Encrypt(plaintext string, key []byte) (string, error)
	Decrypt(ciphertext string, key []byte) (string, error)
}

// NostrPrimitives implements Primitives with go-nostr.
type NostrPrimitives struct{}

func (NostrPrimitives) PublicKey(secret string) (string, error) {
	return nostr.GetPublicKey(secret)
}

func (NostrPrimitives) Sign(event *nostr.Event, secret string) error {
	event.ID = event.GetID()
	return event.Sign(secret)
}

func (NostrPrimitives) Verify(event nostr.Event) (bool, error) {
	if event.ID != event.GetID() {
		return false, nil
	}
	return event.CheckSignature()
}

func (NostrPrimitives) SharedSecret(pubkey, secret string) ([]byte, error) {
	return nip04.ComputeSharedSecret(pubkey, secret)
}

func (NostrPrimitives) Encrypt(plaintext string, key []byte) (string, error) {
	return nip04.Encrypt(plaintext, key)
}

func (NostrPrimitives) Decrypt(ciphertext string, key []byte) (string, error) {
	return nip04.Decrypt(ciphertext, key)
}
