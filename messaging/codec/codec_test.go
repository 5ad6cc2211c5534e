package codec

import (
	"errors"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nostrdesk/engine/library"
)

func newKeys(t *testing.T) library.Keys {
	t.Helper()
	secret := nostr.GeneratePrivateKey()
	pub, err := nostr.GetPublicKey(secret)
	require.NoError(t, err)
	return library.Keys{Secret: secret, Public: pub}
}

func TestBuildEvent(t *testing.T) {
	e := BuildEvent(KindDirectMessage, nostr.Tags{{"p", "bob"}}, "hi", 100)
	assert.Equal(t, 4, e.Kind)
	assert.Equal(t, nostr.Timestamp(100), e.CreatedAt)
	assert.Equal(t, "hi", e.Content)
	assert.Empty(t, e.ID)
	assert.Empty(t, e.Sig)
	assert.Equal(t, e, BuildEvent(KindDirectMessage, nostr.Tags{{"p", "bob"}}, "hi", 100))
	assert.NotNil(t, BuildEvent(1, nil, "", 0).Tags)
}

func TestSign(t *testing.T) {
	c := Default()
	keys := newKeys(t)

	t.Run("signs and validates", func(t *testing.T) {
		signed, err := c.Sign(BuildEvent(1, nil, "hello", 1700000000), keys.Secret)
		require.NoError(t, err)
		assert.Equal(t, keys.Public, signed.PubKey)
		assert.Len(t, signed.ID, 64)
		assert.NoError(t, c.Validate(signed))

		signed.Content = "tampered"
		assert.Error(t, c.Validate(signed))
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := c.Sign(BuildEvent(1, nil, "", 1), "not-a-key")
		assert.True(t, errors.Is(err, library.ErrInvalidKey))
	})

	t.Run("signing unavailable", func(t *testing.T) {
		var empty *Codec
		_, err := empty.Sign(BuildEvent(1, nil, "", 1), keys.Secret)
		assert.True(t, errors.Is(err, library.ErrSigningUnavailable))
		_, err = New(nil).EncryptDirect("x", keys.Secret, keys.Public)
		assert.True(t, errors.Is(err, library.ErrSigningUnavailable))
		assert.True(t, errors.Is(New(nil).Validate(nostr.Event{}), library.ErrSigningUnavailable))
	})
}

func TestCounterparty(t *testing.T) {
	self := "self"

	t.Run("self-authored resolves to p tag", func(t *testing.T) {
		cp, err := Counterparty(nostr.Event{PubKey: self, Tags: nostr.Tags{{"p", "X"}}}, self)
		require.NoError(t, err)
		assert.Equal(t, "X", cp)
	})

	t.Run("received resolves to author", func(t *testing.T) {
		cp, err := Counterparty(nostr.Event{PubKey: "Y", Tags: nostr.Tags{{"p", self}}}, self)
		require.NoError(t, err)
		assert.Equal(t, "Y", cp)
	})

	t.Run("self-authored without a single recipient", func(t *testing.T) {
		_, err := Counterparty(nostr.Event{PubKey: self}, self)
		assert.Error(t, err)
		_, err = Counterparty(nostr.Event{PubKey: self, Tags: nostr.Tags{{"p", "a"}, {"p", "b"}}}, self)
		assert.Error(t, err)
	})
}

func TestDirectMessages(t *testing.T) {
	c := Default()
	alice, bob := newKeys(t), newKeys(t)

	dm, err := c.DirectMessage(alice, bob.Public, "is my order shipped?", 1700000000)
	require.NoError(t, err)
	require.NoError(t, c.Validate(dm))
	assert.Equal(t, KindDirectMessage, dm.Kind)
	assert.Equal(t, nostr.Tags{{"p", bob.Public}}, dm.Tags)
	assert.NotEqual(t, "is my order shipped?", dm.Content)

	t.Run("sender reads its own message", func(t *testing.T) {
		text, err := DirectDecrypter{Codec: c, Keys: alice}.DecryptEvent(dm)
		require.NoError(t, err)
		assert.Equal(t, "is my order shipped?", text)
	})

	t.Run("recipient reads the message", func(t *testing.T) {
		text, err := DirectDecrypter{Codec: c, Keys: bob}.DecryptEvent(dm)
		require.NoError(t, err)
		assert.Equal(t, "is my order shipped?", text)
	})

	t.Run("garbage ciphertext", func(t *testing.T) {
		broken := dm
		broken.Content = "not-ciphertext"
		_, err := DirectDecrypter{Codec: c, Keys: bob}.DecryptEvent(broken)
		assert.True(t, errors.Is(err, library.ErrDecryptionFailed))
	})

	t.Run("unresolvable counterparty", func(t *testing.T) {
		noTag := dm
		noTag.Tags = nostr.Tags{}
		_, err := DirectDecrypter{Codec: c, Keys: alice}.DecryptEvent(noTag)
		assert.True(t, errors.Is(err, library.ErrDecryptionFailed))
	})
}
