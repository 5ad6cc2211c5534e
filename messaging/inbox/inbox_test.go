package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nostrdesk/engine/library"
	"nostrdesk/messaging/codec"
	"nostrdesk/state/threads"
)

type fakeSub struct {
	once sync.Once
	done chan struct{}
}

func (s *fakeSub) Close()                { s.once.Do(func() { close(s.done) }) }
func (s *fakeSub) Done() <-chan struct{} { return s.done }

type fakeTransport struct {
	mutex      sync.Mutex
	stored     []nostr.Event
	published  []nostr.Event
	fetches    []nostr.Filters
	publishErr error
	fetchErr   error
	onEvent    func(nostr.Event)
	subscribed chan struct{}
}

func (f *fakeTransport) Fetch(ctx context.Context, urls []string, filters nostr.Filters) (r []nostr.Event, err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.fetches = append(f.fetches, filters)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	for i := range f.stored {
		if filters.Match(&f.stored[i]) {
			r = append(r, f.stored[i])
		}
	}
	return r, nil
}

func (f *fakeTransport) Publish(ctx context.Context, urls []string, event nostr.Event) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, event)
	f.stored = append(f.stored, event)
	return nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, urls []string, filter nostr.Filter, onEvent func(nostr.Event)) (Subscription, error) {
	f.mutex.Lock()
	f.onEvent = onEvent
	f.mutex.Unlock()
	if f.subscribed != nil {
		f.subscribed <- struct{}{}
	}
	return &fakeSub{done: make(chan struct{})}, nil
}

func (f *fakeTransport) push(event nostr.Event) {
	f.mutex.Lock()
	onEvent := f.onEvent
	f.mutex.Unlock()
	onEvent(event)
}

func (f *fakeTransport) store(events ...nostr.Event) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.stored = append(f.stored, events...)
}

func newKeys(t *testing.T) library.Keys {
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)
	return library.Keys{Secret: sk, Public: pk}
}

func dm(t *testing.T, c *codec.Codec, from library.Keys, to library.Account, text string, at int64) nostr.Event {
	event, err := c.DirectMessage(from, to, text, nostr.Timestamp(at))
	require.NoError(t, err)
	return event
}

func profile(t *testing.T, c *codec.Codec, keys library.Keys, name string, at int64) nostr.Event {
	content, err := json.Marshal(threads.Profile{Name: name})
	require.NoError(t, err)
	event, err := c.Sign(codec.BuildEvent(codec.KindMetadata, nostr.Tags{}, string(content), nostr.Timestamp(at)), keys.Secret)
	require.NoError(t, err)
	return event
}

type fixture struct {
	site, alice, bob, carol library.Keys
	codec                   *codec.Codec
	transport               *fakeTransport
	inbox                   *Inbox
	now                     int64
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		site:      newKeys(t),
		alice:     newKeys(t),
		bob:       newKeys(t),
		carol:     newKeys(t),
		codec:     codec.Default(),
		transport: &fakeTransport{},
		now:       time.Now().Unix(),
	}
	store := threads.NewStore(f.site.Public, 16, time.Hour)
	f.inbox = New(f.site, DefaultConfig([]string{"wss://relay.example"}), f.transport, f.codec, store)
	f.inbox.now = func() time.Time { return time.Unix(f.now, 0) }
	return f
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	tampered := dm(t, f.codec, f.bob, f.site.Public, "forged", f.now-5)
	tampered.Content = tampered.Content + "x"
	f.transport.store(
		dm(t, f.codec, f.alice, f.site.Public, "hi", f.now-300),
		dm(t, f.codec, f.site, f.alice.Public, "hello alice", f.now-200),
		dm(t, f.codec, f.alice, f.site.Public, "thanks", f.now-100),
		dm(t, f.codec, f.bob, f.site.Public, "order?", f.now-50),
		dm(t, f.codec, f.carol, f.bob.Public, "not ours", f.now-40),
		tampered,
		profile(t, f.codec, f.alice, "Alice", f.now-1000),
		profile(t, f.codec, f.alice, "Alice 2", f.now-900),
	)

	added, err := f.inbox.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, added)

	summaries := f.inbox.Threads()
	require.Len(t, summaries, 2)
	assert.Equal(t, f.bob.Public, summaries[0].Counterparty)
	assert.Equal(t, f.alice.Public, summaries[1].Counterparty)
	assert.Equal(t, 3, summaries[1].Messages)

	p, ok := f.inbox.Store().Profile(f.alice.Public)
	require.True(t, ok)
	assert.Equal(t, "Alice 2", p.Name)
	assert.Empty(t, f.inbox.Store().MissingProfiles())

	added, err = f.inbox.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	f.transport.mutex.Lock()
	last := f.transport.fetches[len(f.transport.fetches)-1]
	f.transport.mutex.Unlock()
	require.Len(t, last, 2)
	require.NotNil(t, last[0].Since)
	assert.Equal(t, nostr.Timestamp(f.now-600), *last[0].Since)
	assert.Equal(t, []string{f.site.Public}, last[0].Authors)
	assert.Equal(t, []string{f.site.Public}, last[1].Tags["p"])
}

func TestSend(t *testing.T) {
	f := newFixture(t)

	event, err := f.inbox.Send(context.Background(), f.alice.Public, "your order shipped")
	require.NoError(t, err)
	assert.Len(t, f.inbox.Store().Messages(f.alice.Public), 1)
	assert.Equal(t, []nostr.Event{event}, f.transport.published)

	// the relay echoes our own message back
	_, err = f.inbox.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.inbox.Store().Messages(f.alice.Public), 1)

	messages := f.inbox.Open(f.alice.Public)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].Outgoing)
	assert.Equal(t, "your order shipped", messages[0].Plaintext)

	t.Run("bad recipient", func(t *testing.T) {
		_, err := f.inbox.Send(context.Background(), "bob", "hi")
		assert.ErrorIs(t, err, library.ErrInvalidKey)
	})
	t.Run("publish failure keeps the message", func(t *testing.T) {
		f.transport.publishErr = library.ErrNoRelaysReachable
		event, err := f.inbox.Send(context.Background(), f.bob.Public, "hello?")
		assert.True(t, errors.Is(err, library.ErrNoRelaysReachable))
		assert.NotEmpty(t, event.ID)
		assert.Len(t, f.inbox.Store().Messages(f.bob.Public), 1)
	})
}

func TestHistoryLoadsAfterFailedRefresh(t *testing.T) {
	f := newFixture(t)
	f.transport.store(dm(t, f.codec, f.alice, f.site.Public, "still there?", f.now-2*24*3600))
	f.transport.fetchErr = library.ErrNoRelaysReachable
	f.transport.publishErr = library.ErrNoRelaysReachable

	_, err := f.inbox.Refresh(context.Background())
	assert.ErrorIs(t, err, library.ErrNoRelaysReachable)
	_, err = f.inbox.Send(context.Background(), f.bob.Public, "hello?")
	assert.Error(t, err)
	pushed := dm(t, f.codec, f.carol, f.site.Public, "live", f.now)
	assert.True(t, f.inbox.Store().Append(pushed))

	f.transport.mutex.Lock()
	f.transport.fetchErr = nil
	f.transport.mutex.Unlock()
	_, err = f.inbox.Refresh(context.Background())
	require.NoError(t, err)

	f.transport.mutex.Lock()
	history := f.transport.fetches[1]
	f.transport.mutex.Unlock()
	assert.Equal(t, nostr.Timestamp(f.now-30*24*3600), *history[0].Since)
	messages := f.inbox.Open(f.alice.Public)
	require.Len(t, messages, 1)
	assert.Equal(t, "still there?", messages[0].Plaintext)
}

func TestOpenReceived(t *testing.T) {
	f := newFixture(t)
	f.transport.store(
		dm(t, f.codec, f.alice, f.site.Public, "where is my order", f.now-20),
		dm(t, f.codec, f.site, f.alice.Public, "on its way", f.now-10),
	)
	_, err := f.inbox.Refresh(context.Background())
	require.NoError(t, err)

	messages := f.inbox.Open(f.alice.Public)
	require.Len(t, messages, 2)
	assert.False(t, messages[0].Outgoing)
	assert.Equal(t, "where is my order", messages[0].Plaintext)
	assert.True(t, messages[1].Outgoing)
	assert.Equal(t, "on its way", messages[1].Plaintext)
}

func TestListen(t *testing.T) {
	f := newFixture(t)
	f.transport.subscribed = make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan nostr.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- f.inbox.Listen(ctx, func(event nostr.Event) { received <- event })
	}()
	select {
	case <-f.transport.subscribed:
	case <-time.After(time.Second):
		t.Fatal("never subscribed")
	}

	event := dm(t, f.codec, f.alice, f.site.Public, "ping", f.now)
	f.transport.push(event)
	f.transport.push(event)
	forged := dm(t, f.codec, f.bob, f.site.Public, "pong", f.now)
	forged.Sig = event.Sig
	f.transport.push(forged)

	select {
	case got := <-received:
		assert.Equal(t, event.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Len(t, received, 0)
	assert.Len(t, f.inbox.Store().Messages(f.alice.Public), 1)
	assert.Empty(t, f.inbox.Store().Messages(f.bob.Public))
}
