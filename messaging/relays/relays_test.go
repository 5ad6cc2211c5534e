package relays

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nostrdesk/engine/library"
)

type fakeRelay struct {
	url        string
	mu         sync.Mutex
	stored     []nostr.Event
	live       chan *nostr.Event
	published  []nostr.Event
	publishErr error
	silent     bool
	onPublish  func(nostr.Event)
	closes     int
}

func newFakeRelay(url string, stored ...nostr.Event) *fakeRelay {
	return &fakeRelay{url: url, stored: stored, live: make(chan *nostr.Event, 16)}
}

func (r *fakeRelay) URL() string { return r.url }

func (r *fakeRelay) Subscribe(ctx context.Context, filters nostr.Filters) (*Stream, error) {
	events := make(chan *nostr.Event)
	eose := make(chan struct{})
	go func() {
		if !r.silent {
			for i := range r.stored {
				ev := r.stored[i]
				if !filters.Match(&ev) {
					continue
				}
				select {
				case events <- &ev:
				case <-ctx.Done():
					return
				}
			}
			close(eose)
		}
		for {
			select {
			case ev := <-r.live:
				if !filters.Match(ev) {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return &Stream{Events: events, EndOfStoredEvents: eose, Close: func() {}}, nil
}

func (r *fakeRelay) Publish(ctx context.Context, event nostr.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.publishErr != nil {
		return r.publishErr
	}
	r.published = append(r.published, event)
	if r.onPublish != nil {
		go r.onPublish(event)
	}
	return nil
}

func (r *fakeRelay) Close() error {
	r.mu.Lock()
	r.closes++
	r.mu.Unlock()
	return nil
}

func network(relays ...*fakeRelay) Dialer {
	byURL := make(map[string]*fakeRelay)
	for _, r := range relays {
		byURL[r.url] = r
	}
	return func(ctx context.Context, url string) (Relay, error) {
		if r, ok := byURL[url]; ok {
			return r, nil
		}
		return nil, fmt.Errorf("dial %s: connection refused", url)
	}
}

func dm(id, pubkey string, createdAt int64, recipient string) nostr.Event {
	return nostr.Event{ID: id, PubKey: pubkey, CreatedAt: nostr.Timestamp(createdAt), Kind: 4, Tags: nostr.Tags{{"p", recipient}}}
}

func TestFetch(t *testing.T) {
	sent := dm("e1", "self", 100, "bob")
	received := dm("e2", "bob", 90, "self")
	other := dm("e3", "carol", 80, "dave")
	a := newFakeRelay("wss://a", sent, received, other)
	b := newFakeRelay("wss://b", sent)
	pool := NewPool(network(a, b), time.Second)

	filters := nostr.Filters{
		{Kinds: []int{4}, Authors: []string{"self"}},
		{Kinds: []int{4}, Tags: nostr.TagMap{"p": []string{"self"}}},
	}

	t.Run("merges relays and filters without duplicates", func(t *testing.T) {
		events, err := pool.Fetch(context.Background(), []string{"wss://a", "wss://b", "wss://a"}, filters)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "e2", events[0].ID)
		assert.Equal(t, "e1", events[1].ID)
	})

	t.Run("skips unreachable relays", func(t *testing.T) {
		events, err := pool.Fetch(context.Background(), []string{"wss://down", "wss://b"}, filters)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("fails only when no relay is reachable", func(t *testing.T) {
		_, err := pool.Fetch(context.Background(), []string{"wss://down"}, filters)
		assert.True(t, errors.Is(err, library.ErrNoRelaysReachable))
	})

	t.Run("a silent relay times out with an empty result", func(t *testing.T) {
		quiet := newFakeRelay("wss://quiet", sent)
		quiet.silent = true
		events, err := NewPool(network(quiet), 30*time.Millisecond).Fetch(context.Background(), []string{"wss://quiet"}, filters)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestSortEvents(t *testing.T) {
	events := []nostr.Event{dm("b", "x", 5, "y"), dm("a", "x", 5, "y"), dm("c", "x", 1, "y")}
	SortEvents(events)
	assert.Equal(t, "c", events[0].ID)
	assert.Equal(t, "a", events[1].ID)
	assert.Equal(t, "b", events[2].ID)

	latest, ok := Latest(events)
	assert.True(t, ok)
	assert.Equal(t, nostr.Timestamp(5), latest.CreatedAt)
	_, ok = Latest(nil)
	assert.False(t, ok)
}

func TestPublish(t *testing.T) {
	ok := newFakeRelay("wss://ok")
	broken := newFakeRelay("wss://broken")
	broken.publishErr = errors.New("blocked: rate limited")
	pool := NewPool(network(ok, broken), time.Second)
	event := dm("e1", "self", 1, "bob")

	assert.NoError(t, pool.Publish(context.Background(), []string{"wss://ok", "wss://broken", "wss://down"}, event))
	assert.Len(t, ok.published, 1)

	err := pool.Publish(context.Background(), []string{"wss://broken", "wss://down"}, event)
	assert.True(t, errors.Is(err, library.ErrNoRelaysReachable))
}

func TestSubscribe(t *testing.T) {
	a := newFakeRelay("wss://a")
	pool := NewPool(network(a), time.Second)
	got := make(chan nostr.Event, 4)
	sub, err := pool.Subscribe(context.Background(), []string{"wss://a", "wss://down"}, nostr.Filter{Kinds: []int{4}}, func(ev nostr.Event) {
		got <- ev
	})
	require.NoError(t, err)

	ev := dm("e9", "bob", 1, "self")
	a.live <- &ev
	select {
	case received := <-got:
		assert.Equal(t, "e9", received.ID)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}

	sub.Close()
	sub.Close()
	<-sub.Done()

	_, err = pool.Subscribe(context.Background(), []string{"wss://down"}, nostr.Filter{}, func(nostr.Event) {})
	assert.True(t, errors.Is(err, library.ErrNoRelaysReachable))
}

func TestRequest(t *testing.T) {
	wallet := newFakeRelay("wss://wallet")
	wallet.onPublish = func(req nostr.Event) {
		resp := nostr.Event{ID: "resp", PubKey: "wallet", Kind: 23195, Tags: nostr.Tags{{"e", req.ID}}}
		wallet.live <- &resp
	}
	pool := NewPool(network(wallet), time.Second)
	req := nostr.Event{ID: "req1", Kind: 23194}
	filter := nostr.Filter{Kinds: []int{23195}}

	resp, err := pool.Request(context.Background(), []string{"wss://wallet"}, req, filter, func(ev nostr.Event) bool {
		v, _ := library.GetFirstTag(ev, "e")
		return v == "req1"
	})
	require.NoError(t, err)
	assert.Equal(t, "resp", resp.ID)

	t.Run("times out without a correlated response", func(t *testing.T) {
		quiet := newFakeRelay("wss://quiet")
		_, err := NewPool(network(quiet), 30*time.Millisecond).Request(context.Background(), []string{"wss://quiet"}, req, filter, nil)
		assert.True(t, errors.Is(err, library.ErrRelayTimeout))
	})
}
