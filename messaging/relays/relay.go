package relays

import (
	"context"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Relay is one open relay connection.
type Relay interface {
	URL() string
	Subscribe(ctx context.Context, filters nostr.Filters) (*Stream, error)
	Publish(ctx context.Context, event nostr.Event) error
	Close() error
}

// Stream is the receiving side of one REQ on one relay.
type Stream struct {
	Events            <-chan *nostr.Event
	EndOfStoredEvents <-chan struct{}
	Close             func()
}

// Dialer opens a connection to url.
type Dialer func(ctx context.Context, url string) (Relay, error)

// DialNostr connects with go-nostr.
func DialNostr(ctx context.Context, url string) (Relay, error) {
	relay, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, err
	}
	return &nostrRelay{relay: relay}, nil
}

type nostrRelay struct {
	relay     *nostr.Relay
	closeOnce sync.Once
}

func (r *nostrRelay) URL() string {
	return r.relay.URL
}

func (r *nostrRelay) Subscribe(ctx context.Context, filters nostr.Filters) (*Stream, error) {
	sub, err := r.relay.Subscribe(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &Stream{
		Events:            sub.Events,
		EndOfStoredEvents: sub.EndOfStoredEvents,
		Close:             func() { sub.Close() },
	}, nil
}

func (r *nostrRelay) Publish(ctx context.Context, event nostr.Event) error {
	_, err := r.relay.Publish(ctx, event)
	return err
}

func (r *nostrRelay) Close() error {
	r.closeOnce.Do(func() {
		r.relay.Close()
	})
	return nil
}

const DefaultTimeout = 10 * time.Second

// Pool opens short-lived connections on demand. It holds no connections between calls.
type Pool struct {
	dial    Dialer
	timeout time.Duration
}

// NewPool returns a Pool. A nil dialer uses DialNostr; a zero timeout uses DefaultTimeout.
func NewPool(dial Dialer, timeout time.Duration) *Pool {
	if dial == nil {
		dial = DialNostr
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pool{dial: dial, timeout: timeout}
}

// Timeout is the bound applied to each fetch, publish and request.
func (p *Pool) Timeout() time.Duration {
	return p.timeout
}

func unique(urls []string) (r []string) {
	seen := make(map[string]struct{})
	for _, u := range urls {
		if _, ok := seen[u]; ok || u == "" {
			continue
		}
		seen[u] = struct{}{}
		r = append(r, u)
	}
	return
}
