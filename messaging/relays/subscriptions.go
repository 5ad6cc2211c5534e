package relays

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"nostrdesk/engine/library"
)

// Subscription is a live subscription across several relays.
type Subscription struct {
	cancel    context.CancelFunc
	wait      *deadlock.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

// Close stops every relay stream and waits for them to exit. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wait.Wait()
		close(s.done)
	})
}

// Done is closed once the subscription has been closed or every relay stream has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Subscribe delivers every matching event from every relay to onEvent until
// the subscription is closed or ctx ends. Events arrive unordered and may
// repeat across relays; onEvent is called from several goroutines, one per relay.
func (p *Pool) Subscribe(ctx context.Context, urls []string, filter nostr.Filter, onEvent func(nostr.Event)) (*Subscription, error) {
	urls = unique(urls)
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{cancel: cancel, wait: &deadlock.WaitGroup{}, done: make(chan struct{})}
	var streams []*Stream
	var conns []Relay
	for _, url := range urls {
		relay, err := p.dial(ctx, url)
		if err != nil {
			library.LogCLI(fmt.Sprintf("could not connect to relay %s: %s", url, err), 2)
			continue
		}
		sub, err := relay.Subscribe(ctx, nostr.Filters{filter})
		if err != nil {
			library.LogCLI(fmt.Sprintf("could not subscribe on %s: %s", url, err), 2)
			relay.Close()
			continue
		}
		streams = append(streams, sub)
		conns = append(conns, relay)
	}
	if len(streams) == 0 {
		cancel()
		return nil, fmt.Errorf("subscribe to %d relays: %w", len(urls), library.ErrNoRelaysReachable)
	}
	for i := range streams {
		s.wait.Add(1)
		go func(relay Relay, sub *Stream) {
			defer s.wait.Done()
			defer relay.Close()
			defer sub.Close()
			for {
				select {
				case ev, ok := <-sub.Events:
					if !ok {
						return
					}
					if ev != nil {
						onEvent(*ev)
					}
				case <-ctx.Done():
					return
				}
			}
		}(conns[i], streams[i])
	}
	go func() {
		s.wait.Wait()
		s.closeOnce.Do(func() {
			cancel()
			close(s.done)
		})
	}()
	return s, nil
}

// Request subscribes with filter, publishes event, and returns the first
// event that matches accept. It gives up with ErrRelayTimeout after the pool
// timeout, or with ctx's error when ctx ends first.
func (p *Pool) Request(ctx context.Context, urls []string, event nostr.Event, filter nostr.Filter, accept func(nostr.Event) bool) (nostr.Event, error) {
	responses := make(chan nostr.Event, 1)
	sub, err := p.Subscribe(ctx, urls, filter, func(ev nostr.Event) {
		if accept != nil && !accept(ev) {
			return
		}
		select {
		case responses <- ev:
		default:
		}
	})
	if err != nil {
		return nostr.Event{}, err
	}
	defer sub.Close()
	if err := p.Publish(ctx, urls, event); err != nil {
		return nostr.Event{}, err
	}
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case ev := <-responses:
		return ev, nil
	case <-timer.C:
		return nostr.Event{}, fmt.Errorf("no response to %s within %s: %w", event.ID, p.timeout, library.ErrRelayTimeout)
	case <-ctx.Done():
		return nostr.Event{}, ctx.Err()
	}
}
