package relays

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"nostrdesk/engine/library"
)

// Fetch sends every filter to every relay in one REQ and collects the stored
// events, deduplicated by id. Each relay is done at EOSE or after the pool
// timeout. Unreachable relays are skipped; only when none could be reached
// does Fetch fail, with ErrNoRelaysReachable.
func (p *Pool) Fetch(ctx context.Context, urls []string, filters nostr.Filters) ([]nostr.Event, error) {
	urls = unique(urls)
	events := make(map[string]nostr.Event)
	eventsMu := &deadlock.Mutex{}
	var reached int
	wait := &deadlock.WaitGroup{}
	for _, url := range urls {
		wait.Add(1)
		go func(url string) {
			defer wait.Done()
			ctxsub, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			relay, err := p.dial(ctxsub, url)
			if err != nil {
				library.LogCLI(fmt.Sprintf("could not connect to relay %s: %s", url, err), 2)
				return
			}
			defer relay.Close()
			eventsMu.Lock()
			reached++
			eventsMu.Unlock()
			sane := library.ValidateSaneExecutionTime(p.timeout)
			defer sane()
			sub, err := relay.Subscribe(ctxsub, filters)
			if err != nil {
				library.LogCLI(fmt.Sprintf("could not subscribe on %s: %s", url, err), 2)
				return
			}
			defer sub.Close()
		L:
			for {
				select {
				case ev, ok := <-sub.Events:
					if !ok {
						break L
					}
					if ev == nil {
						continue
					}
					eventsMu.Lock()
					events[ev.ID] = *ev
					eventsMu.Unlock()
				case <-sub.EndOfStoredEvents:
					break L
				case <-ctxsub.Done():
					library.LogCLI(fmt.Sprintf("relay %s did not finish within %s", url, p.timeout), 3)
					break L
				}
			}
		}(url)
	}
	wait.Wait()
	if reached == 0 {
		return nil, fmt.Errorf("fetch from %d relays: %w", len(urls), library.ErrNoRelaysReachable)
	}
	r := maps.Values(events)
	SortEvents(r)
	return r, nil
}

// SortEvents orders events by created_at ascending, ties broken by id.
func SortEvents(events []nostr.Event) {
	slices.SortFunc(events, func(a, b nostr.Event) bool {
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})
}

// Latest returns the newest event, if any.
func Latest(events []nostr.Event) (n nostr.Event, b bool) {
	var timestamp nostr.Timestamp
	for _, event := range events {
		if !b || event.CreatedAt > timestamp {
			b = true
			n = event
			timestamp = event.CreatedAt
		}
	}
	return
}
