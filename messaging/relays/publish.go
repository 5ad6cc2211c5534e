package relays

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"nostrdesk/engine/library"
)

// Publish sends event to every relay. It succeeds when at least one relay
// accepts it; individual relay failures are only logged.
func (p *Pool) Publish(ctx context.Context, urls []string, event nostr.Event) error {
	urls = unique(urls)
	var accepted int
	mu := &deadlock.Mutex{}
	wg := &deadlock.WaitGroup{}
	for _, url := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			ctxpub, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			relay, err := p.dial(ctxpub, url)
			if err != nil {
				library.LogCLI(fmt.Sprintf("could not connect to relay %s: %s", url, err), 2)
				return
			}
			defer relay.Close()
			sane := library.ValidateSaneExecutionTime(p.timeout)
			defer sane()
			if err := relay.Publish(ctxpub, event); err != nil {
				library.LogCLI(fmt.Sprintf("could not publish %s to relay %s: %s", event.ID, url, err), 2)
				return
			}
			mu.Lock()
			accepted++
			mu.Unlock()
		}(url)
	}
	wg.Wait()
	if accepted == 0 {
		return fmt.Errorf("publish %s to %d relays: %w", event.ID, len(urls), library.ErrNoRelaysReachable)
	}
	library.LogCLI(fmt.Sprintf("event %s accepted by %d of %d relays", event.ID, accepted, len(urls)), 3)
	return nil
}
