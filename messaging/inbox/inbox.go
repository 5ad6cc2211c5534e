package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"nostrdesk/engine/library"
	"nostrdesk/messaging/codec"
	"nostrdesk/messaging/relays"
	"nostrdesk/state/threads"
)

// Subscription is a live relay subscription.
type Subscription interface {
	Close()
	Done() <-chan struct{}
}

// Transport is the part of the relay pool the inbox needs.
type Transport interface {
	Fetch(ctx context.Context, urls []string, filters nostr.Filters) ([]nostr.Event, error)
	Publish(ctx context.Context, urls []string, event nostr.Event) error
	Subscribe(ctx context.Context, urls []string, filter nostr.Filter, onEvent func(nostr.Event)) (Subscription, error)
}

type pool struct {
	*relays.Pool
}

func (p pool) Subscribe(ctx context.Context, urls []string, filter nostr.Filter, onEvent func(nostr.Event)) (Subscription, error) {
	return p.Pool.Subscribe(ctx, urls, filter, onEvent)
}

// PoolTransport adapts a relay pool.
func PoolTransport(p *relays.Pool) Transport {
	return pool{p}
}

type Config struct {
	Relays          []string
	RefreshInterval time.Duration
	// Overlap is subtracted from the last successful refresh so events
	// relays received late are still picked up.
	Overlap time.Duration
	// Lookback bounds the first refresh.
	Lookback time.Duration
}

func DefaultConfig(relays []string) Config {
	return Config{
		Relays:          relays,
		RefreshInterval: 30 * time.Second,
		Overlap:         10 * time.Minute,
		Lookback:        30 * 24 * time.Hour,
	}
}

// Inbox is one console's view of the site identity's direct messages.
// Every widget or console owns its own Inbox; nothing is shared between them.
type Inbox struct {
	keys      library.Keys
	config    Config
	transport Transport
	codec     *codec.Codec
	store     *threads.Store
	mutex     *deadlock.Mutex
	now       func() time.Time
	// watermark is when the last successful refresh started. Messages sent or
	// pushed live never move it.
	watermark nostr.Timestamp
}

func New(keys library.Keys, config Config, transport Transport, c *codec.Codec, store *threads.Store) *Inbox {
	return &Inbox{
		keys:      keys,
		config:    config,
		transport: transport,
		codec:     c,
		store:     store,
		mutex:     &deadlock.Mutex{},
		now:       time.Now,
	}
}

func (i *Inbox) Store() *threads.Store {
	return i.store
}

func (i *Inbox) Self() library.Account {
	return i.keys.Public
}

func (i *Inbox) since() nostr.Timestamp {
	if i.watermark > 0 {
		since := int64(i.watermark) - int64(i.config.Overlap.Seconds())
		if since < 0 {
			since = 0
		}
		return nostr.Timestamp(since)
	}
	return nostr.Timestamp(i.now().Add(-i.config.Lookback).Unix())
}

// Filters asks for messages sent by and sent to self. Two filters, because
// one filter cannot express authored-or-tagged.
func Filters(self library.Account, since nostr.Timestamp) nostr.Filters {
	return nostr.Filters{
		{Kinds: []int{codec.KindDirectMessage}, Authors: []string{self}, Since: &since},
		{Kinds: []int{codec.KindDirectMessage}, Tags: nostr.TagMap{"p": []string{self}}, Since: &since},
	}
}

// Refresh fetches new direct messages into the thread store and returns how many were new.
func (i *Inbox) Refresh(ctx context.Context) (int, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	started := nostr.Timestamp(i.now().Unix())
	events, err := i.transport.Fetch(ctx, i.config.Relays, Filters(i.keys.Public, i.since()))
	if err != nil {
		return 0, fmt.Errorf("refreshing inbox: %w", err)
	}
	i.watermark = started
	added := i.store.Ingest(i.valid(events))
	if added > 0 {
		library.LogCLI(fmt.Sprintf("inbox: %d new messages", added), 4)
	}
	i.refreshProfiles(ctx)
	return added, nil
}

func (i *Inbox) valid(events []nostr.Event) (r []nostr.Event) {
	for _, event := range events {
		if event.Kind != codec.KindDirectMessage {
			continue
		}
		if err := i.codec.Validate(event); err != nil {
			library.LogCLI(fmt.Sprintf("inbox: dropping event %s: %s", event.ID, err.Error()), 3)
			continue
		}
		r = append(r, event)
	}
	return
}

// refreshProfiles fetches kind 0 metadata for counterparties without a fresh profile.
// Failures only mean thread headers show the pubkey.
func (i *Inbox) refreshProfiles(ctx context.Context) {
	missing := i.store.MissingProfiles()
	if len(missing) == 0 {
		return
	}
	events, err := i.transport.Fetch(ctx, i.config.Relays, nostr.Filters{{Kinds: []int{codec.KindMetadata}, Authors: missing}})
	if err != nil {
		library.LogCLI(fmt.Sprintf("inbox: fetching profiles: %s", err.Error()), 3)
		return
	}
	latest := make(map[library.Account]nostr.Event)
	for _, event := range events {
		if event.Kind != codec.KindMetadata || i.codec.Validate(event) != nil {
			continue
		}
		if current, ok := latest[event.PubKey]; !ok || event.CreatedAt > current.CreatedAt {
			latest[event.PubKey] = event
		}
	}
	for _, account := range missing {
		var profile threads.Profile
		if event, ok := latest[account]; ok {
			if profile, err = threads.ParseProfile(event); err != nil {
				library.LogCLI(fmt.Sprintf("inbox: unreadable profile for %s: %s", account, err.Error()), 3)
			}
		}
		// an empty profile still stops refetching until it expires
		i.store.SetProfile(account, profile)
	}
}

// Send encrypts text to recipient, shows it in the thread at once and publishes it.
// The message stays in the thread when publishing fails.
func (i *Inbox) Send(ctx context.Context, recipient library.Account, text string) (nostr.Event, error) {
	if !library.IsValid32ByteHex(recipient) {
		return nostr.Event{}, fmt.Errorf("recipient %q: %w", recipient, library.ErrInvalidKey)
	}
	event, err := i.codec.DirectMessage(i.keys, recipient, text, nostr.Timestamp(i.now().Unix()))
	if err != nil {
		return nostr.Event{}, err
	}
	i.store.Append(event)
	if err := i.transport.Publish(ctx, i.config.Relays, event); err != nil {
		return event, fmt.Errorf("sending to %s: %w", recipient, err)
	}
	return event, nil
}

// Open decrypts the thread with counterparty for display.
func (i *Inbox) Open(counterparty library.Account) []threads.Message {
	return i.store.Open(counterparty, codec.DirectDecrypter{Codec: i.codec, Keys: i.keys})
}

func (i *Inbox) Threads() []threads.Summary {
	return i.store.Threads()
}

// Run refreshes the inbox every RefreshInterval until ctx is done.
func (i *Inbox) Run(ctx context.Context) {
	library.Every(ctx, "inbox refresh", i.config.RefreshInterval, func(ctx context.Context) {
		if _, err := i.Refresh(ctx); err != nil && ctx.Err() == nil {
			library.LogCLI(err.Error(), 2)
		}
	})
}

// Listen delivers direct messages as relays push them, calling onMessage for
// each one not already in the store. After the machine sleeps the
// subscription is rebuilt and a refresh catches up on what was missed.
func (i *Inbox) Listen(ctx context.Context, onMessage func(nostr.Event)) error {
	wake := wakeups(ctx)
	for {
		since := nostr.Timestamp(i.now().Unix())
		filter := nostr.Filter{Kinds: []int{codec.KindDirectMessage}, Tags: nostr.TagMap{"p": []string{i.keys.Public}}, Since: &since}
		sub, err := i.transport.Subscribe(ctx, i.config.Relays, filter, func(event nostr.Event) {
			if err := i.codec.Validate(event); err != nil {
				return
			}
			if i.store.Append(event) && onMessage != nil {
				onMessage(event)
			}
		})
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			sub.Close()
			return ctx.Err()
		case <-sub.Done():
			// every relay dropped us
			library.LogCLI("inbox: live subscription ended, resubscribing", 2)
		case <-wake:
			library.LogCLI("inbox: system sleep detected, resubscribing", 4)
			sub.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := i.Refresh(ctx); err != nil {
			library.LogCLI(err.Error(), 2)
		}
	}
}
