package threads

import (
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/exp/slices"
	"nostrdesk/engine/library"
	"nostrdesk/messaging/codec"
)

// Store keeps every conversation of one identity for the lifetime of a session.
// Threads are created on first sight of a counterparty and never removed.
type Store struct {
	self      library.Account
	mutex     *deadlock.Mutex
	threads   map[library.Account]*Thread
	profiles  *expirable.LRU[library.Account, Profile]
	plaintext map[library.Sha256]string
}

func NewStore(self library.Account, profileCacheSize int, profileTTL time.Duration) *Store {
	if profileCacheSize < 1 {
		profileCacheSize = 512
	}
	return &Store{
		self:      self,
		mutex:     &deadlock.Mutex{},
		threads:   make(map[library.Account]*Thread),
		profiles:  expirable.NewLRU[library.Account, Profile](profileCacheSize, nil, profileTTL),
		plaintext: make(map[library.Sha256]string),
	}
}

func (s *Store) Self() library.Account {
	return s.self
}

// Ingest adds every event not already present and returns how many were new.
// Ingesting the same events again changes nothing.
func (s *Store) Ingest(events []nostr.Event) (added int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, event := range events {
		if s.insert(event) {
			added++
		}
	}
	return
}

// Append adds a locally created event before any relay has confirmed it.
func (s *Store) Append(event nostr.Event) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.insert(event)
}

func (s *Store) insert(event nostr.Event) bool {
	if event.ID == "" {
		library.LogCLI("refusing to store an event without an id", 2)
		return false
	}
	counterparty, err := codec.Counterparty(event, s.self)
	if err != nil {
		library.LogCLI(err.Error(), 3)
		return false
	}
	thread, ok := s.threads[counterparty]
	if !ok {
		thread = &Thread{Counterparty: counterparty, ids: make(map[library.Sha256]struct{})}
		s.threads[counterparty] = thread
	}
	if _, exists := thread.ids[event.ID]; exists {
		return false
	}
	thread.ids[event.ID] = struct{}{}
	i := sort.Search(len(thread.messages), func(i int) bool {
		return less(event, thread.messages[i])
	})
	thread.messages = slices.Insert(thread.messages, i, event)
	if event.CreatedAt > thread.LastActivity {
		thread.LastActivity = event.CreatedAt
	}
	return true
}

func less(a, b nostr.Event) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.ID < b.ID
}

// Threads lists conversations, most recently active first. Equal activity is
// ordered by counterparty so the listing is stable.
func (s *Store) Threads() []Summary {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	r := make([]Summary, 0, len(s.threads))
	for _, thread := range s.threads {
		r = append(r, s.summary(thread))
	}
	slices.SortFunc(r, func(a, b Summary) bool {
		if a.LastActivity != b.LastActivity {
			return a.LastActivity > b.LastActivity
		}
		return a.Counterparty < b.Counterparty
	})
	return r
}

// Thread returns the summary for one counterparty.
func (s *Store) Thread(counterparty library.Account) (Summary, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	thread, ok := s.threads[counterparty]
	if !ok {
		return Summary{}, false
	}
	return s.summary(thread), true
}

func (s *Store) summary(thread *Thread) Summary {
	sum := Summary{
		Counterparty: thread.Counterparty,
		LastActivity: thread.LastActivity,
		Messages:     len(thread.messages),
	}
	if p, ok := s.profiles.Get(thread.Counterparty); ok {
		sum.Profile = &p
	}
	return sum
}

// Messages returns a copy of the thread's events in display order.
func (s *Store) Messages(counterparty library.Account) []nostr.Event {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	thread, ok := s.threads[counterparty]
	if !ok {
		return nil
	}
	return slices.Clone(thread.messages)
}

func (s *Store) SetProfile(account library.Account, profile Profile) {
	s.profiles.Add(account, profile)
}

// Profile returns the cached profile; an expired entry reads as absent.
func (s *Store) Profile(account library.Account) (Profile, bool) {
	return s.profiles.Get(account)
}

// MissingProfiles lists counterparties with no fresh profile.
func (s *Store) MissingProfiles() (r []library.Account) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for account := range s.threads {
		if _, ok := s.profiles.Get(account); !ok {
			r = append(r, account)
		}
	}
	slices.Sort(r)
	return
}

func (s *Store) String() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return fmt.Sprintf("%d threads for %s", len(s.threads), s.self)
}
