package threads

import (
	"encoding/json"

	"github.com/nbd-wtf/go-nostr"
	"nostrdesk/engine/library"
)

// Thread is the conversation with one counterparty.
type Thread struct {
	Counterparty library.Account
	LastActivity nostr.Timestamp
	// ids holds every event already in the thread; messages stays sorted by (created_at, id).
	ids      map[library.Sha256]struct{}
	messages []nostr.Event
}

// Summary is a read-only view of a thread for listing.
type Summary struct {
	Counterparty library.Account
	Profile      *Profile
	LastActivity nostr.Timestamp
	Messages     int
}

// Profile is the kind 0 metadata of a counterparty.
type Profile struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Picture     string `json:"picture,omitempty"`
	About       string `json:"about,omitempty"`
	Nip05       string `json:"nip05,omitempty"`
	Lud16       string `json:"lud16,omitempty"`
}

// Label is the best human readable name for the profile.
func (p *Profile) Label(fallback string) string {
	if p == nil {
		return fallback
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Name != "" {
		return p.Name
	}
	return fallback
}

// ParseProfile reads the content of a kind 0 event.
func ParseProfile(event nostr.Event) (Profile, error) {
	var p Profile
	err := json.Unmarshal([]byte(event.Content), &p)
	return p, err
}

// Message is one direct message as rendered in an open thread.
type Message struct {
	Event     nostr.Event
	Outgoing  bool
	Plaintext string
	Failed    bool
	Err       error
}

// Decrypter produces the plaintext of a direct message.
type Decrypter interface {
	DecryptEvent(event nostr.Event) (string, error)
}
