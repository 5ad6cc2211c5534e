package outbox

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sasha-s/go-deadlock"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"nostrdesk/engine/actors"
	"nostrdesk/engine/backend"
)

// Entry records a queued message that went out to the relays.
type Entry struct {
	Receipt      backend.MessageReceipt
	SentAt       int64
	Acknowledged bool
}

// Ledger remembers what was sent so a message is never sent twice, even when
// the server did not take the acknowledgement.
type Ledger struct {
	mutex   *deadlock.Mutex
	entries map[backend.ID]Entry
	mind    string
}

func NewLedger() *Ledger {
	return &Ledger{mutex: &deadlock.Mutex{}, entries: make(map[backend.ID]Entry)}
}

// LoadLedger restores the ledger kept in the flat file store under mind.
func LoadLedger(mind string) (*Ledger, error) {
	l := NewLedger()
	l.mind = mind
	file, ok := actors.Open(mind, "ledger")
	if !ok {
		return l, nil
	}
	defer file.Close()
	b, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(b, &l.entries); err != nil {
		return nil, fmt.Errorf("reading outbox ledger: %w", err)
	}
	return l, nil
}

func (l *Ledger) Get(id backend.ID) (Entry, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	e, ok := l.entries[id]
	return e, ok
}

func (l *Ledger) Record(entry Entry) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.entries[entry.Receipt.ID] = entry
	return l.persist()
}

func (l *Ledger) Acknowledge(id backend.ID) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return fmt.Errorf("message %s is not in the ledger", id)
	}
	e.Acknowledged = true
	l.entries[id] = e
	return l.persist()
}

// Unacknowledged lists sent messages the server does not know about yet, oldest first.
func (l *Ledger) Unacknowledged() (r []Entry) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	for _, e := range maps.Values(l.entries) {
		if !e.Acknowledged {
			r = append(r, e)
		}
	}
	slices.SortFunc(r, func(a, b Entry) bool {
		if a.SentAt != b.SentAt {
			return a.SentAt < b.SentAt
		}
		return a.Receipt.ID < b.Receipt.ID
	})
	return
}

func (l *Ledger) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.entries)
}

// persist must be called with the mutex held.
func (l *Ledger) persist() error {
	if l.mind == "" {
		return nil
	}
	b, err := json.Marshal(l.entries)
	if err != nil {
		return err
	}
	return actors.Write(l.mind, "ledger", b)
}
