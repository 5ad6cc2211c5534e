package threads

import (
	"fmt"

	"nostrdesk/engine/library"
)

// Open decrypts a thread for viewing. Nothing is decrypted during ingestion;
// plaintext is produced here, once per event, and remembered. A message that
// cannot be decrypted is returned with Failed set and the rest of the thread
// is still decrypted.
func (s *Store) Open(counterparty library.Account, decrypter Decrypter) []Message {
	events := s.Messages(counterparty)
	r := make([]Message, 0, len(events))
	for _, event := range events {
		m := Message{Event: event, Outgoing: event.PubKey == s.self}
		s.mutex.Lock()
		plaintext, cached := s.plaintext[event.ID]
		s.mutex.Unlock()
		if cached {
			m.Plaintext = plaintext
			r = append(r, m)
			continue
		}
		plaintext, err := decrypter.DecryptEvent(event)
		if err != nil {
			library.LogCLI(fmt.Sprintf("could not decrypt message %s: %s", event.ID, err), 3)
			m.Failed = true
			m.Err = err
			r = append(r, m)
			continue
		}
		s.mutex.Lock()
		s.plaintext[event.ID] = plaintext
		s.mutex.Unlock()
		m.Plaintext = plaintext
		r = append(r, m)
	}
	return r
}

// Visible drops messages that failed to decrypt.
func Visible(messages []Message) (r []Message) {
	for _, m := range messages {
		if !m.Failed {
			r = append(r, m)
		}
	}
	return
}
