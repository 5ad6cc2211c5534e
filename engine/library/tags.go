package library

import (
	"github.com/nbd-wtf/go-nostr"
)

func GetFirstTag(e nostr.Event, startsWith string) (string, bool) {
	for _, tag := range e.Tags {
		if tag.StartsWith([]string{startsWith}) && len(tag) > 1 {
			return tag.Value(), true
		}
	}
	return "", false
}

// GetAllTags returns the value of every tag with the given key, in order.
func GetAllTags(e nostr.Event, key string) (r []string) {
	for _, tag := range e.Tags {
		if tag.StartsWith([]string{key}) && len(tag) > 1 {
			r = append(r, tag.Value())
		}
	}
	return
}
