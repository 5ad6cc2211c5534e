package nwc

import (
	"fmt"
	"net/url"
	"strings"

	"nostrdesk/engine/library"
)

const Scheme = "nostr+walletconnect"

// Connection is a parsed wallet connect URI. Secret must never be logged.
type Connection struct {
	PubKey   library.Account
	RelayURL string
	Secret   string
}

// Parse reads nostr+walletconnect://<pubkey>?relay=<url>&secret=<hex>.
func Parse(uri string) (Connection, error) {
	malformed := func(reason string) (Connection, error) {
		return Connection{}, fmt.Errorf("%w: %s", library.ErrMalformedConnectionString, reason)
	}
	if !strings.HasPrefix(uri, Scheme+"://") {
		return malformed("must start with " + Scheme + "://")
	}
	p, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return malformed(err.Error())
	}
	pubkey := strings.ToLower(p.Host)
	if !library.IsValid32ByteHex(pubkey) {
		return malformed("wallet pubkey must be 64 hex characters")
	}
	query := p.Query()
	relay := query.Get("relay")
	if relay == "" {
		return malformed("missing relay parameter")
	}
	if !strings.HasPrefix(relay, "wss://") && !strings.HasPrefix(relay, "ws://") {
		return malformed("relay must be a ws:// or wss:// URL")
	}
	secret := strings.ToLower(query.Get("secret"))
	if secret == "" {
		return malformed("missing secret parameter")
	}
	if !library.IsValid32ByteHex(secret) {
		return malformed("secret must be 64 hex characters")
	}
	return Connection{PubKey: pubkey, RelayURL: relay, Secret: secret}, nil
}

func (c Connection) String() string {
	q := url.Values{}
	q.Set("relay", c.RelayURL)
	q.Set("secret", c.Secret)
	return Scheme + "://" + c.PubKey + "?" + q.Encode()
}
