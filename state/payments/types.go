package payments

import (
	"context"
	"time"

	"nostrdesk/messaging/nwc"
)

type State int

const (
	Created State = iota
	AwaitingPayment
	Confirmed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case AwaitingPayment:
		return "awaiting payment"
	case Confirmed:
		return "confirmed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether the session can no longer change state.
func (s State) Terminal() bool {
	return s == Confirmed || s == Cancelled
}

// Invoice is the order invoice a session watches.
type Invoice struct {
	OrderID     string
	Invoice     string
	PaymentHash string
	AmountSats  int64
	// Merchant is read only, nil when the store has no wallet connection configured.
	Merchant *nwc.Connection
}

// Settlement is what a strategy learned on one check.
type Settlement struct {
	Settled  bool
	Preimage string
}

// Outcome is the terminal result of a session.
type Outcome struct {
	State    State
	Strategy string
	Preimage string
	// Err is ErrPaymentTimeout for a timed out session, or ErrServerSyncFailed
	// when a confirmed payment could not be reported to the server.
	Err  error
	Hint string
}

type Config struct {
	Interval       time.Duration
	MaxAwait       time.Duration
	NotifyAttempts int
	NotifyBackoff  time.Duration
	NotifyTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:       3 * time.Second,
		MaxAwait:       10 * time.Minute,
		NotifyAttempts: 3,
		NotifyBackoff:  time.Second,
		NotifyTimeout:  15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.MaxAwait <= 0 {
		c.MaxAwait = d.MaxAwait
	}
	if c.NotifyAttempts <= 0 {
		c.NotifyAttempts = d.NotifyAttempts
	}
	if c.NotifyBackoff < 0 {
		c.NotifyBackoff = 0
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = d.NotifyTimeout
	}
	return c
}

// Notifier is told about a confirmed payment.
type Notifier interface {
	NotifyPaymentComplete(ctx context.Context, orderID, preimage string) error
}
