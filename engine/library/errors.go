package library

import "errors"

var (
	ErrMalformedConnectionString = errors.New("malformed wallet connection string")
	ErrInvalidKey                = errors.New("invalid key")
	ErrSigningUnavailable        = errors.New("signing primitive unavailable")
	ErrDecryptionFailed          = errors.New("decryption failed")
	ErrNoRelaysReachable         = errors.New("no relays reachable")
	ErrRelayTimeout              = errors.New("relay timeout")
	ErrWalletUnavailable         = errors.New("no wallet capability available")
	ErrPaymentTimeout            = errors.New("payment not confirmed in time")
	ErrServerSyncFailed          = errors.New("server sync failed")
)
