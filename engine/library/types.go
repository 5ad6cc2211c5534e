package library

// Account is a hex encoded public key.
type Account = string

type Sha256 = string

// Keys holds the key material used to sign and decrypt on behalf of one identity.
// Secret must never be logged.
type Keys struct {
	Secret string
	Public Account
}
