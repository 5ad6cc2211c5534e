package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"nostrdesk/engine/library"
	"nostrdesk/messaging/nwc"
)

// Collaborator is the store server as seen from the engine.
type Collaborator interface {
	GetQueuedOutboundMessages(ctx context.Context) ([]QueuedMessage, error)
	MarkMessageSent(ctx context.Context, receipt MessageReceipt) error
	CheckPaymentSettled(ctx context.Context, orderID, paymentHash string) (bool, error)
	NotifyPaymentComplete(ctx context.Context, orderID, preimage string) error
	FetchMerchantInvoice(ctx context.Context, orderID string) (MerchantInvoice, error)
}

// ID accepts both JSON numbers and strings, WordPress sends either.
type ID string

func (i *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*i = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*i = ID(n.String())
	return nil
}

// QueuedMessage is a direct message the server wants delivered.
type QueuedMessage struct {
	ID        ID              `json:"id"`
	Recipient library.Account `json:"recipient"`
	Message   string          `json:"message"`
	Subject   string          `json:"subject,omitempty"`
	Username  string          `json:"username,omitempty"`
}

// Text is what goes into the encrypted event.
func (m QueuedMessage) Text() string {
	if m.Subject == "" {
		return m.Message
	}
	return m.Subject + "\n\n" + m.Message
}

type MessageReceipt struct {
	ID        ID
	EventID   library.Sha256
	Recipient library.Account
	Subject   string
	Username  string
}

// MerchantInvoice is the invoice the server created for an order.
type MerchantInvoice struct {
	OrderID     string `json:"order_id"`
	Invoice     string `json:"invoice"`
	PaymentHash string `json:"payment_hash"`
	AmountSats  Sats   `json:"amount"`
	// wallet connect URI of the merchant wallet; empty when not configured
	Connection string `json:"nwc,omitempty"`
}

// Merchant parses the merchant wallet connection, nil when none is configured.
func (m MerchantInvoice) Merchant() (*nwc.Connection, error) {
	if m.Connection == "" {
		return nil, nil
	}
	c, err := nwc.Parse(m.Connection)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Sats accepts numbers and numeric strings.
type Sats int64

func (s *Sats) UnmarshalJSON(b []byte) error {
	var id ID
	if err := id.UnmarshalJSON(b); err != nil {
		return err
	}
	if id == "" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return err
	}
	*s = Sats(n)
	return nil
}
