package nwc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"nostrdesk/engine/library"
	"nostrdesk/messaging/codec"
)

// Transport publishes a request and waits for the first accepted reply.
// *relays.Pool satisfies it.
type Transport interface {
	Request(ctx context.Context, urls []string, event nostr.Event, filter nostr.Filter, accept func(nostr.Event) bool) (nostr.Event, error)
}

// Client talks NIP-47 to one wallet service.
type Client struct {
	conn      Connection
	keys      library.Keys
	codec     *codec.Codec
	transport Transport
}

func NewClient(conn Connection, c *codec.Codec, transport Transport) (*Client, error) {
	pub, err := c.PublicKey(conn.Secret)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:      conn,
		keys:      library.Keys{Secret: conn.Secret, Public: pub},
		codec:     c,
		transport: transport,
	}, nil
}

// Connection is the wallet connection the client was built from.
func (c *Client) Connection() Connection {
	return c.conn
}

// Wallet is the wallet service pubkey.
func (c *Client) Wallet() library.Account {
	return c.conn.PubKey
}

// Do sends method with params and decodes the result into result, which may be nil.
func (c *Client) Do(ctx context.Context, method string, params interface{}, result interface{}) error {
	id := uuid.NewString()
	body, err := json.Marshal(Request{ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}
	ciphertext, err := c.codec.EncryptDirect(string(body), c.keys.Secret, c.conn.PubKey)
	if err != nil {
		return err
	}
	request, err := c.codec.Sign(codec.BuildEvent(
		codec.KindNWCRequest,
		nostr.Tags{nostr.Tag{"p", c.conn.PubKey}},
		ciphertext,
		nostr.Timestamp(time.Now().Unix()),
	), c.keys.Secret)
	if err != nil {
		return err
	}
	filter := nostr.Filter{
		Kinds:   []int{codec.KindNWCResponse},
		Authors: []string{c.conn.PubKey},
		Tags:    nostr.TagMap{"e": []string{request.ID}},
	}
	reply, err := c.transport.Request(ctx, []string{c.conn.RelayURL}, request, filter, func(ev nostr.Event) bool {
		e, ok := library.GetFirstTag(ev, "e")
		return ok && e == request.ID && ev.PubKey == c.conn.PubKey
	})
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	plaintext, err := c.codec.DecryptDirect(reply.Content, c.keys.Secret, c.conn.PubKey)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	var response Response
	if err := json.Unmarshal([]byte(plaintext), &response); err != nil {
		return fmt.Errorf("%s: could not parse response %s: %w", method, reply.ID, err)
	}
	if response.ID != "" && response.ID != id {
		return fmt.Errorf("%s: response %s answers request %s, not %s", method, reply.ID, response.ID, id)
	}
	if response.Error != nil {
		return fmt.Errorf("%s: %w", method, response.Error)
	}
	if result == nil || len(response.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(response.Result, result); err != nil {
		return fmt.Errorf("%s: could not parse result: %w", method, err)
	}
	return nil
}

// LookupInvoice asks the wallet for the state of an invoice, by payment hash when known.
func (c *Client) LookupInvoice(ctx context.Context, paymentHash, invoice string) (s InvoiceStatus, err error) {
	params := LookupInvoiceParams{PaymentHash: paymentHash}
	if paymentHash == "" {
		params.Invoice = invoice
	}
	err = c.Do(ctx, MethodLookupInvoice, params, &s)
	return
}

// GetBalance returns the wallet balance in millisatoshis.
func (c *Client) GetBalance(ctx context.Context) (int64, error) {
	var r BalanceResult
	if err := c.Do(ctx, MethodGetBalance, struct{}{}, &r); err != nil {
		return 0, err
	}
	return r.Balance, nil
}

// SendPayment pays invoice and returns the preimage.
func (c *Client) SendPayment(ctx context.Context, invoice string) (string, error) {
	var r PayInvoiceResult
	if err := c.Do(ctx, MethodPayInvoice, PayInvoiceParams{Invoice: invoice}, &r); err != nil {
		return "", err
	}
	return r.Preimage, nil
}

// Request is the untyped form of Do.
func (c *Client) Request(ctx context.Context, method string, params map[string]interface{}) (map[string]interface{}, error) {
	r := make(map[string]interface{})
	if err := c.Do(ctx, method, params, &r); err != nil {
		return nil, err
	}
	return r, nil
}
