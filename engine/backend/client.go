package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nostrdesk/engine/library"
)

const (
	ActionQueuedMessages  = "nostr_get_queued_messages"
	ActionMarkSent        = "nostr_mark_message_sent"
	ActionCheckPayment    = "nostr_check_payment"
	ActionPaymentComplete = "nostr_payment_complete"
	ActionMerchantInvoice = "nostr_get_invoice"
)

// Client calls the WordPress admin-ajax.php endpoint.
type Client struct {
	endpoint string
	nonce    string
	http     *http.Client
}

func NewClient(endpoint, nonce string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		nonce:    nonce,
		http:     &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) post(ctx context.Context, action string, values url.Values, into interface{}) error {
	if values == nil {
		values = url.Values{}
	}
	values.Set("action", action)
	values.Set("nonce", c.nonce)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return fmt.Errorf("%s: %w: %s", action, library.ErrServerSyncFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %s", action, library.ErrServerSyncFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s: %w: %s", action, library.ErrServerSyncFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w: %s", action, library.ErrServerSyncFailed, resp.Status)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: %w: unreadable response: %s", action, library.ErrServerSyncFailed, err)
	}
	if !env.Success {
		return fmt.Errorf("%s: %w: %s", action, library.ErrServerSyncFailed, failure(env.Data))
	}
	if into == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, into); err != nil {
		return fmt.Errorf("%s: %w: unreadable data: %s", action, library.ErrServerSyncFailed, err)
	}
	return nil
}

// failure extracts the message of wp_send_json_error, which is a string or {message}.
func failure(data json.RawMessage) string {
	var s string
	if json.Unmarshal(data, &s) == nil && s != "" {
		return s
	}
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &m) == nil && m.Message != "" {
		return m.Message
	}
	return "request rejected"
}

func (c *Client) GetQueuedOutboundMessages(ctx context.Context) (messages []QueuedMessage, err error) {
	err = c.post(ctx, ActionQueuedMessages, nil, &messages)
	return
}

func (c *Client) MarkMessageSent(ctx context.Context, receipt MessageReceipt) error {
	return c.post(ctx, ActionMarkSent, url.Values{
		"id":        {string(receipt.ID)},
		"event_id":  {receipt.EventID},
		"recipient": {receipt.Recipient},
		"subject":   {receipt.Subject},
		"username":  {receipt.Username},
	}, nil)
}

func (c *Client) CheckPaymentSettled(ctx context.Context, orderID, paymentHash string) (bool, error) {
	var result struct {
		Settled bool `json:"settled"`
		Paid    bool `json:"paid"`
	}
	err := c.post(ctx, ActionCheckPayment, url.Values{
		"order_id":     {orderID},
		"payment_hash": {paymentHash},
	}, &result)
	return result.Settled || result.Paid, err
}

func (c *Client) NotifyPaymentComplete(ctx context.Context, orderID, preimage string) error {
	values := url.Values{"order_id": {orderID}}
	if preimage != "" {
		values.Set("preimage", preimage)
	}
	return c.post(ctx, ActionPaymentComplete, values, nil)
}

func (c *Client) FetchMerchantInvoice(ctx context.Context, orderID string) (invoice MerchantInvoice, err error) {
	err = c.post(ctx, ActionMerchantInvoice, url.Values{"order_id": {orderID}}, &invoice)
	if invoice.OrderID == "" {
		invoice.OrderID = orderID
	}
	return
}
