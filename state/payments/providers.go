package payments

import (
	"context"
	"fmt"

	"nostrdesk/messaging/nwc"
)

// Provider is a wallet able to pay an invoice on the customer's behalf.
type Provider interface {
	Name() string
	Available() bool
	// PayInvoice returns the preimage.
	PayInvoice(ctx context.Context, invoice string) (string, error)
}

type PaymentSender interface {
	SendPayment(ctx context.Context, invoice string) (string, error)
}

type GenericRequester interface {
	Request(ctx context.Context, method string, params map[string]interface{}) (map[string]interface{}, error)
}

// InjectedWallet adapts a wallet exposing a send payment call, a generic
// request call, or both. The send payment call is used when present.
type InjectedWallet struct {
	Label     string
	Sender    PaymentSender
	Requester GenericRequester
}

// NWCWallet wraps a customer wallet connection; *nwc.Client has both capabilities.
func NWCWallet(label string, client *nwc.Client) *InjectedWallet {
	if client == nil {
		return &InjectedWallet{Label: label}
	}
	return &InjectedWallet{Label: label, Sender: client, Requester: client}
}

func (w *InjectedWallet) Name() string { return w.Label }

func (w *InjectedWallet) Available() bool {
	return w.Sender != nil || w.Requester != nil
}

func (w *InjectedWallet) PayInvoice(ctx context.Context, invoice string) (string, error) {
	if w.Sender != nil {
		preimage, err := w.Sender.SendPayment(ctx, invoice)
		if err != nil {
			return "", err
		}
		return requirePreimage(preimage)
	}
	if w.Requester != nil {
		result, err := w.Requester.Request(ctx, nwc.MethodPayInvoice, map[string]interface{}{"invoice": invoice})
		if err != nil {
			return "", err
		}
		preimage, _ := result["preimage"].(string)
		return requirePreimage(preimage)
	}
	return "", fmt.Errorf("%s has no payment capability", w.Label)
}

func requirePreimage(preimage string) (string, error) {
	if preimage == "" {
		return "", fmt.Errorf("wallet returned no preimage")
	}
	return preimage, nil
}
