package nwc

import (
	"encoding/json"
)

const (
	MethodPayInvoice    = "pay_invoice"
	MethodGetBalance    = "get_balance"
	MethodLookupInvoice = "lookup_invoice"
	MethodMakeInvoice   = "make_invoice"
)

// Request is the decrypted content of a kind 23194 event.
type Request struct {
	ID     string      `json:"id,omitempty"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// Response is the decrypted content of a kind 23195 event.
type Response struct {
	ID         string          `json:"id,omitempty"`
	ResultType string          `json:"result_type,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *WalletError    `json:"error,omitempty"`
}

// WalletError is an error reported by the wallet service.
type WalletError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *WalletError) Error() string {
	if e.Code == "" {
		return "wallet error: " + e.Message
	}
	return "wallet error " + e.Code + ": " + e.Message
}

type LookupInvoiceParams struct {
	PaymentHash string `json:"payment_hash,omitempty"`
	Invoice     string `json:"invoice,omitempty"`
}

type InvoiceStatus struct {
	Type        string `json:"type,omitempty"`
	State       string `json:"state,omitempty"`
	Invoice     string `json:"invoice,omitempty"`
	PaymentHash string `json:"payment_hash,omitempty"`
	Preimage    string `json:"preimage,omitempty"`
	Amount      int64  `json:"amount"` // millisatoshis
	Settled     bool   `json:"settled,omitempty"`
	SettledAt   int64  `json:"settled_at,omitempty"`
}

// IsSettled accepts every settlement signal wallets are known to send.
func (s InvoiceStatus) IsSettled() bool {
	return s.Settled || s.SettledAt > 0 || s.State == "settled"
}

type BalanceResult struct {
	Balance int64 `json:"balance"` // millisatoshis
}

type PayInvoiceParams struct {
	Invoice string `json:"invoice"`
}

type PayInvoiceResult struct {
	Preimage string `json:"preimage"`
}
