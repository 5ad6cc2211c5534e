package payments

import (
	"fmt"
	"time"

	"nostrdesk/engine/actors"
	"nostrdesk/engine/library"
)

// inspect fills a missing payment hash or amount from the BOLT11 string and
// returns how long the invoice stays payable. ok is false when it does not decode.
func inspect(invoice Invoice, now time.Time) (Invoice, time.Duration, bool) {
	bolt11, err := actors.DecodeInvoice(invoice.Invoice)
	if err != nil {
		library.LogCLI(fmt.Sprintf("order %s: could not decode invoice: %s", invoice.OrderID, err.Error()), 3)
		return invoice, 0, false
	}
	if invoice.PaymentHash == "" {
		invoice.PaymentHash = bolt11.PaymentHash
	} else if bolt11.PaymentHash != "" && bolt11.PaymentHash != invoice.PaymentHash {
		library.LogCLI(fmt.Sprintf("order %s: payment hash does not match the invoice", invoice.OrderID), 2)
	}
	sats := int64(bolt11.MSatoshi) / 1000
	if invoice.AmountSats == 0 {
		invoice.AmountSats = sats
	} else if sats > 0 && sats != invoice.AmountSats {
		library.LogCLI(fmt.Sprintf("order %s: amount on invoice is %d but %d was expected", invoice.OrderID, sats, invoice.AmountSats), 2)
	}
	expires := time.Unix(int64(bolt11.CreatedAt), 0).Add(time.Duration(bolt11.Expiry) * time.Second)
	return invoice, expires.Sub(now), true
}

// ManualPaymentHint is shown when nothing could confirm the payment automatically.
func ManualPaymentHint(invoice Invoice) string {
	return fmt.Sprintf("Payment for order %s was not detected. Copy the invoice and pay it from any Lightning wallet: %s", invoice.OrderID, invoice.Invoice)
}
