package payments

import (
	"context"
	"fmt"

	"nostrdesk/engine/library"
	"nostrdesk/messaging/nwc"
)

// Strategy is one polled way of learning that an invoice was paid.
// Prepare checks the precondition once; a strategy whose Prepare fails is
// not polled for the rest of the session.
type Strategy interface {
	Name() string
	Prepare(ctx context.Context, invoice Invoice) error
	Check(ctx context.Context, invoice Invoice) (Settlement, error)
}

type InvoiceLooker interface {
	LookupInvoice(ctx context.Context, paymentHash, invoice string) (nwc.InvoiceStatus, error)
}

// NWCLookup asks the merchant wallet about the invoice with lookup_invoice.
type NWCLookup struct {
	Wallet InvoiceLooker
}

func (n *NWCLookup) Name() string { return "nwc-lookup" }

func (n *NWCLookup) Prepare(ctx context.Context, invoice Invoice) error {
	if n.Wallet == nil || invoice.Merchant == nil {
		return fmt.Errorf("merchant wallet: %w", library.ErrWalletUnavailable)
	}
	if invoice.PaymentHash == "" && invoice.Invoice == "" {
		return fmt.Errorf("nothing to look up")
	}
	return nil
}

func (n *NWCLookup) Check(ctx context.Context, invoice Invoice) (Settlement, error) {
	status, err := n.Wallet.LookupInvoice(ctx, invoice.PaymentHash, invoice.Invoice)
	if err != nil {
		return Settlement{}, err
	}
	return Settlement{Settled: status.IsSettled(), Preimage: status.Preimage}, nil
}

type BalanceReader interface {
	// GetBalance returns millisatoshis.
	GetBalance(ctx context.Context) (int64, error)
}

// BalanceDelta watches the merchant wallet balance grow by the invoice amount.
type BalanceDelta struct {
	Wallet  BalanceReader
	initial int64
}

func (b *BalanceDelta) Name() string { return "balance-delta" }

func (b *BalanceDelta) Prepare(ctx context.Context, invoice Invoice) error {
	if b.Wallet == nil || invoice.Merchant == nil {
		return fmt.Errorf("merchant wallet: %w", library.ErrWalletUnavailable)
	}
	if invoice.AmountSats <= 0 {
		return fmt.Errorf("invoice amount unknown")
	}
	balance, err := b.Wallet.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("capturing initial balance: %w", err)
	}
	b.initial = balance / 1000
	return nil
}

func (b *BalanceDelta) Check(ctx context.Context, invoice Invoice) (Settlement, error) {
	balance, err := b.Wallet.GetBalance(ctx)
	if err != nil {
		return Settlement{}, err
	}
	return Settlement{Settled: deltaCovers(b.initial, balance/1000, invoice.AmountSats)}, nil
}

// deltaCovers allows one sat of rounding between the two balance reads.
func deltaCovers(initialSats, currentSats, amountSats int64) bool {
	return currentSats-initialSats >= amountSats-1
}

type SettlementChecker interface {
	CheckPaymentSettled(ctx context.Context, orderID, paymentHash string) (bool, error)
}

// ServerCheck asks the store server, which always has a way to tell.
type ServerCheck struct {
	Server SettlementChecker
}

func (s *ServerCheck) Name() string { return "server-check" }

func (s *ServerCheck) Prepare(ctx context.Context, invoice Invoice) error {
	if s.Server == nil {
		return fmt.Errorf("no server collaborator")
	}
	return nil
}

func (s *ServerCheck) Check(ctx context.Context, invoice Invoice) (Settlement, error) {
	settled, err := s.Server.CheckPaymentSettled(ctx, invoice.OrderID, invoice.PaymentHash)
	return Settlement{Settled: settled}, err
}

// Strategies returns the polled strategies in precedence order. wallet may be nil.
func Strategies(wallet *nwc.Client, server SettlementChecker) []Strategy {
	var s []Strategy
	if wallet != nil {
		s = append(s, &NWCLookup{Wallet: wallet}, &BalanceDelta{Wallet: wallet})
	}
	return append(s, &ServerCheck{Server: server})
}
