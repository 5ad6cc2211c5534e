// Package desk assembles the engine's components from configuration.
package desk

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/spf13/viper"
	"nostrdesk/engine/actors"
	"nostrdesk/engine/backend"
	"nostrdesk/engine/library"
	"nostrdesk/messaging/codec"
	"nostrdesk/messaging/inbox"
	"nostrdesk/messaging/nwc"
	"nostrdesk/messaging/relays"
	"nostrdesk/state/outbox"
	"nostrdesk/state/payments"
	"nostrdesk/state/threads"
)

type Desk struct {
	Config  *viper.Viper
	Keys    library.Keys
	Codec   *codec.Codec
	Pool    *relays.Pool
	Inbox   *inbox.Inbox
	Backend *backend.Client
	Outbox  *outbox.Processor
	// Merchant is the store wallet, nil when merchantNWC is not set.
	Merchant *nwc.Client
	// Customer pays invoices from the console, nil when customerNWC is not set.
	Customer *nwc.Client
}

// New builds every component for the site identity keys.
func New(conf *viper.Viper, keys library.Keys) (*Desk, error) {
	d := &Desk{
		Config: conf,
		Keys:   keys,
		Codec:  codec.Default(),
		Pool:   relays.NewPool(relays.DialNostr, actors.Duration(conf, "fetchTimeout", relays.DefaultTimeout)),
		Backend: backend.NewClient(
			conf.GetString("backend.endpoint"),
			conf.GetString("backend.nonce"),
			actors.Duration(conf, "backend.timeout", 15*time.Second),
		),
	}
	store := threads.NewStore(keys.Public, conf.GetInt("profileCacheSize"), actors.Duration(conf, "profileCacheTTL", time.Hour))
	config := inbox.DefaultConfig(conf.GetStringSlice("relays"))
	config.RefreshInterval = actors.Duration(conf, "historyRefreshInterval", config.RefreshInterval)
	config.Overlap = actors.Duration(conf, "historyOverlap", config.Overlap)
	config.Lookback = actors.Duration(conf, "historyLookback", config.Lookback)
	d.Inbox = inbox.New(keys, config, inbox.PoolTransport(d.Pool), d.Codec, store)

	ledger, err := outbox.LoadLedger("outbox")
	if err != nil {
		return nil, err
	}
	d.Outbox = outbox.NewProcessor(d.Backend, d.Inbox, ledger)

	if d.Merchant, err = d.wallet(conf.GetString("merchantNWC")); err != nil {
		return nil, fmt.Errorf("merchantNWC: %w", err)
	}
	if d.Customer, err = d.wallet(conf.GetString("customerNWC")); err != nil {
		return nil, fmt.Errorf("customerNWC: %w", err)
	}
	return d, nil
}

func (d *Desk) wallet(uri string) (*nwc.Client, error) {
	if uri == "" {
		return nil, nil
	}
	conn, err := nwc.Parse(uri)
	if err != nil {
		return nil, err
	}
	return nwc.NewClient(conn, d.Codec, d.Pool)
}

// Run keeps the inbox and the outbox going until ctx is done. onMessage sees
// every message relays push live.
func (d *Desk) Run(ctx context.Context, onMessage func(threads.Summary)) error {
	go d.Inbox.Run(ctx)
	go d.Outbox.Run(ctx, actors.Duration(d.Config, "outboxInterval", 5*time.Minute))
	for {
		err := d.Inbox.Listen(ctx, func(event nostr.Event) {
			if onMessage == nil {
				return
			}
			counterparty, err := codec.Counterparty(event, d.Keys.Public)
			if err != nil {
				return
			}
			if summary, ok := d.Inbox.Store().Thread(counterparty); ok {
				onMessage(summary)
			}
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		library.LogCLI(fmt.Sprintf("live subscription failed: %s", err.Error()), 2)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.Pool.Timeout()):
		}
	}
}

// Watch starts a confirmation session for the invoice the server created for an order.
func (d *Desk) Watch(ctx context.Context, merchantInvoice backend.MerchantInvoice) (*payments.Session, error) {
	invoice := payments.Invoice{
		OrderID:     merchantInvoice.OrderID,
		Invoice:     merchantInvoice.Invoice,
		PaymentHash: merchantInvoice.PaymentHash,
		AmountSats:  int64(merchantInvoice.AmountSats),
	}
	merchant := d.Merchant
	conn, err := merchantInvoice.Merchant()
	if err != nil {
		return nil, err
	}
	if conn != nil {
		if merchant, err = nwc.NewClient(*conn, d.Codec, d.Pool); err != nil {
			return nil, err
		}
	}
	if merchant != nil {
		c := merchant.Connection()
		invoice.Merchant = &c
	}
	config := payments.DefaultConfig()
	config.Interval = actors.Duration(d.Config, "paymentCheckInterval", config.Interval)
	config.MaxAwait = actors.Duration(d.Config, "paymentMaxAwait", config.MaxAwait)
	session := payments.NewSession(
		invoice,
		config,
		payments.Strategies(merchant, d.Backend),
		[]payments.Provider{payments.NWCWallet("customer wallet", d.Customer)},
		d.Backend,
	)
	return session, session.Start(ctx)
}
