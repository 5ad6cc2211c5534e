package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/viper"
	"nostrdesk/engine/actors"
	"nostrdesk/engine/desk"
	"nostrdesk/engine/library"
	"nostrdesk/state/payments"
)

// paywatch <order id> [pay] watches the invoice of an order until it is paid.
// With "pay" the configured customer wallet pays it.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: paywatch <order id> [pay]")
		os.Exit(2)
	}
	conf := viper.New()
	actors.InitConfig(conf)
	actors.SetConfig(conf)
	d, err := desk.New(conf, actors.MyWallet().Keys())
	if err != nil {
		library.LogCLI(err.Error(), 0)
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	invoice, err := d.Backend.FetchMerchantInvoice(ctx, os.Args[1])
	if err != nil {
		library.LogCLI(err.Error(), 1)
		os.Exit(1)
	}
	printInvoice(invoice.Invoice)
	session, err := d.Watch(ctx, invoice)
	if err != nil {
		library.LogCLI(err.Error(), 1)
		os.Exit(1)
	}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		select {
		case <-interrupt:
			session.Cancel()
		case <-session.Done():
		}
	}()
	if len(os.Args) > 2 && os.Args[2] == "pay" {
		if err := session.PayWithWallet(ctx); err != nil {
			library.LogCLI(err.Error(), 2)
		}
	}
	outcome, _ := session.Wait(ctx)
	switch outcome.State {
	case payments.Confirmed:
		fmt.Printf("Order %s paid (%s)\n", invoice.OrderID, outcome.Strategy)
		if outcome.Preimage != "" {
			fmt.Printf("preimage: %s\n", outcome.Preimage)
		}
		if outcome.Err != nil {
			library.LogCLI(outcome.Err.Error(), 1)
		}
	case payments.Cancelled:
		if outcome.Hint != "" {
			fmt.Println(outcome.Hint)
		}
		fmt.Printf("Stopped watching order %s\n", invoice.OrderID)
		os.Exit(1)
	}
}

func printInvoice(invoice string) {
	qr, err := qrcode.New("lightning:"+invoice, qrcode.Low)
	if err != nil {
		library.LogCLI(err.Error(), 2)
	} else {
		fmt.Println(qr.ToSmallString(false))
	}
	fmt.Println(invoice)
}
