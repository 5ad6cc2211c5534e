package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"nostrdesk/engine/actors"
	"nostrdesk/engine/desk"
	"nostrdesk/engine/library"
)

// zap <lightning address> <sats> [comment] pays a reward from the merchant wallet.
func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: zap <lightning address> <sats> [comment]")
		os.Exit(2)
	}
	address, ok := actors.LightningAddress(os.Args[1])
	if !ok {
		library.LogCLI(fmt.Sprintf("%q is not a lightning address", os.Args[1]), 1)
		os.Exit(2)
	}
	amount, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil || amount <= 0 {
		library.LogCLI("amount must be a positive number of sats", 1)
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
	if d.Merchant == nil {
		library.LogCLI(fmt.Errorf("set merchantNWC to send rewards: %w", library.ErrWalletUnavailable), 1)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	invoice, err := actors.GetInvoice(ctx, &http.Client{Timeout: 15 * time.Second}, address, amount, strings.Join(os.Args[3:], " "))
	if err != nil {
		library.LogCLI(err.Error(), 1)
		os.Exit(1)
	}
	preimage, err := d.Merchant.SendPayment(ctx, invoice)
	if err != nil {
		library.LogCLI(err.Error(), 1)
		os.Exit(1)
	}
	if bolt11, err := actors.DecodeInvoice(invoice); err == nil && !library.PreimageMatches(preimage, bolt11.PaymentHash) {
		library.LogCLI("wallet returned a preimage that does not match the invoice", 2)
	}
	fmt.Printf("Paid %d sats to %s\npreimage: %s\n", amount, address, preimage)
}
