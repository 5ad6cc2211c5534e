package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/viper"
	"nostrdesk/engine/actors"
	"nostrdesk/engine/desk"
	"nostrdesk/engine/library"
	"nostrdesk/state/threads"
)

func main() {
	// Various aspect of this application require global and local settings. To keep things
	// clean and tidy we put these settings in a Viper configuration.
	conf := viper.New()

	// Now we initialise this configuration with basic settings that are required on startup.
	actors.InitConfig(conf)
	// make the config accessible globally
	actors.SetConfig(conf)

	d, err := desk.New(conf, actors.MyWallet().Keys())
	if err != nil {
		library.LogCLI(err.Error(), 0)
		os.Exit(1)
	}
	fmt.Printf("Site pubkey: %s\n", d.Keys.Public)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		select {
		case <-interrupt:
			actors.Shutdown()
		case <-actors.GetTerminateChan():
		}
		cancel()
	}()
	go cliListener(ctx, d)

	err = d.Run(ctx, func(summary threads.Summary) {
		fmt.Printf("\nNew message from %s (%d in thread)\n", summary.Profile.Label(summary.Counterparty), summary.Messages)
	})
	if err != nil && ctx.Err() == nil {
		library.LogCLI(err.Error(), 1)
	}
	fmt.Println("Bye")
}
