package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"nostrdesk/engine/actors"
	"nostrdesk/engine/desk"
	"nostrdesk/engine/library"
)

// dm-tool <recipient pubkey> <message...> sends one direct message from the site key.
func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: dm-tool <recipient pubkey> <message>")
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
	ctx, cancel := context.WithTimeout(context.Background(), d.Pool.Timeout())
	defer cancel()
	event, err := d.Inbox.Send(ctx, strings.ToLower(os.Args[1]), strings.Join(os.Args[2:], " "))
	if err != nil {
		library.LogCLI(err.Error(), 1)
		os.Exit(1)
	}
	fmt.Println(event.ID)
}
