package main

import (
	"context"
	"fmt"
	"time"

	"github.com/eiannone/keyboard"
	"nostrdesk/engine/actors"
	"nostrdesk/engine/desk"
	"nostrdesk/state/threads"
)

// cliListener listens for keypresses and executes commands against the running desk.
func cliListener(ctx context.Context, d *desk.Desk) {
	fmt.Println("ADMIN CONSOLE:\nt: threads\no: open most recent thread\nr: refresh now\np: process outbox now\nw: site pubkey\nc: engine config\nq: to quit")
	for {
		r, k, err := keyboard.GetSingleKey()
		if err != nil {
			actors.Shutdown()
			return
		}
		str := string(r)
		switch str {
		default:
			if k == keyboard.KeyEnter {
				fmt.Println("\n-----------------------------------")
				break
			}
			if r == 0 {
				break
			}
			fmt.Println("Key " + str + " is not bound to anything. See cliListener.go for more details.")
		case "q":
			actors.Shutdown()
			return
		case "t":
			summaries := d.Inbox.Threads()
			if len(summaries) == 0 {
				fmt.Println("No conversations yet")
			}
			for _, s := range summaries {
				fmt.Printf("%s  %d messages  last %s\n", s.Profile.Label(s.Counterparty), s.Messages, time.Unix(int64(s.LastActivity), 0).Format(time.RFC822))
			}
		case "o":
			summaries := d.Inbox.Threads()
			if len(summaries) == 0 {
				fmt.Println("No conversations yet")
				break
			}
			printThread(summaries[0], d.Inbox.Open(summaries[0].Counterparty))
		case "r":
			added, err := d.Inbox.Refresh(ctx)
			if err != nil {
				fmt.Println(err.Error())
				break
			}
			fmt.Printf("%d new messages\n", added)
		case "p":
			result, err := d.Outbox.Process(ctx)
			if err != nil {
				fmt.Println(err.Error())
				break
			}
			fmt.Println(result.String())
		case "w":
			fmt.Printf("Site pubkey: \n%s\n", d.Keys.Public)
		case "c":
			fmt.Println("CURRENT CONFIG")
			for k, v := range actors.Settings(actors.MakeOrGetConfig()) {
				fmt.Printf("\nKey: %s; Value: %v\n", k, v)
			}
		}
	}
}

func printThread(summary threads.Summary, messages []threads.Message) {
	name := summary.Profile.Label(summary.Counterparty)
	fmt.Printf("\n--------- %s -----------\n", name)
	for _, m := range messages {
		from := name
		if m.Outgoing {
			from = "you"
		}
		at := time.Unix(int64(m.Event.CreatedAt), 0).Format(time.Kitchen)
		if m.Failed {
			fmt.Printf("[%s] %s: (could not decrypt)\n", at, from)
			continue
		}
		fmt.Printf("[%s] %s: %s\n", at, from, m.Plaintext)
	}
}
