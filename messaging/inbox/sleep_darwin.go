//go:build darwin

package inbox

import (
	"context"
	"sync"

	"github.com/prashantgupta24/mac-sleep-notifier/notifier"
)

var sleepNotifier chan *notifier.Activity
var sleepNotifierOnce sync.Once

// wakeups signals whenever the machine sleeps or wakes; relay sockets do not survive either.
func wakeups(ctx context.Context) <-chan struct{} {
	sleepNotifierOnce.Do(func() {
		sleepNotifier = notifier.GetInstance().Start()
	})
	out := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sleepNotifier:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
