package library

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Every runs task immediately and then on each tick of interval until ctx is done.
// A tick that fires while the previous run is still in flight is skipped, so
// two runs of the same task never overlap.
func Every(ctx context.Context, name string, interval time.Duration, task func(context.Context)) {
	var inFlight int32
	run := func() {
		if !atomic.CompareAndSwapInt32(&inFlight, 0, 1) {
			LogCLI(fmt.Sprintf("%s: previous run still in flight, skipping tick", name), 3)
			return
		}
		go func() {
			defer atomic.StoreInt32(&inFlight, 0)
			task(ctx)
		}()
	}
	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
