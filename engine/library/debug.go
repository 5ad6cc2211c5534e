package library

import (
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// ValidateSaneExecutionTime arms the deadlock detector for the calling operation.
// Call the returned func when the operation finishes; if it never does,
// go-deadlock reports the stuck goroutine after its timeout. bound is how long
// the operation may legitimately take. When that is too close to the detector's
// timeout a stuck operation is only logged, so a slow but healthy relay cannot
// kill the process.
func ValidateSaneExecutionTime(bound time.Duration) func() {
	if !detectable(bound) {
		timer := time.AfterFunc(2*bound, func() {
			LogCLI(fmt.Sprintf("operation still running %s after it should have finished", bound), 1)
		})
		return func() { timer.Stop() }
	}
	mu := deadlock.Mutex{}
	mu.Lock()
	go func() {
		mu.Lock()
		mu.Unlock()
	}()
	return func() {
		mu.Unlock()
	}
}

func detectable(bound time.Duration) bool {
	limit := deadlock.Opts.DeadlockTimeout
	return deadlock.Opts.Disable || limit <= 0 || bound <= 0 || 2*bound <= limit
}
