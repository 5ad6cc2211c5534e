//go:build !darwin

package inbox

import "context"

func wakeups(ctx context.Context) <-chan struct{} {
	return nil
}
