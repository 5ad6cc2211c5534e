package actors

import (
	"sync"
)

var terminateChan = make(chan struct{})
var terminateOnce sync.Once
var wg = &sync.WaitGroup{}

func GetTerminateChan() chan struct{} {
	return terminateChan
}

// Shutdown closes the terminate channel once; every long running loop watches it.
func Shutdown() {
	terminateOnce.Do(func() {
		close(terminateChan)
	})
}

func GetWaitGroup() *sync.WaitGroup {
	return wg
}
