// Package docrepos implements the domain repositories on top of a core.DocumentStore.
package docrepos

import (
	"github.com/trezcool/academia/core"
)

// fields only stored, never exposed by the domain models
const baseLikesField = "base_likes"

func getExec(store core.DocumentStore, svcExec []core.DocExecutor) core.DocExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return store
}

// follow calls send with every snapshot of sub, from its own goroutine, then calls end once sub is over.
// Once the returned stop func has returned, send is not called anymore and end has been called.
func follow(sub *core.Subscription, send func(core.Snapshot), end func()) (stop func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range sub.C {
			send(snap)
		}
		end()
	}()
	return func() {
		sub.Close()
		<-done
	}
}
