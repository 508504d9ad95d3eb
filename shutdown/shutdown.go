package shutdown

import (
	"context"
	"os"
	"os/signal"
)

// Context returns a context that is cancelled on the first interrupt or
// terminate signal, or when cancel is called.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	Notify(ch)
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
