package lifecycle

import (
	"context"
	"os"
	"os/signal"
)

// NotifySignals turns OS signals into app states: backgroundSig reports StateBackground and activeSig
// reports StateActive. The channel is closed when ctx ends.
func NotifySignals(ctx context.Context, backgroundSig, activeSig os.Signal) <-chan AppState {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, backgroundSig, activeSig)

	states := make(chan AppState)
	go func() {
		defer close(states)
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				next := StateBackground
				if sig == activeSig {
					next = StateActive
				}
				select {
				case states <- next:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return states
}
