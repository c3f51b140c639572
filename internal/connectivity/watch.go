package connectivity

import (
	"context"
	"time"
)

// Watch polls the probe and emits the new state on every
// online/offline transition. The channel closes when ctx is cancelled.
// The state at call time is the baseline and is not emitted.
func Watch(ctx context.Context, p Probe, every time.Duration) <-chan bool {
	ch := make(chan bool, 1)

	// Baseline is read before the goroutine starts so a transition
	// racing the first poll is still observed.
	last := p.IsOnline()

	go func() {
		defer close(ch)

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				state := p.IsOnline()
				if state == last {
					continue
				}
				last = state
				select {
				case ch <- state:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch
}
