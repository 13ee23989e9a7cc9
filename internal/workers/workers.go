// Package workers holds background jobs started by main.
package workers

import (
	"context"
	"log"
	"time"
)

// Every runs job once per interval until ctx is cancelled. Each run gets its
// own timeout so a stuck query cannot pile up ticks.
func Every(ctx context.Context, name string, interval, timeout time.Duration, job func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		log.Printf("Workers: %s started (every %s)", name, interval)
		for {
			select {
			case <-ctx.Done():
				log.Printf("Workers: %s stopped", name)
				return
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, timeout)
				if err := job(runCtx); err != nil {
					log.Printf("Workers: %s failed: %v", name, err)
				}
				cancel()
			}
		}
	}()
}
