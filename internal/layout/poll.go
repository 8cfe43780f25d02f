package layout

import (
	"context"
	"fmt"
	"time"
)

// DefaultPollInterval is the wait between two status checks of a
// long-running analysis.
const DefaultPollInterval = 2 * time.Second

// PollUntilDone calls check until it reports done, returns an error, or ctx
// is cancelled. There is no timeout other than the one carried by ctx.
func PollUntilDone(ctx context.Context, interval time.Duration, check func(ctx context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("PollUntilDone: %w", err)
		}
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("PollUntilDone: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
