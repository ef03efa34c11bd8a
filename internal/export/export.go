// Package export writes the workflow to files, buckets and git
// repositories on request, or periodically.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoDestination is returned when an export has nowhere to go.
var ErrNoDestination = errors.New("no export destination configured")

// Destination is one export target.
type Destination interface {
	// Name identifies the destination in logs and events.
	Name() string
	// Write stores the workflow document.
	Write(ctx context.Context, data []byte) error
}

// Export writes data to every destination. A failing destination does not
// stop the others; their errors are joined.
func Export(ctx context.Context, data []byte, dests []Destination, logger *slog.Logger) error {
	if len(dests) == 0 {
		return ErrNoDestination
	}
	if logger == nil {
		logger = slog.Default()
	}
	var errs []error
	for _, d := range dests {
		if err := d.Write(ctx, data); err != nil {
			logger.Error("export destination write failed", "destination", d.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		logger.Info("workflow exported", "destination", d.Name(), "bytes", len(data))
	}
	return errors.Join(errs...)
}
