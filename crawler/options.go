package crawler

import (
	"context"
	"log/slog"
)

type options struct {
	logger *slog.Logger
	ctx    context.Context //nolint:containedctx // parent of the traversal lifetime
}

// Option configures a Crawler.
type Option func(*options)

// WithLogger sets the logger used by the control loop.
// The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithContext ties the traversal to ctx. Cancelling ctx has the same effect
// as calling Close.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}
