// Package delivery holds the transports the processes expose.
package delivery

import "context"

// Delivery is a long-running server started by an fx entry point.
type Delivery interface {
	// Serve blocks until the server stops. A graceful shutdown returns nil.
	Serve(ctx context.Context) error
}
