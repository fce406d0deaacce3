package core

import (
	"context"
)

// ShutdownFunc is a cleanup handler run during graceful shutdown. The context
// carries the shutdown deadline. Handlers must be safe to call twice.
//
//	var archiveShutdown core.ShutdownFunc = func(ctx context.Context) error {
//	    return writer.Close()
//	}
type ShutdownFunc func(ctx context.Context) error
