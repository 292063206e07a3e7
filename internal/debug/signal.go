// Package debug provides the process-level signal handling used by
// cmd/indexer, adapted from the teacher's turbo/debug/signal.go.
package debug

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/erigontech/erigon-lib/log/v3"
)

// ListenSignals blocks until SIGINT or SIGTERM arrives, then closes stack.
// A second signal while shutdown is in flight counts toward a forced exit
// after forceExitLimit repeats, so an indexer wedged mid-shutdown doesn't
// hang the operator's terminal forever.
func ListenSignals(stack io.Closer, logger log.Logger) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	<-sigc
	logger.Info("Got interrupt, shutting down...")

	closeDone := make(chan struct{})
	go func() {
		if stack != nil {
			if err := stack.Close(); err != nil {
				logger.Error("Error during shutdown", "err", err)
			}
		}
		close(closeDone)
	}()

	const forceExitLimit = 3
	remaining := forceExitLimit
	for {
		select {
		case <-closeDone:
			logger.Info("Graceful shutdown completed")
			return
		case <-sigc:
			remaining--
			if remaining <= 0 {
				logger.Warn("Force exiting...")
				os.Exit(1)
			}
			logger.Warn("Still shutting down, interrupt more to force exit", "times", remaining)
		}
	}
}
