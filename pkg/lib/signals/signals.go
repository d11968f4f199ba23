package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// exit is replaced in tests.
var exit = os.Exit

// WithShutdown returns a copy of parent that is cancelled on the first SIGINT
// or SIGTERM. A second signal exits the process with status 1. Cancelling
// before any signal arrives stops listening.
func WithShutdown(parent context.Context, logger logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c := make(chan os.Signal, 2)
	signal.Notify(c, shutdownSignals...)

	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			logger.WithField("signal", sig.String()).Info("shutting down, send again to exit immediately")
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-c:
			logger.WithField("signal", sig.String()).Warn("exiting")
			exit(1)
		case <-parent.Done():
		}
	}()

	return ctx, cancel
}
