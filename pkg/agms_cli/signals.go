// pkg/agms_cli/signals.go
//
// Signal handling for long-running commands. The first SIGINT/SIGTERM
// cancels the command context with agms_err.ErrInterrupted as the cause so
// the command unwinds normally; a second signal forces exit.

package agms_cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// SignalHandler turns process signals into context cancellation.
type SignalHandler struct {
	ctx      context.Context
	cancel   context.CancelCauseFunc
	sigChan  chan os.Signal
	doneChan chan struct{}
	stopOnce sync.Once
	exit     func(int)
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(ctx context.Context) *SignalHandler {
	h := newSignalHandler(ctx, os.Exit)
	signal.Notify(h.sigChan, os.Interrupt, syscall.SIGTERM)
	go h.handleSignals()
	return h
}

func newSignalHandler(ctx context.Context, exit func(int)) *SignalHandler {
	ctx, cancel := context.WithCancelCause(ctx)
	return &SignalHandler{
		ctx:      ctx,
		cancel:   cancel,
		sigChan:  make(chan os.Signal, 2),
		doneChan: make(chan struct{}),
		exit:     exit,
	}
}

// Context returns the cancellable context
// Operations should use this context to detect cancellation
func (h *SignalHandler) Context() context.Context {
	return h.ctx
}

func (h *SignalHandler) handleSignals() {
	logger := otelzap.Ctx(h.ctx)

	select {
	case sig := <-h.sigChan:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		fmt.Fprintf(os.Stderr, "\nReceived %v, shutting down...\n", sig)
		h.cancel(agms_err.ErrInterrupted)
	case <-h.doneChan:
		return
	}

	select {
	case sig := <-h.sigChan:
		logger.Error("Received second signal, forcing exit", zap.String("signal", sig.String()))
		fmt.Fprintln(os.Stderr, "Received second interrupt, forcing exit!")
		h.exit(agms_err.ExitInterrupted)
	case <-h.doneChan:
	}
}

// Stop releases the signal subscription. Safe to call more than once.
func (h *SignalHandler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.doneChan)
		h.cancel(context.Canceled)
	})
}

// Interrupted reports whether ctx ended because of an operator signal.
func Interrupted(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), agms_err.ErrInterrupted)
}
