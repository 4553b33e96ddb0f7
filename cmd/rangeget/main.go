package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	rghttp "github.com/ligustah/rangeget/internal/http"
	"github.com/ligustah/rangeget/pkg/download"
	"github.com/ligustah/rangeget/pkg/location"
	"github.com/ligustah/rangeget/pkg/resolver"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitSourceNotAccess = 3
	ExitResolveFailed   = 4
	ExitTransferAborted = 5
	ExitSizeMismatch    = 6
	ExitInterrupted     = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(stderr, "\n[rangeget] Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

// usageError marks errors caused by how the command was invoked.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var usage usageError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage):
		return ExitInvalidArgs
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, resolver.ErrObjectNotFound),
		errors.Is(err, resolver.ErrAccessDenied),
		errors.Is(err, rghttp.ErrNotFound),
		errors.Is(err, rghttp.ErrForbidden),
		errors.Is(err, rghttp.ErrUnauthorized):
		return ExitSourceNotAccess
	case errors.Is(err, location.ErrSignedURLUnavailable):
		return ExitResolveFailed
	case errors.Is(err, download.ErrTransferAborted):
		return ExitTransferAborted
	case errors.Is(err, download.ErrSizeMismatch):
		return ExitSizeMismatch
	default:
		return ExitGeneralError
	}
}
