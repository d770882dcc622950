// Package cli implements the delivery command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root delivery command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "delivery",
		Short:         "DeliveryPro operations toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newStartCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newWorkerCmd(),
		newDriverCmd(),
		newTokenCmd(),
	)
	return root
}

// Execute runs the CLI until the command returns or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

// serve starts opts and blocks until ctx is cancelled.
func serve(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

// runWithApp starts opts, runs fn once and stops the application.
func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) (err error) {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if stopErr := application.Stop(stopCtx); err == nil {
			err = stopErr
		}
	}()
	return fn(ctx)
}
