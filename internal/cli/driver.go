package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NovaByteCorp/deliverypro/internal/client"
	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/dto"
	"github.com/NovaByteCorp/deliverypro/internal/lifecycle"
	"github.com/NovaByteCorp/deliverypro/internal/logger"
	"github.com/NovaByteCorp/deliverypro/internal/poller"
)

// boardClient is the slice of the API used by the driver dashboard.
type boardClient interface {
	Board(ctx context.Context) (*dto.BoardResponse, error)
	Act(ctx context.Context, id string, action lifecycle.Action, reason string) (*dto.OrderResponse, error)
}

func newDriverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "driver",
		Short: "Driver dashboard",
	}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Poll the driver board and run actions typed on stdin",
		Long: "Refreshes the board every poll interval and right after each action.\n" +
			"Type \"<action> <order-id> [reason]\", e.g. \"accept 3f2a...\" or \"reject 3f2a... too far\".",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.NewClient()
			if token, _ := cmd.Flags().GetString("token"); token != "" {
				cfg.Token = token
			}
			if cfg.Token == "" {
				return fmt.Errorf("missing API token: set API_TOKEN or --token")
			}
			interval, _ := cmd.Flags().GetDuration("interval")
			if interval <= 0 {
				interval = cfg.PollInterval
			}

			log := zap.NewNop()
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				var err error
				log, err = logger.Build(config.Observability{ServiceName: "delivery-cli", LogLevel: "debug", LogEncoding: "console"})
				if err != nil {
					return err
				}
			}
			defer func() { _ = log.Sync() }()

			api := client.New(cfg.BaseURL, cfg.Token, cfg.Timeout)
			return watchBoard(cmd.Context(), api, cmd.InOrStdin(), cmd.OutOrStdout(), interval, log)
		},
	}
	watch.Flags().String("token", "", "bearer token (defaults to API_TOKEN)")
	watch.Flags().Duration("interval", 0, "poll interval (defaults to DRIVER_POLL_INTERVAL)")
	watch.Flags().Bool("verbose", false, "log poll cycles to stderr")

	cmd.AddCommand(watch)
	return cmd
}

// watchBoard renders the board on every refresh and executes commands read
// from in until ctx is cancelled. The board keeps refreshing after in is
// exhausted.
func watchBoard(ctx context.Context, api boardClient, in io.Reader, out io.Writer, interval time.Duration, logger *zap.Logger) error {
	w := &syncWriter{w: out}
	p := poller.New[*dto.BoardResponse](
		api.Board,
		poller.WithInterval[*dto.BoardResponse](interval),
		poller.WithLogger[*dto.BoardResponse](logger),
		poller.OnResult(func(b *dto.BoardResponse) { printBoard(w, b) }),
		poller.OnError[*dto.BoardResponse](func(err error) { fmt.Fprintf(w, "refresh failed: %v\n", err) }),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := p.Run(gctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	lines := make(chan string)
	go func(out chan<- string) {
		defer close(out)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-gctx.Done():
				return
			}
		}
	}(lines)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					lines = nil
					continue
				}
				if runCommand(gctx, api, w, line) {
					p.Trigger()
				}
			}
		}
	})

	return g.Wait()
}

// runCommand executes one typed command and reports whether it changed an
// order.
func runCommand(ctx context.Context, api boardClient, out io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	if len(fields) < 2 {
		fmt.Fprintln(out, "usage: <action> <order-id> [reason]")
		return false
	}
	action, ok := parseAction(fields[0])
	if !ok {
		fmt.Fprintf(out, "unknown action %q\n", fields[0])
		return false
	}
	order, err := api.Act(ctx, fields[1], action, strings.Join(fields[2:], " "))
	if err != nil {
		fmt.Fprintf(out, "%s %s: %v\n", action, fields[1], err)
		return false
	}
	fmt.Fprintf(out, "order %s is now %s\n", order.OrderNumber, order.Status)
	return true
}

// parseAction accepts an action name or its route segment.
func parseAction(s string) (lifecycle.Action, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for action, segment := range dto.ActionRoutes() {
		if s == string(action) || s == segment {
			return action, true
		}
	}
	return "", false
}

func printBoard(out io.Writer, b *dto.BoardResponse) {
	fmt.Fprintf(out, "== board %s ==\n", time.Now().Format(time.TimeOnly))
	section := func(title string, orders []dto.OrderResponse) {
		fmt.Fprintf(out, "%s (%d)\n", title, len(orders))
		for _, o := range orders {
			fmt.Fprintf(out, "  %s  %-22s %s  %s\n", o.OrderNumber, o.Status, o.TotalAmount.StringFixed(2), o.ID)
		}
	}
	section("available", b.Available)
	section("awaiting confirmation", b.PendingConfirmation)
	section("active", b.Active)
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
