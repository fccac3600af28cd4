// Package cli implements the readtrack command tree. Every invocation
// boots the full service stack; session recovery runs before any command
// executes, so an interrupted session from a previous run is picked up
// transparently.
package cli

import (
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/readtrackapp/readtrack-server/internal/clock"
	"github.com/readtrackapp/readtrack-server/internal/di"
	"github.com/readtrackapp/readtrack-server/internal/di/providers"
	"github.com/readtrackapp/readtrack-server/internal/logger"
	"github.com/readtrackapp/readtrack-server/internal/service"
)

// app holds the bootstrapped services for one CLI invocation.
type app struct {
	injector *do.RootScope
	log      *logger.Logger
	clock    clock.Clock
	sessions *service.SessionService
	stats    *service.StatsService
	books    *service.BookService
}

// newApp builds the DI container and resolves the services. Resolving the
// session service runs crash recovery.
func newApp() (*app, error) {
	injector := di.NewContainer()

	log, err := do.Invoke[*logger.Logger](injector)
	if err != nil {
		return nil, err
	}
	sessions, err := do.Invoke[*service.SessionService](injector)
	if err != nil {
		return nil, err
	}
	stats, err := do.Invoke[*service.StatsService](injector)
	if err != nil {
		return nil, err
	}
	books, err := do.Invoke[*service.BookService](injector)
	if err != nil {
		return nil, err
	}
	clk, err := do.Invoke[clock.Clock](injector)
	if err != nil {
		return nil, err
	}

	return &app{
		injector: injector,
		log:      log,
		clock:    clk,
		sessions: sessions,
		stats:    stats,
		books:    books,
	}, nil
}

// close flushes and shuts down everything the container owns.
func (a *app) close() {
	if storeHandle, err := do.Invoke[*providers.StoreHandle](a.injector); err == nil {
		if err := storeHandle.Shutdown(); err != nil {
			a.log.Error("failed to close database", "error", err)
		}
	}
	if err := a.injector.Shutdown(); err != nil {
		a.log.Error("shutdown error", "error", err)
	}
}

// runWithApp wraps a command body with app bootstrap and teardown.
func runWithApp(fn func(a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return fn(a, cmd, args)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "readtrack",
		Short:         "Track reading sessions and statistics",
		Long:          "readtrack times reading sessions against your book library and derives streaks, focus scores, and reading speed from the history.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newBookCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newPauseCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newDistractCmd())
	cmd.AddCommand(newEndCmd())
	cmd.AddCommand(newCancelCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newStreakCmd())
	cmd.AddCommand(newSpeedCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
