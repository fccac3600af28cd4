package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/readtrackapp/readtrack-server/internal/service"
)

func newStartCmd() *cobra.Command {
	var (
		location string
		page     int
	)

	cmd := &cobra.Command{
		Use:   "start <book-id>",
		Short: "Start a reading session",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(a *app, cmd *cobra.Command, args []string) error {
			opts := service.StartOptions{Location: location}
			if cmd.Flags().Changed("page") {
				opts.StartPage = &page
			}

			session, err := a.sessions.Start(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Printf("Reading session %s started at page %d\n", session.ID, session.StartPage)
			return nil
		}),
	}

	cmd.Flags().StringVar(&location, "location", "", "where you are reading")
	cmd.Flags().IntVar(&page, "page", 0, "start page, defaults to the book's current page")

	return cmd
}

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the active session",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(a *app, cmd *cobra.Command, _ []string) error {
			if err := a.sessions.Pause(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("Paused at %s read\n", formatDuration(a.sessions.CurrentDuration()))
			return nil
		}),
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused session",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(a *app, cmd *cobra.Command, _ []string) error {
			if err := a.sessions.Resume(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Resumed")
			return nil
		}),
	}
}

func newDistractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distract",
		Short: "Record a distraction during the active session",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(a *app, cmd *cobra.Command, _ []string) error {
			if err := a.sessions.RecordDistraction(cmd.Context()); err != nil {
				return err
			}
			snap := a.sessions.Current()
			fmt.Printf("Distraction noted (%d so far)\n", snap.DistractionCount)
			return nil
		}),
	}
}

func newEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end <page>",
		Short: "End the active session at the given page",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(a *app, cmd *cobra.Command, args []string) error {
			page, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid page %q", args[0])
			}

			duration := a.sessions.CurrentDuration()
			session, err := a.sessions.End(cmd.Context(), page)
			if err != nil {
				return err
			}

			fmt.Printf("Session complete: %d pages in %s, focus score %.0f\n",
				session.PagesRead(), formatDuration(duration), session.FocusScore())
			return nil
		}),
	}
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Discard the active session as if it never happened",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(a *app, cmd *cobra.Command, _ []string) error {
			if err := a.sessions.Cancel(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Session discarded")
			return nil
		}),
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active session, if any",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(a *app, cmd *cobra.Command, _ []string) error {
			snap := a.sessions.Current()
			if !snap.Tracking {
				fmt.Println("No session in progress")
				return nil
			}

			book, err := a.books.Get(cmd.Context(), snap.BookID)
			if err != nil {
				return err
			}

			state := "reading"
			if snap.Paused {
				state = "paused"
			}
			fmt.Printf("%s: %q, %s read, %d distraction(s)\n",
				state, book.Title, formatDuration(a.sessions.CurrentDuration()), snap.DistractionCount)
			return nil
		}),
	}
}

// formatDuration renders a duration as h/m/s without sub-second noise.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
