package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/readtrackapp/readtrack-server/internal/domain"
)

func newStatsCmd() *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show reading statistics for a period",
		RunE: runWithApp(func(a *app, cmd *cobra.Command, _ []string) error {
			p := domain.StatsPeriod(period)
			if p == domain.StatsPeriodDay {
				stats, err := a.stats.ForDate(cmd.Context(), a.clock.Now())
				if err != nil {
					return err
				}
				fmt.Printf("Today: %.0f min, %d pages, %d session(s)\n",
					stats.TotalMinutes, stats.PagesRead, stats.SessionCount)
				if stats.SessionCount > 0 {
					fmt.Printf("Average focus score: %.1f\n", stats.AverageFocusScore)
				}
				if stats.FavoriteLocation != "" {
					fmt.Printf("Favorite spot: %s\n", stats.FavoriteLocation)
				}
				return nil
			}

			stats, err := a.stats.ForPeriod(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Printf("Past %s: %.0f min, %d pages, %d session(s) over %d active day(s)\n",
				period, stats.TotalMinutes, stats.PagesRead, stats.SessionCount, stats.DaysActive)
			return nil
		}),
	}

	cmd.Flags().StringVar(&period, "period", "day", "one of: day, week, month, year, all")

	return cmd
}

func newStreakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streak",
		Short: "Show the current daily reading streak",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(a *app, cmd *cobra.Command, _ []string) error {
			streak, err := a.stats.Streak(cmd.Context())
			if err != nil {
				return err
			}
			switch streak {
			case 0:
				fmt.Println("No streak yet. Read something today!")
			case 1:
				fmt.Println("1 day streak")
			default:
				fmt.Printf("%d day streak\n", streak)
			}
			return nil
		}),
	}
}

func newSpeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "speed",
		Short: "Show average reading speed in pages per hour",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(a *app, cmd *cobra.Command, _ []string) error {
			speed, err := a.stats.ReadingSpeed(cmd.Context())
			if err != nil {
				return err
			}
			if speed == 0 {
				fmt.Println("Not enough reading yet to measure speed")
				return nil
			}
			fmt.Printf("%.1f pages/hour\n", speed)
			return nil
		}),
	}
}

func newHistoryCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a day-by-day reading history",
		RunE: runWithApp(func(a *app, cmd *cobra.Command, _ []string) error {
			series, err := a.stats.History(cmd.Context(), days)
			if err != nil {
				return err
			}

			maxMinutes := 0.0
			for _, point := range series {
				if point.Minutes > maxMinutes {
					maxMinutes = point.Minutes
				}
			}

			for _, point := range series {
				bar := ""
				if maxMinutes > 0 {
					bar = strings.Repeat("#", int(point.Minutes/maxMinutes*40+0.5))
				}
				fmt.Printf("%s %6.0fm %3dp %s\n",
					point.Date.Format("Mon Jan 02"), point.Minutes, point.Pages, bar)
			}
			return nil
		}),
	}

	cmd.Flags().IntVar(&days, "days", 14, "how many days back to show")

	return cmd
}
