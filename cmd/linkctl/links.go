package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/sifan077/linkguard/internal/app/repository"
	appservice "github.com/sifan077/linkguard/internal/app/service"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func newInspectCmd(e *env) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "inspect <code>",
		Short: "Show a short link and its recent click history.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			link, err := e.links.GetByCode(ctx, args[0])
			if err != nil {
				if errors.Is(err, repository.ErrLinkNotFound) {
					return fmt.Errorf("short link %q not found", args[0])
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Code:      %s\n", link.Code)
			fmt.Fprintf(out, "URL:       %s\n", link.URL)
			fmt.Fprintf(out, "Owner IP:  %s\n", link.OwnerIP)
			fmt.Fprintf(out, "Active:    %t\n", link.Active)
			fmt.Fprintf(out, "Clicks:    %d\n", link.Clicks)
			fmt.Fprintf(out, "Created:   %s\n", link.CreatedAt.UTC().Format(time.RFC3339))
			if link.LastClickedAt != nil {
				fmt.Fprintf(out, "Last click: %s\n", link.LastClickedAt.UTC().Format(time.RFC3339))
			}

			history, err := e.recorder.GetClickHistory(ctx, link.Code, days, 0)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Fprintln(out, "No click history.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tCLICKS")
			for _, d := range history {
				fmt.Fprintf(tw, "%s\t%d\n", d.Date.Format(dateLayout), d.Count)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "number of day buckets to show")
	return cmd
}

func newClicksCmd(e *env) *cobra.Command {
	var date, from, to string

	cmd := &cobra.Command{
		Use:   "clicks <code>",
		Short: "Count recorded clicks for a day or an inclusive date range.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := parseRange(date, from, to)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			link, err := e.links.GetByCode(ctx, args[0])
			if err != nil {
				if errors.Is(err, repository.ErrLinkNotFound) {
					return fmt.Errorf("short link %q not found", args[0])
				}
				return err
			}

			count, err := e.recorder.GetDailyStats(ctx, link.Code, rng)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s..%s: %d recorded, %d total\n",
				link.Code, rng.From.Format(dateLayout), rng.To.Format(dateLayout), count, link.Clicks)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "single day (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&from, "from", "", "range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "range end (YYYY-MM-DD)")
	cmd.MarkFlagsMutuallyExclusive("date", "from")
	cmd.MarkFlagsRequiredTogether("from", "to")
	return cmd
}

func parseRange(date, from, to string) (appservice.DayRange, error) {
	if from != "" {
		f, err := time.Parse(dateLayout, from)
		if err != nil {
			return appservice.DayRange{}, fmt.Errorf("invalid --from: %w", err)
		}
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return appservice.DayRange{}, fmt.Errorf("invalid --to: %w", err)
		}
		return appservice.NewDayRange(f, t), nil
	}
	if date == "" {
		return appservice.SingleDay(time.Now()), nil
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return appservice.DayRange{}, fmt.Errorf("invalid --date: %w", err)
	}
	return appservice.SingleDay(d), nil
}

func newLinksCmd(e *env) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "links",
		Short: "List every short link, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := e.links.ListAll(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if len(links) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No short links.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tCLICKS\tACTIVE\tCREATED\tURL")
			for _, l := range links {
				fmt.Fprintf(tw, "%s\t%d\t%t\t%s\t%s\n", l.Code, l.Clicks, l.Active, l.CreatedAt.UTC().Format(time.RFC3339), l.URL)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of links")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of links to skip")
	return cmd
}

func newTopCmd(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Summarise click counters and show the most and most recently clicked links.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := e.links.ClickLeaderboard(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s := board.Summary
			fmt.Fprintf(out, "Total clicks: %d across %d links (%d clicked, %d never clicked, %.2f avg)\n",
				s.TotalClicks, s.TotalLinks, s.ClickedLinks, s.UnclickedLinks, s.AvgClicks)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\nTOP\tCLICKS\tURL")
			for _, l := range board.TopLinks {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", l.Code, l.Clicks, l.URL)
			}
			fmt.Fprintln(tw, "\nRECENT\tLAST CLICK\tURL")
			for _, l := range board.RecentlyClicked {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Code, l.LastClickedAt.UTC().Format(time.RFC3339), l.URL)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "links per ranking")
	return cmd
}
