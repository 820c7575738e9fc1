package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newBlocksCmd(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "List IPs that are blocked right now.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := e.escalation.ActiveBlocks(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No active blocks.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "IP\tBLOCKED AT\tEXPIRES\tREASON")
			for _, b := range entries {
				expires := "never"
				if !b.Permanent && b.ExpiresAt != nil {
					expires = b.ExpiresAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.IP, b.BlockedAt.UTC().Format(time.RFC3339), expires, b.Reason)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of entries")
	return cmd
}

func newBlockCmd(e *env) *cobra.Command {
	var (
		ip        string
		reason    string
		days      int
		permanent bool
	)

	cmd := &cobra.Command{
		Use:   "block",
		Short: "Block an IP from creating links.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 && !permanent {
				days = e.cfg.Abuse.BlockDurationDays
			}

			entry, err := e.escalation.Block(cmd.Context(), ip, reason, time.Duration(days)*24*time.Hour, permanent)
			if err != nil {
				return err
			}

			if entry.Permanent {
				fmt.Fprintf(cmd.OutOrStdout(), "blocked %s permanently\n", entry.IP)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "blocked %s until %s\n", entry.IP, entry.ExpiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&ip, "ip", "", "IP address to block (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason stored with the block")
	cmd.Flags().IntVar(&days, "days", 0, "block duration in days, defaults to abuse.block_duration_days")
	cmd.Flags().BoolVar(&permanent, "permanent", false, "never expire")
	_ = cmd.MarkFlagRequired("ip")
	return cmd
}

func newEventsCmd(e *env) *cobra.Command {
	var (
		ip    string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded spam events for an IP, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := e.events.ListByIP(cmd.Context(), ip, limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No spam events for %s.\n", ip)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tKIND\tDETAIL")
			for _, ev := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", ev.CreatedAt.UTC().Format(time.RFC3339), ev.Kind, ev.Detail)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&ip, "ip", "", "IP address (required)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events")
	_ = cmd.MarkFlagRequired("ip")
	return cmd
}
