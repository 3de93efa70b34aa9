package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"caixinha/internal/amqp"
	"caixinha/internal/core"
	"caixinha/internal/services"
)

func summaryCmd(a *app) *cobra.Command {
	var user, month string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print a user's monthly summary",
		Example: `  caixinhactl summary --user alice
  caixinhactl summary --user alice --month 2025-03`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			year, m := 0, 0
			if month != "" {
				var ok bool
				if year, m, ok = core.ParsePeriod(month); !ok {
					return fmt.Errorf("invalid month %q: use YYYY-MM", month)
				}
			}

			ledger, closeDB, err := a.openLedger()
			if err != nil {
				return err
			}
			defer closeDB()

			s, err := ledger.Summarize(cmd.Context(), user, year, m)
			if err != nil {
				return err
			}
			printSummary(cmd, user, s)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (JWT subject)")
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printSummary(cmd *cobra.Command, user string, s core.Summary) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	defer w.Flush()

	fmt.Fprintf(w, "%s\t%s\t\n", user, s.Period())
	fmt.Fprintf(w, "income\t%s\t\n", s.Income)
	fmt.Fprintf(w, "expense\t%s\t\n", s.Expense)
	fmt.Fprintf(w, "balance (month)\t%s\t\n", s.BalanceMonth())
	fmt.Fprintf(w, "balance (total)\t%s\t\n", s.BalanceTotal())
	if len(s.ByCategory) == 0 {
		return
	}
	fmt.Fprintln(w, "\t\t")
	for _, ct := range s.ByCategory {
		fmt.Fprintf(w, "%s %s\t%s\t\n", ct.Type.Label(), ct.CategoryName, ct.Total)
	}
}

func repairOrphansCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repair-orphans",
		Short: "Point transactions with no category at the fallback",
		Long: `Rewrite every transaction whose category reference is empty, for every user,
to the "Outros" fallback. Reads already treat such rows as the fallback; this
makes the stored state agree and, when AMQP_URL is set, refreshes the sheet
mirror for the affected users.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []services.Option
			if a.cfg.AMQPURL != "" {
				client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
				if err != nil {
					return fmt.Errorf("connect to AMQP: %w", err)
				}
				defer client.Close()
				opts = append(opts, services.WithPublisher(client))
			}

			ledger, closeDB, err := a.openLedger(opts...)
			if err != nil {
				return err
			}
			defer closeDB()

			repaired, err := ledger.RepairOrphans(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "repaired %d transaction(s)\n", len(repaired))
			return nil
		},
	}
}

func tokenCmd(a *app) *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verifier, err := newVerifier(a)
			if err != nil {
				return err
			}
			tok, err := verifier.Issue(user, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "subject of the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
