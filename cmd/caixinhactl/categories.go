package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"caixinha/internal/core"
)

func seedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [global-category...]",
		Short: "Ensure the fallback category and optional global categories exist",
		Long: `Ensure the global "Outros" fallback exists, then create each named global
category. Names that already exist are skipped, so seeding is repeatable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, closeDB, err := a.openLedger()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			fb, err := ledger.GetOrCreateFallback(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fallback %q (id %d)\n", fb.Name, fb.ID)

			for _, name := range args {
				c, err := ledger.CreateGlobalCategory(ctx, name)
				switch {
				case errors.Is(err, core.ErrDuplicateName):
					fmt.Fprintf(out, "exists   %q\n", name)
				case err != nil:
					return fmt.Errorf("seed %q: %w", name, err)
				default:
					fmt.Fprintf(out, "created  %q (id %d)\n", c.Name, c.ID)
				}
			}
			return nil
		},
	}
}

func categoriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Inspect and manage categories across all users",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every category of every owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, closeDB, err := a.openLedger()
			if err != nil {
				return err
			}
			defer closeDB()

			cats, err := ledger.ListAllCategories(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tNAME\tOWNER")
			for _, c := range cats {
				owner := c.Owner
				if c.IsGlobal() {
					owner = "(global)"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, owner)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add-global NAME",
		Short: "Create a category visible to every user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, closeDB, err := a.openLedger()
			if err != nil {
				return err
			}
			defer closeDB()

			c, err := ledger.CreateGlobalCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created global category %q (id %d)\n", c.Name, c.ID)
			return nil
		},
	})

	return cmd
}
