package main

import (
	"errors"
	"fmt"

	"github.com/ashureev/dailycase/internal/prewarm"
	"github.com/spf13/cobra"
)

func prewarmCmd(g *globalFlags) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prewarm",
		Short: "Generate today's and upcoming challenges ahead of time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return errors.New("--days must be at least 1")
			}
			ctx := cmd.Context()
			a, kv, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := prewarm.Namespace(ctx, kv, a.Generator, days); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Prewarmed %d day(s) for namespace %q\n", days, kv.Namespace())
			return nil
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 1, "number of days starting today")
	return cmd
}
