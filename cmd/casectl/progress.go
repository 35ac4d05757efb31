package main

import (
	"fmt"

	"github.com/ashureev/dailycase/internal/progress"
	"github.com/spf13/cobra"
)

func progressCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show streak and completion history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, kv, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := progress.NewLedger(kv, nil).Snapshot(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, p)
			}

			last := p.LastCompletedDate
			if last == "" {
				last = "never"
			}
			fmt.Fprintf(out, "Streak:         %d\n", p.StreakCount)
			fmt.Fprintf(out, "Last completed: %s\n", last)
			fmt.Fprintf(out, "History:        %d entries\n", len(p.History))
			for _, h := range p.History {
				fmt.Fprintf(out, "  %s  day %-4d %-22s %s\n", h.Date, h.DayIndex, h.Category, h.Title)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}
