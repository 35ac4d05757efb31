package main

import (
	"errors"
	"fmt"

	"github.com/ashureev/dailycase/internal/generator"
	"github.com/ashureev/dailycase/internal/store"
	"github.com/spf13/cobra"
)

func challengeCmd(g *globalFlags) *cobra.Command {
	var offset int
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Print the challenge for a day, generating it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, kv, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			credential, ok, err := kv.Get(ctx, store.CredentialKey)
			if err != nil {
				return err
			}
			if !ok || credential == "" {
				return fmt.Errorf("namespace %q has no credential; run: casectl credential set <key>", kv.Namespace())
			}

			ch, err := a.Generator.Obtain(ctx, kv, offset, credential)
			if err != nil {
				var failed *generator.GenerationFailed
				if errors.As(err, &failed) {
					return fmt.Errorf("generation failed after %d attempts: %s", failed.Attempts, failed.Message())
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), ch)
		},
	}
	cmd.Flags().IntVarP(&offset, "offset", "o", 0, "day offset from today (negative for past days)")
	return cmd
}
