package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/dailycase/internal/store"
	"github.com/spf13/cobra"
)

func credentialCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the model credential of a namespace",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key>",
		Short: "Store the model credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if key == "" {
				return errors.New("credential cannot be empty")
			}
			ctx := cmd.Context()
			a, kv, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := kv.Set(ctx, store.CredentialKey, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credential stored for namespace %q\n", kv.Namespace())
			return nil
		},
	})
	return cmd
}
