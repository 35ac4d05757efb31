// casectl is the dailycase operator CLI. It works directly against the
// server's database, under a single namespace.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ashureev/dailycase/internal/app"
	"github.com/ashureev/dailycase/internal/config"
	"github.com/ashureev/dailycase/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

type globalFlags struct {
	dbPath    string
	namespace string
	verbose   bool
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "casectl",
		Short:         "casectl - operate the dailycase challenge store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if g.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.dbPath, "db", "", "database path (default: DB_PATH)")
	rootCmd.PersistentFlags().StringVarP(&g.namespace, "namespace", "n", "local", "store namespace to operate on")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log generation attempts")

	rootCmd.AddCommand(challengeCmd(g))
	rootCmd.AddCommand(progressCmd(g))
	rootCmd.AddCommand(credentialCmd(g))
	rootCmd.AddCommand(prewarmCmd(g))

	return rootCmd
}

// open loads configuration, applies flag overrides and builds the app.
func (g *globalFlags) open(ctx context.Context) (*app.App, store.KV, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if g.dbPath != "" {
		cfg.DBPath = g.dbPath
	}
	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	return a, store.Scope(a.Store, g.namespace), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
