// Command lookout runs the multi-camera stream orchestration service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/lookout/internal/app"
	"github.com/MrSnakeDoc/lookout/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "lookout",
		Short:         "Multi-camera network video orchestration service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyFlagEnv(cmd)
		},
		RunE: serve,
	}

	rootCmd.PersistentFlags().String("backend", "", "settings backend: file, redis, or memory (overrides LOOKOUT_SETTINGS_BACKEND)")
	rootCmd.PersistentFlags().String("settings-file", "", "settings file path (overrides LOOKOUT_SETTINGS_FILE)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides LOOKOUT_LOG_LEVEL)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the lookout service (default)",
		RunE:  serve,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert legacy single-camera settings and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			migrated, err := app.Migrate(ctx)
			if err != nil {
				return err
			}
			if migrated {
				fmt.Fprintln(cmd.OutOrStdout(), "✅ legacy settings migrated")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to migrate")
			}
			return nil
		},
	}

	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.ListSources(cmd.Context(), cmd.OutOrStdout())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lookout %s (commit=%s, built=%s, go=%s)\n",
				version.Version, version.Commit, version.BuildDate, version.GoVersion)
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, sourcesCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("❌ lookout failed: %v", err)
	}
}

func serve(cmd *cobra.Command, args []string) error {
	return app.New().Run()
}

var flagEnv = map[string]string{
	"backend":       "LOOKOUT_SETTINGS_BACKEND",
	"settings-file": "LOOKOUT_SETTINGS_FILE",
	"log-level":     "LOOKOUT_LOG_LEVEL",
}

// applyFlagEnv lets flags override the environment config.Load reads.
func applyFlagEnv(cmd *cobra.Command) error {
	for flag, env := range flagEnv {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, err := cmd.Flags().GetString(flag)
		if err != nil {
			return err
		}
		if err := os.Setenv(env, v); err != nil {
			return fmt.Errorf("set %s: %w", env, err)
		}
	}
	return nil
}
