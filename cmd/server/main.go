package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/natuspati/jeopardy-api/internal/app"
	"github.com/natuspati/jeopardy-api/internal/config"
	"github.com/natuspati/jeopardy-api/internal/log"
	"github.com/natuspati/jeopardy-api/internal/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "jeopardy-api",
		Short:         "Lobby-based multiplayer game backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newMigrateCmd(&configPath))

	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootstrapLogger := log.New("info")
			cfg, resolvedPath, err := config.Load(bootstrapLogger, *configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", resolvedPath).Str("addr", cfg.Addr).Msg("starting server")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}

			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger := log.New("info")
			cfg, _, err := config.Load(logger, *configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			if err := st.Migrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			logger.Info().Str("db_path", cfg.DatabasePath).Msg("schema applied")
			return nil
		},
	}
}
