package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parrothq/parrot/internal/config"
	"github.com/parrothq/parrot/internal/db"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "parrot",
		Short: "Chat regurgitation engine for Discord",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the engine",
		RunE: func(_ *cobra.Command, _ []string) error {
			runServe()
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return db.Migrate(cfg.Postgres)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
