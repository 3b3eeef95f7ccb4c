package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/floorsync/floorsync/internal/backup"
	"github.com/floorsync/floorsync/internal/config"
	"github.com/floorsync/floorsync/internal/settings"
	"github.com/floorsync/floorsync/internal/store"
)

func newBackupCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import the job and settings documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export-db <file>",
		Short: "Write the job document to a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			s := store.Open(cfg.StorePath(), store.Options{})
			n, err := backup.ExportStore(s, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d jobs to %s\n", n, args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import-db <file>",
		Short: "Replace the job document with a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			s := store.Open(cfg.StorePath(), store.Options{})
			n, err := backup.ImportStore(s, args[0], nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d jobs from %s\n", n, args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export-settings <file>",
		Short: "Write the settings document to a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			set := settings.Open(cfg.SettingsPath(), nil)
			if err := backup.ExportSettings(set, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported settings to %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import-settings <file>",
		Short: "Replace the settings document with a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			set := settings.Open(cfg.SettingsPath(), nil)
			if err := backup.ImportSettings(set, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored settings from %s\n", args[0])
			return nil
		},
	})

	return cmd
}
