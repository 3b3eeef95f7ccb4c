package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/floorsync/floorsync/internal/config"
)

// newRootCmd builds the command tree. Flags are bound to viper so every
// option is equally reachable as a flag, a FLOORSYNC_* environment variable
// or a key in the optional config file.
func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	var cfgFile string

	root := &cobra.Command{
		Use:           "floorsync",
		Short:         "Shop-floor job tracker with LAN live sync",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile == "" {
				return nil
			}
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config file: %w", err)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (YAML)")
	pf.String("role", config.RoleMaster, "node role: master or client")
	pf.String("listen", fmt.Sprintf(":%d", config.DefaultPort), "LAN listen address (master)")
	pf.String("data-dir", "", "directory for the job and settings documents")
	pf.String("master-addr", "", "master address override (client)")
	pf.String("job-prefix", "FS-", "prefix for assigned job numbers")
	pf.Int("job-floor", 1000, "first job number on an empty store")
	pf.Duration("archive-after", 30*24*time.Hour, "auto-archive completed jobs after this long")
	pf.Duration("liveness-window", 2*time.Minute, "evict peers unseen for this long")
	pf.Int("rate-limit", 0, "per-peer job creations per second, 0 = unlimited")
	pf.String("log-level", "info", "log level: debug, info, warn, error")

	for flag, key := range map[string]string{
		"role":            "role",
		"listen":          "listen",
		"data-dir":        "data_dir",
		"master-addr":     "master_addr",
		"job-prefix":      "job_prefix",
		"job-floor":       "job_floor",
		"archive-after":   "archive_after",
		"liveness-window": "liveness_window",
		"rate-limit":      "rate_limit",
		"log-level":       "log_level",
	} {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newBackupCmd(v))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
