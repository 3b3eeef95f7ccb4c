// Package config resolves the process configuration once at startup from
// flags, FLOORSYNC_* environment variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Node roles. The role is explicit configuration, never inferred from the
// platform, so it can be tested without OS mocking.
const (
	RoleMaster = "master"
	RoleClient = "client"
)

// DefaultPort is the fixed LAN port of the master service.
const DefaultPort = 3030

type Config struct {
	Role       string
	ListenAddr string
	DataDir    string
	// MasterAddr overrides the serverAddr stored in settings; clients need
	// one of the two.
	MasterAddr string

	JobPrefix      string
	JobFloor       int
	ArchiveAfter   time.Duration
	LivenessWindow time.Duration
	// RateLimit is requests/second per peer for job creation; 0 disables it.
	RateLimit int
	LogLevel  string
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("role", RoleMaster)
	v.SetDefault("listen", fmt.Sprintf(":%d", DefaultPort))
	v.SetDefault("data_dir", "")
	v.SetDefault("master_addr", "")
	v.SetDefault("job_prefix", "FS-")
	v.SetDefault("job_floor", 1000)
	v.SetDefault("archive_after", 30*24*time.Hour)
	v.SetDefault("liveness_window", 2*time.Minute)
	v.SetDefault("rate_limit", 0)
	v.SetDefault("log_level", "info")
}

// Load reads and validates the configuration from v. Pass nil to read from
// environment and defaults only.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
		SetDefaults(v)
	}
	v.SetEnvPrefix("FLOORSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Role:           strings.ToLower(strings.TrimSpace(v.GetString("role"))),
		ListenAddr:     v.GetString("listen"),
		DataDir:        v.GetString("data_dir"),
		MasterAddr:     v.GetString("master_addr"),
		JobPrefix:      v.GetString("job_prefix"),
		JobFloor:       v.GetInt("job_floor"),
		ArchiveAfter:   v.GetDuration("archive_after"),
		LivenessWindow: v.GetDuration("liveness_window"),
		RateLimit:      v.GetInt("rate_limit"),
		LogLevel:       v.GetString("log_level"),
	}

	if cfg.Role != RoleMaster && cfg.Role != RoleClient {
		return nil, fmt.Errorf("role %q must be %q or %q", cfg.Role, RoleMaster, RoleClient)
	}
	if _, err := portOf(cfg.ListenAddr); err != nil {
		return nil, fmt.Errorf("listen %q: %w", cfg.ListenAddr, err)
	}
	if cfg.JobFloor < 1 {
		return nil, errors.New("job_floor must be >= 1")
	}
	if cfg.ArchiveAfter <= 0 {
		return nil, errors.New("archive_after must be > 0")
	}
	if cfg.LivenessWindow <= 0 {
		return nil, errors.New("liveness_window must be > 0")
	}
	if cfg.RateLimit < 0 {
		return nil, errors.New("rate_limit must be >= 0")
	}

	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = filepath.Join(base, "floorsync")
	}

	return cfg, nil
}

// Port returns the numeric LAN port, for the /health payload.
func (c *Config) Port() int {
	p, _ := portOf(c.ListenAddr)
	return p
}

// StorePath is the job document location.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "floorsync_db.json")
}

// SettingsPath is the settings document location.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir, "floorsync_settings.json")
}

func portOf(listen string) (int, error) {
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", portStr)
	}
	return port, nil
}
