// Package config reads syncer settings from a config file, environment
// variables (SYNCER_ prefix) and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "SYNCER"
	FileName  = "syncer.yaml"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Tool struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"tool"`
	DataDir     string `mapstructure:"data_dir"`
	Definitions string `mapstructure:"definitions"`
	History     struct {
		Path          string `mapstructure:"path"`
		RecordDryRuns bool   `mapstructure:"record_dry_runs"`
	} `mapstructure:"history"`
	Logs struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"logs"`
	Server struct {
		Dir        string        `mapstructure:"dir"`
		Poll       time.Duration `mapstructure:"poll"`
		StaleAfter time.Duration `mapstructure:"stale_after"`
	} `mapstructure:"server"`
	Verbose bool `mapstructure:"verbose"`
}

// New returns a viper instance with syncer defaults, bound to the environment.
// Empty dataDir means the user config directory.
func New(dataDir string) (*viper.Viper, error) {
	if dataDir == "" {
		d, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("getting user config dir: %w", err)
		}
		dataDir = filepath.Join(d, "syncer")
	}

	v := viper.New()
	v.SetDefault("tool.path", "rsync")
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("definitions", "")
	v.SetDefault("history.path", "")
	v.SetDefault("history.record_dry_runs", false)
	v.SetDefault("logs.dir", "")
	v.SetDefault("server.dir", "")
	v.SetDefault("server.poll", time.Second)
	v.SetDefault("server.stale_after", 30*time.Second)
	v.SetDefault("verbose", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Load reads path (if not empty) into v and decodes the result.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.fill()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate rejects a poll interval which would let a live server marker
// look stale to a second server. A zero stale_after disables stale recovery.
func (c Config) validate() error {
	if c.Server.StaleAfter < 0 {
		return fmt.Errorf("%w: server.stale_after %s is negative", ErrInvalid, c.Server.StaleAfter)
	}
	if c.Server.StaleAfter > 0 && c.Server.Poll >= c.Server.StaleAfter {
		return fmt.Errorf("%w: server.poll %s must be shorter than server.stale_after %s",
			ErrInvalid, c.Server.Poll, c.Server.StaleAfter)
	}
	return nil
}

// fill derives paths left empty from the data directory.
func (c *Config) fill() {
	if c.Definitions == "" {
		c.Definitions = filepath.Join(c.DataDir, "jobs.yaml")
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.DataDir, "history.log")
	}
	if c.Logs.Dir == "" {
		c.Logs.Dir = filepath.Join(c.DataDir, "logs")
	}
	if c.Server.Dir == "" {
		c.Server.Dir = c.DataDir
	}
	if c.Server.Poll <= 0 {
		c.Server.Poll = time.Second
	}
}

// Lookup finds a config file: $SYNCERCONFIG, then the explicit flag value,
// then syncer.yaml in the given directories. Returns empty string if none exists.
func Lookup(flagPath string, dirs ...string) string {
	if envConfig, ok := os.LookupEnv(EnvPrefix + "CONFIG"); ok {
		return envConfig
	}
	if flagPath != "" {
		return flagPath
	}
	for _, d := range dirs {
		path := filepath.Join(d, FileName)
		if exists(path) {
			return path
		}
	}
	return ""
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
