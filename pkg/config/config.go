// Package config resolves runtime settings from flags, CERTSTENCIL_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. CERTSTENCIL_PORT.
const EnvPrefix = "CERTSTENCIL"

// Keys shared by flags, env and config files.
const (
	KeyPort         = "port"
	KeyLogLevel     = "log-level"
	KeyDev          = "dev"
	KeyTimeout      = "timeout"
	KeyConcurrency  = "concurrency"
	KeyMaxUpload    = "max-upload-mb"
	KeyOpenBrowser  = "open-browser"
	KeyNodeID       = "node-id"
	KeyThumbWidth   = "thumbnail-width"
	KeyConfigFile   = "config"
	defaultPort     = 8080
	defaultUploadMB = 20
)

// Config is the resolved configuration.
type Config struct {
	Port           int
	LogLevel       string
	Dev            bool
	Timeout        time.Duration // per capture
	Concurrency    int
	MaxUploadBytes int64
	OpenBrowser    bool
	NodeID         int64 // snowflake node for run ids
	ThumbnailWidth int
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:           defaultPort,
		LogLevel:       "info",
		Timeout:        30 * time.Second,
		Concurrency:    1,
		MaxUploadBytes: defaultUploadMB << 20,
		NodeID:         1,
		ThumbnailWidth: 240,
	}
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	d := Defaults()
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyPort, d.Port)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyDev, d.Dev)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyConcurrency, d.Concurrency)
	v.SetDefault(KeyMaxUpload, defaultUploadMB)
	v.SetDefault(KeyOpenBrowser, d.OpenBrowser)
	v.SetDefault(KeyNodeID, d.NodeID)
	v.SetDefault(KeyThumbWidth, d.ThumbnailWidth)
	return v
}

// BindFlags binds every flag in fs that names a known key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// Load reads the config file named by the config key, if any, and resolves Config.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Port:           v.GetInt(KeyPort),
		LogLevel:       v.GetString(KeyLogLevel),
		Dev:            v.GetBool(KeyDev),
		Timeout:        v.GetDuration(KeyTimeout),
		Concurrency:    v.GetInt(KeyConcurrency),
		MaxUploadBytes: v.GetInt64(KeyMaxUpload) << 20,
		OpenBrowser:    v.GetBool(KeyOpenBrowser),
		NodeID:         v.GetInt64(KeyNodeID),
		ThumbnailWidth: v.GetInt(KeyThumbWidth),
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	case c.Concurrency < 1:
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("max upload size must be positive")
	case c.NodeID < 0 || c.NodeID > 1023:
		return fmt.Errorf("node id %d out of range 0-1023", c.NodeID)
	}
	return nil
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
