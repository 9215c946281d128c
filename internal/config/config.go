// Package config loads server settings from defaults, a YAML or TOML file and VSP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/and161185/vsp-server/internal/limiter"
)

// Config holds the server settings. Later sources override earlier ones:
// defaults, file, environment, then command-line flags applied by main.
type Config struct {
	ListenAddr    string        `yaml:"listen_addr" toml:"listen_addr"`
	DataDir       string        `yaml:"data_dir" toml:"data_dir"`
	JWTKey        string        `yaml:"jwt_key" toml:"jwt_key"`
	AccessTTL     time.Duration `yaml:"access_ttl" toml:"access_ttl"`
	DSN           string        `yaml:"dsn" toml:"dsn"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" toml:"max_body_bytes"`
	AutoRegister  bool          `yaml:"auto_register" toml:"auto_register"`
	LoginWindow   time.Duration `yaml:"login_window" toml:"login_window"`
	LoginMaxFails int           `yaml:"login_max_fails" toml:"login_max_fails"`
	LoginBlockFor time.Duration `yaml:"login_block_for" toml:"login_block_for"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		DataDir:       "./data",
		AccessTTL:     time.Hour,
		MaxBodyBytes:  64 << 20,
		AutoRegister:  true,
		LoginWindow:   limiter.DefaultPolicy.Window,
		LoginMaxFails: limiter.DefaultPolicy.MaxFails,
		LoginBlockFor: limiter.DefaultPolicy.BlockFor,
	}
}

// Load reads the file at path (if any) over the defaults and applies env overrides.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if err := decodeFile(path, &c); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&c, os.LookupEnv); err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeFile(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(b), c); err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(b, c); err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
	}
	return nil
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("VSP_LISTEN_ADDR", &c.ListenAddr)
	str("VSP_DATA_DIR", &c.DataDir)
	str("VSP_JWT_KEY", &c.JWTKey)
	str("VSP_DSN", &c.DSN)

	var errList []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errList = append(errList, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	dur("VSP_ACCESS_TTL", &c.AccessTTL)
	dur("VSP_LOGIN_WINDOW", &c.LoginWindow)
	dur("VSP_LOGIN_BLOCK_FOR", &c.LoginBlockFor)

	if v, ok := lookup("VSP_MAX_BODY_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errList = append(errList, fmt.Errorf("VSP_MAX_BODY_BYTES: %w", err))
		} else {
			c.MaxBodyBytes = n
		}
	}
	if v, ok := lookup("VSP_LOGIN_MAX_FAILS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errList = append(errList, fmt.Errorf("VSP_LOGIN_MAX_FAILS: %w", err))
		} else {
			c.LoginMaxFails = n
		}
	}
	if v, ok := lookup("VSP_AUTO_REGISTER"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errList = append(errList, fmt.Errorf("VSP_AUTO_REGISTER: %w", err))
		} else {
			c.AutoRegister = b
		}
	}
	return errors.Join(errList...)
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.JWTKey == "":
		return errors.New("missing jwt signing key (jwt_key / VSP_JWT_KEY / -jwt-key)")
	case c.DataDir == "":
		return errors.New("empty data_dir")
	case c.AccessTTL <= 0:
		return errors.New("access_ttl must be positive")
	case c.LoginMaxFails <= 0:
		return errors.New("login_max_fails must be positive")
	}
	return nil
}

// LimiterPolicy returns the login rate-limit policy.
func (c *Config) LimiterPolicy() limiter.Policy {
	return limiter.Policy{Window: c.LoginWindow, MaxFails: c.LoginMaxFails, BlockFor: c.LoginBlockFor}
}

// Path helpers for the on-disk layout under DataDir.

func (c *Config) UploadsDir() string  { return filepath.Join(c.DataDir, "uploads") }
func (c *Config) VideosDir() string   { return filepath.Join(c.DataDir, "videos") }
func (c *Config) CatalogPath() string { return filepath.Join(c.DataDir, "videos.json") }
func (c *Config) UsersPath() string   { return filepath.Join(c.DataDir, "users.json") }
