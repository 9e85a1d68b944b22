// Package config loads the Frame Vist server configuration from the
// environment and command-line flags, and the fvctl profile file.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// ImageHost configures the Cloudinary-style upload target.
type ImageHost struct {
	BaseURL      string        `env:"BASE_URL" envDefault:"https://api.cloudinary.com"`
	CloudName    string        `env:"CLOUD_NAME"`
	UploadPreset string        `env:"UPLOAD_PRESET"`
	Folder       string        `env:"FOLDER" envDefault:"capsules"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// Config is the server configuration.
type Config struct {
	Port          int    `env:"FRAMEVIST_PORT"`
	Verbose       bool   `env:"FRAMEVIST_VERBOSE"`
	AllowedOrigin string `env:"FRAMEVIST_ALLOWED_ORIGIN" envDefault:"*"`

	Store      string `env:"FRAMEVIST_STORE" envDefault:"memory"`
	SQLitePath string `env:"FRAMEVIST_SQLITE_PATH" envDefault:"framevist.db"`
	// CartFile keeps server-held carts on disk; in memory when empty.
	CartFile string `env:"FRAMEVIST_CART_FILE"`
	// BundleDir keeps finished bundles on disk; in memory when empty.
	BundleDir string `env:"FRAMEVIST_BUNDLE_DIR"`
	SeedFile  string `env:"FRAMEVIST_SEED_FILE"`

	// AdminSecret is the HS256 key admin tokens are signed with.
	AdminSecret string `env:"FRAMEVIST_ADMIN_SECRET"`

	FetchTimeout    time.Duration `env:"FRAMEVIST_FETCH_TIMEOUT" envDefault:"20s"`
	ShutdownTimeout time.Duration `env:"FRAMEVIST_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	ImageHost ImageHost `envPrefix:"FRAMEVIST_IMAGEHOST_"`
}

// DefaultPort is used when neither FRAMEVIST_PORT, PORT nor -port is set.
const DefaultPort = 8080

// ParseEnv parses environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the environment, then applies flags from args on top.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		if p := os.Getenv("PORT"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("parse env: PORT: %w", err)
			}
			cfg.Port = n
		}
	}

	fs := flag.NewFlagSet("framevist", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable debug logging")
	fs.StringVar(&cfg.SeedFile, "seed-file", cfg.SeedFile, "Path to YAML catalogue fixture")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Storage driver: memory or sqlite")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and the store driver.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("sqlite store requires FRAMEVIST_SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreMemory, StoreSQLite)
	}
	return nil
}
