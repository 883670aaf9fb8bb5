/*
Package config loads server configuration.

SOURCES, in increasing precedence:
  1. Built-in defaults
  2. A YAML file (path given by the caller, optional)
  3. Environment variables, with .env loaded first when present

Keys:
  addr / BILLING_ADDR                  listen address (default ":8080")
  db_path / BILLING_DB_PATH            SQLite path (":memory:" supported)
  cors_origins / BILLING_CORS_ORIGINS  comma-separated allowed origins
  shutdown_timeout                     graceful shutdown budget
*/
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything cmd/server needs to start.
type Config struct {
	Addr            string        `yaml:"addr"`
	DBPath          string        `yaml:"db_path"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the zero-config setup: local SQLite file, port 8080.
func Default() Config {
	return Config{
		Addr:            ":8080",
		DBPath:          "billing.db",
		CORSOrigins:     []string{"http://localhost:5173", "http://localhost:8080"},
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load builds a Config from defaults, an optional YAML file, and the
// environment. A missing file at path "" is not an error; a named file
// that cannot be read or parsed is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env is optional; real environment wins over it either way.
	_ = godotenv.Load()

	if v := os.Getenv("BILLING_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("BILLING_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("BILLING_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitOrigins(v)
	}

	return cfg, nil
}

func splitOrigins(v string) []string {
	parts := strings.Split(v, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
