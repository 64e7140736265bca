// Package config loads daemon configuration from environment variables,
// optionally overlaid by a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the hub daemon configuration.
type Config struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`

	// SQLiteDBPath is where the device registry lives.
	SQLiteDBPath string `yaml:"sqlite_db_path"`

	DiscoveryTimeoutMs int `yaml:"discovery_timeout_ms"`
	SoapTimeoutMs      int `yaml:"soap_timeout_ms"`

	// RescanInterval is a cron @every duration for periodic topology
	// rescans; empty disables the scheduler.
	RescanInterval string `yaml:"rescan_interval"`

	// StaticDeviceIPs are probed during scans even when SSDP misses them.
	StaticDeviceIPs []string `yaml:"static_device_ips"`

	// JWTSecret enables bearer authentication on the HTTP API when set.
	// It must be at least 32 characters when present.
	JWTSecret string `yaml:"jwt_secret"`
}

// Load reads configuration from environment variables with defaults.
// When FEATHER_CONFIG names a YAML file, its values override the
// environment.
func Load() (Config, error) {
	cfg := Config{
		Host:               envString("HOST", "0.0.0.0"),
		Port:               envString("PORT", "9000"),
		SQLiteDBPath:       envString("SQLITE_DB_PATH", "./data/feather-sonos.db"),
		DiscoveryTimeoutMs: envInt("DISCOVERY_TIMEOUT_MS", 2000),
		SoapTimeoutMs:      envInt("SOAP_TIMEOUT_MS", 5000),
		RescanInterval:     envString("RESCAN_INTERVAL", "60s"),
		StaticDeviceIPs:    envCSV("STATIC_DEVICE_IPS"),
		JWTSecret:          envString("JWT_SECRET", ""),
	}

	if path := os.Getenv("FEATHER_CONFIG"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if cfg.JWTSecret != "" && len(strings.TrimSpace(cfg.JWTSecret)) < 32 {
		return Config{}, fmt.Errorf("jwt secret must be at least 32 characters")
	}
	if cfg.DiscoveryTimeoutMs < 0 || cfg.SoapTimeoutMs <= 0 {
		return Config{}, fmt.Errorf("timeouts must be positive")
	}

	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envCSV(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
