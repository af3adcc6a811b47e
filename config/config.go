// Package config holds the process-wide settings, read from a YAML file with
// .env and environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shiftscan/gate"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ClientConfig struct {
	ServerURL         string        `yaml:"server_url" json:"serverUrl"`
	MirrorPath        string        `yaml:"mirror_path" json:"mirrorPath"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval" json:"reconcileInterval"`
}

type Config struct {
	ListenAddr      string        `yaml:"listen_addr" json:"listenAddr"`
	PublicURL       string        `yaml:"public_url" json:"publicUrl"`
	DatabasePath    string        `yaml:"database_path" json:"databasePath"`
	Timezone        string        `yaml:"timezone" json:"timezone"`
	DebounceWindow  time.Duration `yaml:"debounce_window" json:"debounceWindow"`
	MappingWatchDir string        `yaml:"mapping_watch_dir" json:"mappingWatchDir"`
	MappingSeedFile string        `yaml:"mapping_seed_file" json:"mappingSeedFile"`
	MappingCharset  string        `yaml:"mapping_charset" json:"mappingCharset"`
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowedOrigins"`
	Gate            gate.Config   `yaml:"gate" json:"gate"`
	Client          ClientConfig  `yaml:"client" json:"client"`
}

// Environment variables that override the file.
const (
	EnvPassphrase  = "SHIFTSCAN_PASSPHRASE"
	EnvTokenSecret = "SHIFTSCAN_TOKEN_SECRET"
	EnvDatabase    = "SHIFTSCAN_DB"
	EnvListen      = "SHIFTSCAN_LISTEN"
	EnvServerURL   = "SHIFTSCAN_SERVER_URL"
)

const DefaultPath = "./shiftscan.yaml"

var (
	cfg        Config
	onDisk     Config
	configPath = DefaultPath
	mu         sync.RWMutex
)

// Default returns the settings used for keys missing from the file.
func Default() Config {
	return Config{
		ListenAddr:     ":8080",
		PublicURL:      "http://localhost:8080/",
		DatabasePath:   "./shiftscan.db",
		DebounceWindow: 2 * time.Second,
		Gate:           gate.Config{TokenTTL: gate.DefaultTokenTTL},
		Client: ClientConfig{
			ServerURL:         "http://localhost:8080",
			MirrorPath:        "./shiftscan-mirror.db",
			ReconcileInterval: 30 * time.Second,
		},
	}
}

// LoadConfig reads path (DefaultPath when empty), then a .env file next to it,
// then the process environment. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if path == "" {
		path = DefaultPath
	}

	loaded := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	fileCfg := loaded

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	applyEnvOverrides(&loaded)

	if err := loaded.Validate(); err != nil {
		return Config{}, err
	}

	cfg = loaded
	onDisk = fileCfg
	configPath = path
	return cfg, nil
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv(EnvPassphrase); v != "" {
		c.Gate.Passphrase = v
	}
	if v := os.Getenv(EnvTokenSecret); v != "" {
		c.Gate.TokenSecret = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv(EnvServerURL); v != "" {
		c.Client.ServerURL = v
	}
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.DebounceWindow < 0 {
		return fmt.Errorf("debounce_window must not be negative")
	}
	if c.Client.ReconcileInterval < 0 {
		return fmt.Errorf("client.reconcile_interval must not be negative")
	}
	return nil
}

// Origins lists the browser origins allowed to call the API: the origin of
// PublicURL plus AllowedOrigins.
func (c Config) Origins() []string {
	var out []string
	if u, err := url.Parse(c.PublicURL); err == nil && u.Scheme != "" && u.Host != "" {
		out = append(out, u.Scheme+"://"+u.Host)
	}
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Location resolves Timezone; empty means the process local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SaveConfig writes newCfg to the loaded path. Gate secrets are never taken
// from newCfg; the values already in the file are kept.
func SaveConfig(newCfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if err := newCfg.Validate(); err != nil {
		return err
	}

	toWrite := newCfg
	toWrite.Gate.Passphrase = onDisk.Gate.Passphrase
	toWrite.Gate.PassphraseHash = onDisk.Gate.PassphraseHash
	toWrite.Gate.TokenSecret = onDisk.Gate.TokenSecret

	data, err := yaml.Marshal(toWrite)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	secrets := cfg.Gate
	onDisk = toWrite
	cfg = newCfg
	cfg.Gate.Passphrase = secrets.Passphrase
	cfg.Gate.PassphraseHash = secrets.PassphraseHash
	cfg.Gate.TokenSecret = secrets.TokenSecret
	return nil
}

func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Path is the file the current settings were loaded from.
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return configPath
}
