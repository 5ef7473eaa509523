// Package config loads fb configuration from the workspace config file
// and FB_* environment variables via viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DirName is the workspace directory fb keeps its state in.
const DirName = ".focusboard"

// Config holds every runtime setting.
type Config struct {
	// OwnerID identifies whose tasks this workspace holds.
	OwnerID string `mapstructure:"owner_id" yaml:"owner_id"`

	// DBPath is the embedded database file, relative to the workspace
	// directory unless absolute.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// TursoURL switches the gateway to the hosted remote store when
	// set (libsql://<name>.turso.io).
	TursoURL       string `mapstructure:"turso_url" yaml:"turso_url,omitempty"`
	TursoAuthToken string `mapstructure:"turso_auth_token" yaml:"turso_auth_token,omitempty"`

	// DashboardPort is the board WebSocket server port.
	DashboardPort int `mapstructure:"dashboard_port" yaml:"dashboard_port"`

	// LogFile enables rotated file logging when set.
	LogFile string `mapstructure:"log_file" yaml:"log_file,omitempty"`

	// Model is the Claude model used by `fb suggest`.
	Model string `mapstructure:"model" yaml:"model,omitempty"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		OwnerID:       "local",
		DBPath:        "board.db",
		DashboardPort: 8710,
	}
}

// FindDir walks up from the working directory looking for the
// workspace directory. Returns "" when not found.
func FindDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Load reads config.yaml from the workspace directory (if present) and
// overlays FB_* environment variables.
func Load(workspaceDir string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Defaults()
	v.SetDefault("owner_id", defaults.OwnerID)
	v.SetDefault("db_path", defaults.DBPath)
	v.SetDefault("dashboard_port", defaults.DashboardPort)

	if workspaceDir != "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(workspaceDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if !filepath.IsAbs(cfg.DBPath) && workspaceDir != "" {
		cfg.DBPath = filepath.Join(workspaceDir, cfg.DBPath)
	}
	return cfg, nil
}

// Init creates the workspace directory under root and writes the
// default config.yaml. Fails if the config file already exists.
func Init(root string) (string, error) {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create workspace directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config already exists at %s", path)
	}

	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return "", fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return dir, nil
}

// SectionsPath returns the custom-sections registry file path.
func SectionsPath(workspaceDir string) string {
	return filepath.Join(workspaceDir, "sections.json")
}

// AttachmentsDir returns the attachment store root.
func AttachmentsDir(workspaceDir string) string {
	return filepath.Join(workspaceDir, "attachments")
}
