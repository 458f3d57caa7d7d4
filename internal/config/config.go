package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/timfallmk/disk-alert-daemon/internal/units"
)

// EnvToken is the environment variable consulted when no token is set in
// the configuration or on the command line.
const EnvToken = "SLACK_BOT_TOKEN"

// ErrTokenMissing reports that no chat credential could be resolved from
// any source. It is fatal: no scanning happens without a credential.
var ErrTokenMissing = errors.New("slack token not set: provide slack.token, the -token flag, or the " + EnvToken + " environment variable")

type Config struct {
	Scan    ScanConfig    `yaml:"scan"`
	Alert   AlertConfig   `yaml:"alert"`
	Slack   SlackConfig   `yaml:"slack"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Logging LoggingConfig `yaml:"logging"`
}

type ScanConfig struct {
	// Interval between checks when running as a daemon. One-shot checks
	// ignore it.
	Interval       time.Duration `yaml:"interval"`
	IncludeVirtual bool          `yaml:"include_virtual"`

	// OnStatError is "skip" or "abort" and controls what a failed space
	// statistics call for a single mountpoint does to the run.
	OnStatError string `yaml:"on_stat_error"`

	// Overrides for the system tables, mainly for tests. Empty means the
	// platform default.
	FilesystemsPath string `yaml:"filesystems_path"`
	MountsPath      string `yaml:"mounts_path"`

	// Extra mountpoint prefixes to exclude on top of the built-in /snap
	// and /boot rules.
	ExcludeMountPrefixes []string `yaml:"exclude_mount_prefixes"`
}

type AlertConfig struct {
	// Threshold is a byte quantity such as "10GB"; partitions with less
	// free space alert.
	Threshold string `yaml:"threshold"`

	// Hostname overrides the detected host name in alert messages.
	Hostname string `yaml:"hostname"`
}

type SlackConfig struct {
	Token     string `yaml:"token"`
	Channel   string `yaml:"channel"`
	Username  string `yaml:"username"`
	IconEmoji string `yaml:"icon_emoji"`

	// APIURL overrides the Slack endpoint, used with the bundled
	// simulator.
	APIURL string `yaml:"api_url"`
}

type DaemonConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	User        string `yaml:"user"`
	Group       string `yaml:"group"`
	PidFile     string `yaml:"pid_file"`
	LogFile     string `yaml:"log_file"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
}

func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Interval:             15 * time.Minute,
			IncludeVirtual:       false,
			OnStatError:          "skip",
			ExcludeMountPrefixes: []string{},
		},
		Alert: AlertConfig{
			Threshold: "1000GB",
		},
		Slack: SlackConfig{
			Channel:   "#slack-bot-playground",
			Username:  "Human-Compatible Disk Alert Bot",
			IconEmoji: ":chai:",
		},
		Daemon: DaemonConfig{
			Name:        "disk-alert-daemon",
			Description: "Low Disk Space Alert Daemon",
			User:        "",
			Group:       "",
			PidFile:     "/var/run/disk-alert-daemon.pid",
			LogFile:     "/var/log/disk-alert-daemon.log",
		},
		Logging: LoggingConfig{
			// Alert messages go to stdout, so logs default to stderr.
			Level:     "info",
			Format:    "text",
			Output:    "stderr",
			AddSource: false,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = getDefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) SaveConfig(path string) error {
	if path == "" {
		path = getDefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if _, err := units.Parse(c.Alert.Threshold); err != nil {
		return fmt.Errorf("invalid alert threshold: %w", err)
	}

	if c.Scan.Interval <= 0 {
		return fmt.Errorf("scan interval must be positive")
	}

	validPolicies := map[string]bool{
		"skip":  true,
		"abort": true,
	}
	if !validPolicies[c.Scan.OnStatError] {
		return fmt.Errorf("invalid on_stat_error policy: %s", c.Scan.OnStatError)
	}

	if (c.Scan.FilesystemsPath == "") != (c.Scan.MountsPath == "") {
		return fmt.Errorf("filesystems_path and mounts_path must be set together")
	}

	if c.Slack.Channel == "" {
		return fmt.Errorf("slack channel must not be empty")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// ParseThreshold returns the alert threshold as a byte quantity with its
// display unit.
func (c *Config) ParseThreshold() (units.Size, error) {
	threshold, err := units.Parse(c.Alert.Threshold)
	if err != nil {
		return units.Size{}, fmt.Errorf("invalid alert threshold: %w", err)
	}
	return threshold, nil
}

// ResolveToken returns the chat credential, preferring the configured
// value over the environment. Returns ErrTokenMissing when neither is set.
func (c *Config) ResolveToken() (string, error) {
	if c.Slack.Token != "" {
		return c.Slack.Token, nil
	}

	if token := os.Getenv(EnvToken); token != "" {
		return token, nil
	}

	return "", ErrTokenMissing
}

func getDefaultConfigPath() string {
	if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" {
		return filepath.Join(configDir, "disk-alert-daemon", "config.yaml")
	}

	if homeDir := os.Getenv("HOME"); homeDir != "" {
		return filepath.Join(homeDir, ".config", "disk-alert-daemon", "config.yaml")
	}

	return "./config.yaml"
}

func GetConfigPaths() []string {
	var paths []string

	paths = append(paths, getDefaultConfigPath())

	if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" {
		paths = append(paths, filepath.Join(configDir, "disk-alert-daemon.yaml"))
	}

	paths = append(paths, "/etc/disk-alert-daemon/config.yaml")
	paths = append(paths, "/usr/local/etc/disk-alert-daemon/config.yaml")
	paths = append(paths, "./configs/config.yaml")

	return paths
}

func FindConfig() (string, error) {
	for _, path := range GetConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err != nil {
				return path, nil // fallback to original path
			}
			return absPath, nil
		}
	}
	return "", fmt.Errorf("no config file found in standard locations")
}
