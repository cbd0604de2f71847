package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration structure
type Config struct {
	Core    CoreConfig              `toml:"core"`
	Plugins map[string]PluginConfig `toml:"plugins"`
	Include []IncludeConfig         `toml:"include"`
	Raw     map[string]interface{}  `toml:",omitempty"`

	// Path is the main config file, empty when running on defaults
	Path string `toml:"-"`
}

// CoreConfig contains host session configuration
type CoreConfig struct {
	SocketPath  string `toml:"socket_path"`
	PluginDir   string `toml:"plugin_dir"`
	SceneDir    string `toml:"scene_dir"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
	PIDFile     string `toml:"pid_file"`
	MetricsAddr string `toml:"metrics_addr"`
}

// PluginConfig contains plugin-specific configuration. A nil Enabled means
// the key was not set and the plugin stays enabled.
type PluginConfig struct {
	Enabled *bool `toml:"enabled"`
}

// IncludeConfig specifies additional configuration files to include
type IncludeConfig struct {
	Files []string `toml:"files"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Core: CoreConfig{
			SceneDir:  "scenes",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Plugins: make(map[string]PluginConfig),
		Include: []IncludeConfig{},
		Raw:     make(map[string]interface{}),
	}
}

// LoadConfig loads configuration from the specified file. An empty path
// returns the defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	if configPath == "" {
		return config, nil
	}
	config.Path = configPath

	// Load main config file
	if err := loadConfigFile(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}

	// Load included files
	baseDir := filepath.Dir(configPath)
	for _, include := range config.Include {
		for _, pattern := range include.Files {
			fullPattern := filepath.Join(baseDir, pattern)
			matches, err := filepath.Glob(fullPattern)
			if err != nil {
				return nil, fmt.Errorf("failed to glob pattern %s: %w", fullPattern, err)
			}

			for _, match := range matches {
				if match == configPath {
					continue // Skip the main config file
				}

				if err := loadConfigFile(match, config); err != nil {
					return nil, fmt.Errorf("failed to load included config %s: %w", match, err)
				}
			}
		}
	}

	config.resolvePaths(baseDir)
	return config, nil
}

// loadConfigFile loads a single configuration file and merges it into the existing config
func loadConfigFile(path string, config *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", path)
	}

	var tempConfig Config
	if _, err := toml.DecodeFile(path, &tempConfig); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	// Merge configurations
	mergeConfigs(config, &tempConfig)

	// Also decode into raw map for plugin-specific configurations
	var rawConfig map[string]interface{}
	if _, err := toml.DecodeFile(path, &rawConfig); err != nil {
		return fmt.Errorf("failed to decode raw config: %w", err)
	}

	for key, value := range rawConfig {
		if !isReservedConfigKey(key) {
			config.Raw[key] = value
		}
	}

	return nil
}

// mergeConfigs merges tempConfig into config
func mergeConfigs(config, tempConfig *Config) {
	// Merge core config (tempConfig takes precedence for non-empty values)
	mergeString(&config.Core.SocketPath, tempConfig.Core.SocketPath)
	mergeString(&config.Core.PluginDir, tempConfig.Core.PluginDir)
	mergeString(&config.Core.SceneDir, tempConfig.Core.SceneDir)
	mergeString(&config.Core.LogLevel, tempConfig.Core.LogLevel)
	mergeString(&config.Core.LogFormat, tempConfig.Core.LogFormat)
	mergeString(&config.Core.PIDFile, tempConfig.Core.PIDFile)
	mergeString(&config.Core.MetricsAddr, tempConfig.Core.MetricsAddr)

	// Merge plugins
	for k, v := range tempConfig.Plugins {
		if v.Enabled == nil {
			if _, exists := config.Plugins[k]; exists {
				continue
			}
		}
		config.Plugins[k] = v
	}

	// Append includes
	config.Include = append(config.Include, tempConfig.Include...)
}

func mergeString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// resolvePaths makes filesystem paths relative to the config file directory
func (c *Config) resolvePaths(baseDir string) {
	for _, p := range []*string{&c.Core.SceneDir, &c.Core.PluginDir, &c.Core.SocketPath, &c.Core.PIDFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
}

// isReservedConfigKey checks if a config key is reserved for core use
func isReservedConfigKey(key string) bool {
	reserved := []string{"core", "plugins", "include"}
	key = strings.ToLower(key)
	for _, r := range reserved {
		if key == r {
			return true
		}
	}
	return false
}

// GetPluginConfig extracts configuration for a specific plugin
func (c *Config) GetPluginConfig(pluginID string) (map[string]interface{}, bool) {
	raw, exists := c.Raw[pluginID]
	if !exists {
		return nil, false
	}
	config, ok := raw.(map[string]interface{})
	return config, ok
}

// PluginString returns a string setting from a plugin's configuration table
func (c *Config) PluginString(pluginID, key string) (string, bool) {
	config, ok := c.GetPluginConfig(pluginID)
	if !ok {
		return "", false
	}
	value, exists := config[key]
	if !exists {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// SetPluginEnabled records an explicit enabled flag for a plugin
func (c *Config) SetPluginEnabled(pluginID string, enabled bool) {
	if c.Plugins == nil {
		c.Plugins = make(map[string]PluginConfig)
	}
	c.Plugins[pluginID] = PluginConfig{Enabled: &enabled}
}

// IsPluginEnabled checks if a plugin is enabled
func (c *Config) IsPluginEnabled(pluginID string) bool {
	if pluginConfig, exists := c.Plugins[pluginID]; exists && pluginConfig.Enabled != nil {
		return *pluginConfig.Enabled
	}
	return true // Default to enabled if not specified
}
