package feed

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/media-report/app/logger"
)

const sourceFilePattern = "*.{yml,yaml}"

const (
	DefaultRefreshInterval = 3600
	DefaultTimeout         = 30
	DefaultSummaryLength   = 280
)

type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := doublestar.Glob(os.DirFS(cc.sourcesDir), sourceFilePattern)
	if err != nil {
		return fmt.Errorf("failed to find source files: %w", err)
	}

	for _, file := range files {
		name, ok := SourceName(file)
		if !ok {
			continue
		}

		config, err := cc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		logger.Log.WithFields(logrus.Fields{
			"feed":             name,
			"format":           config.Format,
			"enabled":          config.Settings.Enabled,
			"refresh_interval": config.Settings.RefreshInterval,
		}).Debug("Configuration loaded")
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(name string) (*Config, error) {
	configFile, err := cc.getConfigFilePath(name)
	if err != nil {
		return nil, err
	}

	config, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.Name = name

	if err := cc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Name] = config

	return config, nil
}

func (cc *ConfigCache) GetConfig(name string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[name]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	return config, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) Remove(name string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	delete(cc.cache, name)
}

func (cc *ConfigCache) Dir() string {
	return cc.sourcesDir
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Format == "" {
		config.Format = FormatJSON
	}
	if config.Settings.RefreshInterval == 0 {
		config.Settings.RefreshInterval = DefaultRefreshInterval
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = DefaultTimeout
	}
	if config.Settings.FreshnessDays == 0 {
		config.Settings.FreshnessDays = DefaultFreshnessDays
	}
	if config.Settings.FallbackImage == "" {
		config.Settings.FallbackImage = DefaultFallbackImage
	}
	if len(config.Settings.PlaceholderDomains) == 0 {
		config.Settings.PlaceholderDomains = DefaultPlaceholderDomains
	}
	if config.Settings.SummaryLength == 0 {
		config.Settings.SummaryLength = DefaultSummaryLength
	}

	return &config, nil
}

func (cc *ConfigCache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	requiredFields := map[string]string{
		"source name": config.Name,
		"source URL":  config.URL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	nonNegativeFields := map[string]int{
		"refresh interval": config.Settings.RefreshInterval,
		"timeout":          config.Settings.Timeout,
		"freshness days":   config.Settings.FreshnessDays,
		"summary length":   config.Settings.SummaryLength,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	switch config.Format {
	case FormatJSON:
	case FormatRSS:
		if config.Category == "" {
			return fmt.Errorf("rss source requires a category")
		}
		declared := false
		for _, c := range config.Categories {
			if c.Slug == config.Category {
				declared = true
				break
			}
		}
		if !declared {
			return fmt.Errorf("category %q is not declared in categories", config.Category)
		}
	default:
		return fmt.Errorf("invalid format: %s", config.Format)
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(name string) (string, error) {
	for _, ext := range []string{".yml", ".yaml"} {
		path := filepath.Join(cc.sourcesDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no config file for source '%s' in %s", name, cc.sourcesDir)
}

// SourceName derives a source name from a config file path.
func SourceName(path string) (string, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext != ".yml" && ext != ".yaml" {
		return "", false
	}
	name := strings.TrimSuffix(base, ext)
	if name == "" || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}
