package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/inout/errors"
)

// EnvPrefix prefixes every environment override (INOUT_POSTGRES_DSN, ...).
const EnvPrefix = "INOUT"

// SystemConfigPath is the lowest-precedence config file.
var SystemConfigPath = "/etc/inout/am.toml"

var (
	mu            sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper
	configSources map[string]SourceInfo
)

// Load reads the inout configuration using Viper
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if globalConfig != nil {
		return globalConfig, nil
	}

	config, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}
	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Defaults apply, environment variables do not
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	return LoadWithViper(v)
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viperInstance = nil
	configSources = nil
}

// initViper initializes Viper with configuration sources and defaults.
// Callers hold mu.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)
	SetDefaults(v)

	// system -> user -> project -> env vars
	configSources = mergeConfigFiles(v, configPaths())

	viperInstance = v
	return v
}

// configPaths lists the config files in increasing precedence.
func configPaths() []ConfigFile {
	files := []ConfigFile{{Path: SystemConfigPath, Source: SourceSystem}}
	if dir := UserDir(); dir != "" {
		files = append(files, ConfigFile{Path: filepath.Join(dir, "am.toml"), Source: SourceUser})
	}
	if project := findProjectConfig(); project != "" {
		files = append(files, ConfigFile{Path: project, Source: SourceProject})
	}
	return files
}

// findProjectConfig searches for am.toml by walking up the directory tree.
// Returns the path to the first config file found, or empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	user := ""
	if d := UserDir(); d != "" {
		user = filepath.Join(d, "am.toml")
	}

	for {
		amPath := filepath.Join(dir, "am.toml")
		if _, err := os.Stat(amPath); err == nil && amPath != user {
			return amPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// mergeConfigFiles merges the files that exist into v, later files winning,
// and returns which file set each key.
func mergeConfigFiles(v *viper.Viper, files []ConfigFile) map[string]SourceInfo {
	sources := make(map[string]SourceInfo)
	for _, f := range files {
		if _, err := os.Stat(f.Path); err != nil {
			continue
		}
		tempViper := viper.New()
		tempViper.SetConfigFile(f.Path)
		tempViper.SetConfigType("toml")
		if err := tempViper.ReadInConfig(); err != nil {
			continue
		}
		// MergeConfigMap merges sections key by key and stays below env vars
		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			continue
		}
		for _, key := range tempViper.AllKeys() {
			sources[key] = SourceInfo{Source: f.Source, Path: f.Path}
		}
	}
	return sources
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	return GetViper().Get(key)
}
