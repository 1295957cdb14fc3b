package am

import (
	"os"
	"sort"
	"strings"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/inout/am.toml
	SourceUser        ConfigSource = "user"        // ~/.inout/am.toml
	SourceProject     ConfigSource = "project"     // nearest am.toml
	SourceEnvironment ConfigSource = "environment" // INOUT_* env vars
)

// ConfigFile is one file of the cascade.
type ConfigFile struct {
	Path   string
	Source ConfigSource
}

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string // File path or environment variable name
}

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key" yaml:"key"`
	Value      interface{}  `json:"value" yaml:"value"`
	Source     ConfigSource `json:"source" yaml:"source"`
	SourcePath string       `json:"source_path,omitempty" yaml:"source_path,omitempty"`
}

// Introspect lists every effective setting with the source that set it.
// Sensitive values are masked.
func Introspect() []SettingInfo {
	mu.Lock()
	defer mu.Unlock()
	v := initViper()

	keys := v.AllKeys()
	sort.Strings(keys)

	settings := make([]SettingInfo, 0, len(keys))
	for _, key := range keys {
		info := SourceInfo{Source: SourceDefault, Path: "built-in default"}
		if si, ok := configSources[key]; ok {
			info = si
		}
		if env := envKey(key); os.Getenv(env) != "" {
			info = SourceInfo{Source: SourceEnvironment, Path: env}
		}
		settings = append(settings, SettingInfo{
			Key:        key,
			Value:      redact(key, v.Get(key)),
			Source:     info.Source,
			SourcePath: info.Path,
		})
	}
	return settings
}

// Redacted returns the effective settings as nested sections with
// sensitive values masked, for display.
func Redacted() map[string]interface{} {
	out := make(map[string]interface{})
	for _, s := range Introspect() {
		section, leaf, ok := strings.Cut(s.Key, ".")
		if !ok {
			out[s.Key] = s.Value
			continue
		}
		m, _ := out[section].(map[string]interface{})
		if m == nil {
			m = make(map[string]interface{})
			out[section] = m
		}
		m[leaf] = s.Value
	}
	return out
}

func envKey(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func redact(key string, value interface{}) interface{} {
	if s, ok := value.(string); ok && sensitiveKeys[key] && s != "" {
		return "********"
	}
	return value
}
