package am

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/teranos/inout/errors"
)

// backupCount is how many rotated copies (.back1 ... .back3) Set keeps.
const backupCount = 3

// UserConfigPath is ~/.inout/am.toml, the file Set writes.
func UserConfigPath() string {
	dir := UserDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "am.toml")
}

// Set stores key = value in the user config file and returns its path.
// The value is parsed according to the type of the key's default.
func Set(key, value string) (string, error) {
	defaults := viper.New()
	SetDefaults(defaults)
	if !defaults.IsSet(key) {
		return "", errors.WithHint(
			errors.NewInvalidRequestError("unknown config key %q", key),
			"run `inout am show --sources` to list the keys",
		)
	}
	typed, err := parseValue(defaults.Get(key), value)
	if err != nil {
		return "", errors.Wrapf(err, "%s", key)
	}

	path := UserConfigPath()
	if path == "" {
		return "", errors.New("could not determine home directory")
	}
	config, err := readTOML(path)
	if err != nil {
		return "", err
	}

	section, leaf, _ := strings.Cut(key, ".")
	m, _ := config[section].(map[string]interface{})
	if m == nil {
		m = make(map[string]interface{})
	}
	m[leaf] = typed
	config[section] = m

	if err := writeTOML(path, config); err != nil {
		return "", err
	}
	Reset()
	return path, nil
}

func parseValue(def interface{}, s string) (interface{}, error) {
	switch def.(type) {
	case bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.NewInvalidRequestError("expected true or false, got %q", s)
		}
		return b, nil
	case int:
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.NewInvalidRequestError("expected an integer, got %q", s)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.NewInvalidRequestError("expected a number, got %q", s)
		}
		return f, nil
	case []string:
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return s, nil
	}
}

func readTOML(path string) (map[string]interface{}, error) {
	config := make(map[string]interface{})
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return config, nil
}

func writeTOML(path string, config map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}
	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// createBackup rotates path.back1 .. path.backN and copies path to .back1.
func createBackup(path string) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	oldest := backupName(path, backupCount)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete old backup %s", oldest)
	}
	for i := backupCount - 1; i >= 1; i-- {
		from := backupName(path, i)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := os.Rename(from, backupName(path, i+1)); err != nil {
			return errors.Wrapf(err, "failed to rotate %s", from)
		}
	}
	if err := os.WriteFile(backupName(path, 1), content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}

func backupName(path string, n int) string {
	return path + ".back" + strconv.Itoa(n)
}
