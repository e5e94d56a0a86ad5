package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// ErrUnknownKey is returned when a key is not a configuration key.
var ErrUnknownKey = errors.New("unknown configuration key")

// Setting is one flattened key and its rendered value.
type Setting struct {
	Key   string
	Value string
}

// Keys returns every scalar or list configuration key, sorted.
// router.roles is structured and only editable in the file.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	var keys []string
	for _, k := range v.AllKeys() {
		if k == "router.roles" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key can be read or set by name.
func IsKnownKey(key string) bool {
	key = strings.ToLower(key)
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// Settings flattens cfg into sorted key/value pairs.
func Settings(cfg *Config) []Setting {
	v := viper.New()
	apply(v, cfg)
	out := make([]Setting, 0, len(Keys()))
	for _, k := range Keys() {
		out = append(out, Setting{Key: k, Value: render(v.Get(k))})
	}
	return out
}

// Lookup returns the rendered value of key in cfg.
func Lookup(cfg *Config, key string) (string, error) {
	if !IsKnownKey(key) {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v := viper.New()
	apply(v, cfg)
	return render(v.Get(strings.ToLower(key))), nil
}

// SetKey writes one key into the YAML file at path, keeping the other keys
// already in it. List keys take a comma-separated value.
func SetKey(path, key, value string) error {
	key = strings.ToLower(key)
	if !IsKnownKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}

	defaults := viper.New()
	setDefaults(defaults)
	if _, isList := defaults.Get(key).([]string); isList {
		v.Set(key, splitList(value))
	} else {
		v.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return v.WriteConfigAs(path)
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func render(val any) string {
	switch t := val.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(t, ",")
	default:
		return fmt.Sprint(t)
	}
}
