package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix is used when Load is given an empty prefix.
const DefaultEnvPrefix = "SPARQLOPS_"

// Load reads the configuration at path (optional) and applies environment
// overrides carrying prefix. The result is validated.
func Load(path, prefix string) (Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrRead, err)
		}
	}

	applyEnv(v, prefix, os.Environ())

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv sets one key per prefixed variable:
// PREFIX_EXECUTOR__MAX_CONCURRENT=4 sets executor.max_concurrent.
func applyEnv(v *viper.Viper, prefix string, environ []string) {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	prefix = strings.ToUpper(prefix)
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		prop := strings.ToLower(strings.TrimPrefix(key, prefix))
		prop = strings.ReplaceAll(prop, "__", ".")
		if prop == "" {
			continue
		}
		v.Set(prop, value)
	}
}
