package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "GEOCLUSTER"

// envKeys are bound explicitly so GEOCLUSTER_* overrides reach Unmarshal even
// when no config file mentions the key.
var envKeys = []string{
	"server.port", "server.read_timeout", "server.write_timeout",
	"server.shutdown_timeout", "server.max_upload_bytes",
	"log.level", "log.format",
	"store.dsn",
	"clustering.k_min", "clustering.k_max", "clustering.seed", "clustering.n_init",
	"clustering.max_iter", "clustering.tolerance", "clustering.parallel",
	"clustering.entity_column",
	"interpretation.flag_ratio",
	"geo.name_key_column", "geo.shapefile_path",
	"map.zoom", "map.tiles", "map.no_data_color", "map.simplify_tolerance",
	"output.dir",
	"job_timeout",
}

// newViper builds a viper instance with YAML file type, GEOCLUSTER_ env
// prefix and a "." -> "_" key replacer, so "clustering.k_max" resolves to
// GEOCLUSTER_CLUSTERING_K_MAX.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the YAML file at configPath, merges GEOCLUSTER_* environment
// overrides, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from GEOCLUSTER_* variables and defaults only.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadOptional loads configPath when set and falls back to LoadFromEnv.
func LoadOptional(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// MustLoad wraps LoadOptional and panics on error. For main() only.
func MustLoad(configPath string) *Config {
	cfg, err := LoadOptional(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
