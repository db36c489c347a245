// Package config provides configuration loading, defaults and validation for
// the geo-cluster pipeline.
package config

import (
	"fmt"
	"strings"
	"time"

	"geo-cluster-pipeline/pkg/logging"
)

// Config is the root configuration object.
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Log            logging.LogConfig    `mapstructure:"log"`
	Store          StoreConfig          `mapstructure:"store"`
	Clustering     ClusteringConfig     `mapstructure:"clustering"`
	Interpretation InterpretationConfig `mapstructure:"interpretation"`
	Geo            GeoConfig            `mapstructure:"geo"`
	Map            MapConfig            `mapstructure:"map"`
	Output         OutputConfig         `mapstructure:"output"`
	// JobTimeout bounds one asynchronous run, e.g. "5m".
	JobTimeout string `mapstructure:"job_timeout"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxUploadBytes caps multipart uploads.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf(":%d", s.Port) }

// StoreConfig holds the run registry DSN. ":memory:" keeps nothing across restarts.
type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ClusteringConfig controls evaluation and the final fit.
type ClusteringConfig struct {
	KMin      int     `mapstructure:"k_min"`
	KMax      int     `mapstructure:"k_max"`
	Seed      int64   `mapstructure:"seed"`
	NInit     int     `mapstructure:"n_init"`
	MaxIter   int     `mapstructure:"max_iter"`
	Tolerance float64 `mapstructure:"tolerance"`
	// Parallel fans out the per-k evaluation loop.
	Parallel bool `mapstructure:"parallel"`
	// EntityColumn names the entity column; empty means auto-detect.
	EntityColumn string `mapstructure:"entity_column"`
}

// InterpretationConfig controls high/low feature flagging.
type InterpretationConfig struct {
	FlagRatio float64 `mapstructure:"flag_ratio"`
}

// GeoConfig controls geometry loading and name matching.
type GeoConfig struct {
	NameKeyColumn string `mapstructure:"name_key_column"`
	// Aliases maps a standardized partition-side name to its geometry spelling.
	Aliases       map[string]string `mapstructure:"aliases"`
	ShapefilePath string            `mapstructure:"shapefile_path"`
}

// MapConfig controls the choropleth artifact.
type MapConfig struct {
	Center            []float64 `mapstructure:"center"`
	Zoom              int       `mapstructure:"zoom"`
	Tiles             string    `mapstructure:"tiles"`
	Palette           []string  `mapstructure:"palette"`
	NoDataColor       string    `mapstructure:"no_data_color"`
	SimplifyTolerance float64   `mapstructure:"simplify_tolerance"`
}

// OutputConfig controls where run artifacts are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// NormalizedAliases returns the alias table with upper-cased keys and values.
// Viper lower-cases map keys on read.
func (g GeoConfig) NormalizedAliases() map[string]string {
	out := make(map[string]string, len(g.Aliases))
	for k, v := range g.Aliases {
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}
	return out
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Log.Level) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Clustering.KMin < 2 {
		problems = append(problems, "clustering.k_min must be >= 2")
	}
	if c.Clustering.KMax < c.Clustering.KMin {
		problems = append(problems, "clustering.k_max must be >= clustering.k_min")
	}
	if c.Clustering.NInit < 1 {
		problems = append(problems, "clustering.n_init must be >= 1")
	}
	if c.Clustering.MaxIter < 1 {
		problems = append(problems, "clustering.max_iter must be >= 1")
	}
	if c.Interpretation.FlagRatio < 0 {
		problems = append(problems, "interpretation.flag_ratio must be >= 0")
	}
	if strings.TrimSpace(c.Geo.NameKeyColumn) == "" {
		problems = append(problems, "geo.name_key_column is required")
	}
	if len(c.Map.Center) != 2 {
		problems = append(problems, "map.center must be [lat, lon]")
	}
	if len(c.Map.Palette) < 7 {
		problems = append(problems, "map.palette needs at least 7 colors")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}
