package config

import "time"

const (
	DefaultPort            = 8080
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxUploadBytes  = 50 << 20

	DefaultStoreDSN = ":memory:"

	DefaultKMin      = 2
	DefaultKMax      = 6
	DefaultSeed      = 42
	DefaultNInit     = 10
	DefaultMaxIter   = 300
	DefaultTolerance = 1e-4

	DefaultFlagRatio = 0.10

	DefaultNameKeyColumn = "KAB_KOTA"

	DefaultZoom        = 7
	DefaultTiles       = "CartoDB positron"
	DefaultNoDataColor = "gray"

	DefaultOutputDir  = "output"
	DefaultJobTimeout = "5m"
)

// DefaultMapCenter is the fallback map center (lat, lon).
var DefaultMapCenter = []float64{-4.0, 122.0}

// DefaultPalette holds the cluster colors, cycled by id modulo its length.
var DefaultPalette = []string{"red", "blue", "green", "purple", "orange", "darkred", "lightblue"}

// DefaultAliases holds the known spelling corrections.
var DefaultAliases = map[string]string{
	"KOTA BAUBAU": "KOTA BAU BAU",
}

// ApplyDefaults fills zero-valued fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Store.DSN == "" {
		cfg.Store.DSN = DefaultStoreDSN
	}

	if cfg.Clustering.KMin == 0 {
		cfg.Clustering.KMin = DefaultKMin
	}
	if cfg.Clustering.KMax == 0 {
		cfg.Clustering.KMax = DefaultKMax
	}
	if cfg.Clustering.Seed == 0 {
		cfg.Clustering.Seed = DefaultSeed
	}
	if cfg.Clustering.NInit == 0 {
		cfg.Clustering.NInit = DefaultNInit
	}
	if cfg.Clustering.MaxIter == 0 {
		cfg.Clustering.MaxIter = DefaultMaxIter
	}
	if cfg.Clustering.Tolerance == 0 {
		cfg.Clustering.Tolerance = DefaultTolerance
	}

	if cfg.Interpretation.FlagRatio == 0 {
		cfg.Interpretation.FlagRatio = DefaultFlagRatio
	}

	if cfg.Geo.NameKeyColumn == "" {
		cfg.Geo.NameKeyColumn = DefaultNameKeyColumn
	}
	if cfg.Geo.Aliases == nil {
		cfg.Geo.Aliases = make(map[string]string, len(DefaultAliases))
		for k, v := range DefaultAliases {
			cfg.Geo.Aliases[k] = v
		}
	}

	if len(cfg.Map.Center) == 0 {
		cfg.Map.Center = append([]float64(nil), DefaultMapCenter...)
	}
	if cfg.Map.Zoom == 0 {
		cfg.Map.Zoom = DefaultZoom
	}
	if cfg.Map.Tiles == "" {
		cfg.Map.Tiles = DefaultTiles
	}
	if len(cfg.Map.Palette) == 0 {
		cfg.Map.Palette = append([]string(nil), DefaultPalette...)
	}
	if cfg.Map.NoDataColor == "" {
		cfg.Map.NoDataColor = DefaultNoDataColor
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if cfg.JobTimeout == "" {
		cfg.JobTimeout = DefaultJobTimeout
	}
}

// Default returns a fully defaulted Config.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
