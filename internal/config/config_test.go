package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2, cfg.Clustering.KMin)
	assert.Equal(t, 6, cfg.Clustering.KMax)
	assert.EqualValues(t, 42, cfg.Clustering.Seed)
	assert.Equal(t, 10, cfg.Clustering.NInit)
	assert.Equal(t, "KAB_KOTA", cfg.Geo.NameKeyColumn)
	assert.Equal(t, []float64{-4.0, 122.0}, cfg.Map.Center)
	assert.Len(t, cfg.Map.Palette, 7)
	assert.Equal(t, "gray", cfg.Map.NoDataColor)
	assert.Equal(t, ":memory:", cfg.Store.DSN)
	assert.Equal(t, ":8080", cfg.Server.Addr())
}

func TestApplyDefaults_DoesNotShareSlices(t *testing.T) {
	a := Default()
	a.Map.Palette[0] = "black"
	a.Geo.Aliases["X"] = "Y"

	b := Default()
	assert.Equal(t, "red", b.Map.Palette[0])
	assert.NotContains(t, b.Geo.Aliases, "X")
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Clustering.KMin = 1
	cfg.Clustering.KMax = 0
	cfg.Map.Palette = []string{"red"}
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "k_min")
	assert.Contains(t, err.Error(), "k_max")
	assert.Contains(t, err.Error(), "palette")
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoad_FileAndAliases(t *testing.T) {
	p := writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s
clustering:
  k_min: 3
  k_max: 5
  parallel: true
geo:
  name_key_column: NAME
  aliases:
    Kota Baubau: Kota Bau Bau
map:
  palette: [a, b, c, d, e, f, g, h]
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 3, cfg.Clustering.KMin)
	assert.Equal(t, 5, cfg.Clustering.KMax)
	assert.True(t, cfg.Clustering.Parallel)
	assert.Equal(t, "NAME", cfg.Geo.NameKeyColumn)
	assert.Len(t, cfg.Map.Palette, 8)
	assert.Equal(t, map[string]string{"KOTA BAUBAU": "KOTA BAU BAU"}, cfg.Geo.NormalizedAliases())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidRange(t *testing.T) {
	p := writeConfig(t, "clustering:\n  k_min: 5\n  k_max: 3\n")
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("GEOCLUSTER_CLUSTERING_K_MAX", "8")
	t.Setenv("GEOCLUSTER_GEO_NAME_KEY_COLUMN", "REGION")
	t.Setenv("GEOCLUSTER_JOB_TIMEOUT", "90s")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Clustering.KMax)
	assert.Equal(t, "REGION", cfg.Geo.NameKeyColumn)
	assert.Equal(t, "90s", cfg.JobTimeout)
}

func TestMustLoad_PanicsOnBadFile(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "nope.yaml")) })
	assert.NotPanics(t, func() { MustLoad("") })
}
