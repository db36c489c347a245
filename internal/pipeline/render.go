package pipeline

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"geo-cluster-pipeline/internal/model"
	"geo-cluster-pipeline/pkg/logging"
)

// RendererConfig controls the choropleth artifact.
type RendererConfig struct {
	// Center is the fallback center as [lat, lon].
	Center            []float64
	Zoom              int
	Tiles             string
	Palette           []string
	NoDataColor       string
	NameKeyColumn     string
	SimplifyTolerance float64
}

// DefaultRendererConfig mirrors the configuration defaults.
func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		Center:        []float64{-4.0, 122.0},
		Zoom:          7,
		Tiles:         "CartoDB positron",
		Palette:       []string{"red", "blue", "green", "purple", "orange", "darkred", "lightblue"},
		NoDataColor:   "gray",
		NameKeyColumn: "KAB_KOTA",
	}
}

// Renderer turns a merged geometry table into a MapArtifact.
type Renderer struct {
	cfg    RendererConfig
	spec   model.RenderSpec
	logger logging.Logger
}

func NewRenderer(cfg RendererConfig, logger logging.Logger) *Renderer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Renderer{
		cfg:    cfg,
		spec:   model.RenderSpec{Palette: cfg.Palette, NoDataColor: cfg.NoDataColor},
		logger: logger.Named("render"),
	}
}

// Spec returns the color mapping in use.
func (r *Renderer) Spec() model.RenderSpec { return r.spec }

// Render never fails: precondition violations and internal panics yield a
// fallback artifact carrying the defect message.
func (r *Renderer) Render(merged *model.GeoTable, features []string, k int) (art *model.MapArtifact) {
	defer func() {
		if rec := recover(); rec != nil {
			art = r.Fallback(fmt.Sprintf("rendering error: %v", rec))
		}
	}()

	switch {
	case merged == nil || merged.Len() == 0:
		return r.Fallback("geospatial data is empty or invalid")
	case !merged.HasColumn(model.ClusterColumn):
		return r.Fallback(fmt.Sprintf("column %q not found in geospatial data", model.ClusterColumn))
	}

	bound, ok := merged.Bound()
	if !ok {
		return r.Fallback("data has no valid geometry")
	}

	art = &model.MapArtifact{
		State:        model.MapRendered,
		Center:       bound.Center(),
		Zoom:         r.cfg.Zoom,
		Tiles:        r.cfg.Tiles,
		Bounds:       &bound,
		Legend:       r.Legend(k),
		TooltipField: []string{r.cfg.NameKeyColumn, model.ClusterColumn},
		PopupFields:  []string{r.cfg.NameKeyColumn, model.ClusterColumn},
	}
	for _, f := range features {
		art.PopupFields = append(art.PopupFields, model.CentroidColumn(f))
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range merged.Features {
		if f.Geometry == nil {
			continue
		}
		g := f.Geometry
		if r.cfg.SimplifyTolerance > 0 {
			g = simplify.DouglasPeucker(r.cfg.SimplifyTolerance).Simplify(orb.Clone(g))
		}

		feature := geojson.NewFeature(g)
		for key, v := range f.Properties {
			feature.Properties[key] = jsonSafe(v)
		}
		feature.Properties["style"] = r.Style(f.Properties[model.ClusterColumn])
		fc.Append(feature)

		if centroid, _ := planar.CentroidArea(f.Geometry); !math.IsNaN(centroid[0]) {
			art.Labels = append(art.Labels, model.MapLabel{
				Text: cellString(f.Properties[r.cfg.NameKeyColumn]),
				At:   centroid,
			})
		}
	}

	layer, err := fc.MarshalJSON()
	if err != nil {
		return r.Fallback(fmt.Sprintf("rendering error: %v", err))
	}
	art.Layer = layer

	r.logger.Info("map rendered",
		logging.Int("features", len(fc.Features)),
		logging.Int("k", k),
	)
	return art
}

// Fallback returns the plain base map at the configured center.
func (r *Renderer) Fallback(message string) *model.MapArtifact {
	r.logger.Warn("map fallback", logging.String("reason", message))
	center := orb.Point{122.0, -4.0}
	if len(r.cfg.Center) == 2 {
		center = orb.Point{r.cfg.Center[1], r.cfg.Center[0]}
	}
	return &model.MapArtifact{
		State:   model.MapFallback,
		Message: message,
		Center:  center,
		Zoom:    r.cfg.Zoom,
		Tiles:   r.cfg.Tiles,
	}
}

// Legend lists clusters 0..k-1 followed by the no-data row.
func (r *Renderer) Legend(k int) []model.LegendEntry {
	legend := make([]model.LegendEntry, 0, k+1)
	for c := 0; c < k; c++ {
		id := c
		legend = append(legend, model.LegendEntry{
			Cluster: &id,
			Label:   fmt.Sprintf("Cluster %d", c),
			Color:   r.spec.Color(c),
		})
	}
	return append(legend, model.LegendEntry{Label: "No data", Color: r.spec.NoDataColor})
}

// Style returns the Leaflet path style for a cluster value.
func (r *Renderer) Style(cluster interface{}) map[string]interface{} {
	id, ok := clusterID(cluster)
	if !ok {
		return map[string]interface{}{
			"fillColor": r.spec.NoDataColor, "color": "black", "weight": 1, "fillOpacity": 0.3,
		}
	}
	return map[string]interface{}{
		"fillColor": r.spec.Color(id), "color": "black", "weight": 1, "fillOpacity": 0.7,
	}
}

func jsonSafe(v interface{}) interface{} {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}
