package model

import "github.com/paulmach/orb"

// GeoFeature is one geometry row: attributes plus a polygon or multipolygon.
type GeoFeature struct {
	Properties GenericRecord `json:"properties"`
	Geometry   orb.Geometry  `json:"-"`
}

// GeoTable is a geometry source or a merged geometry table.
type GeoTable struct {
	Columns  []string     `json:"columns"`
	Features []GeoFeature `json:"features"`
}

// Len returns the number of features.
func (g *GeoTable) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Features)
}

// HasColumn reports whether name is one of the attribute columns.
func (g *GeoTable) HasColumn(name string) bool {
	if g == nil {
		return false
	}
	for _, c := range g.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Clone copies attributes; geometries are shared and treated as read-only.
func (g *GeoTable) Clone() *GeoTable {
	if g == nil {
		return nil
	}
	out := &GeoTable{
		Columns:  append([]string(nil), g.Columns...),
		Features: make([]GeoFeature, len(g.Features)),
	}
	for i, f := range g.Features {
		out.Features[i] = GeoFeature{Properties: f.Properties.Clone(), Geometry: f.Geometry}
	}
	return out
}

// Bound returns the union bound of all non-nil geometries.
func (g *GeoTable) Bound() (orb.Bound, bool) {
	var (
		b     orb.Bound
		found bool
	)
	for _, f := range g.Features {
		if f.Geometry == nil {
			continue
		}
		if !found {
			b = f.Geometry.Bound()
			found = true
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b, found
}

// MergeReport is the Geo Merge Service's output.
type MergeReport struct {
	Merged *GeoTable `json:"-"`
	// MissingInGeometry lists standardized partition names without a geometry row.
	MissingInGeometry []string `json:"missing_in_geometry"`
	// MissingInPartition lists geometry names without a partition row.
	MissingInPartition []string `json:"missing_in_partition_data"`
	TotalMatched       int      `json:"total_matched"`
	NameKeyColumn      string   `json:"name_key_column"`
	EntityColumn       string   `json:"entity_column"`
	Features           []string `json:"features"`
}

// RenderSpec maps cluster ids to colors.
type RenderSpec struct {
	Palette     []string `json:"palette"`
	NoDataColor string   `json:"no_data_color"`
}

// Color returns palette[id mod len]. Negative ids get the no-data color.
func (s RenderSpec) Color(id int) string {
	if id < 0 || len(s.Palette) == 0 {
		return s.NoDataColor
	}
	return s.Palette[id%len(s.Palette)]
}

// MapState is the terminal state of one render call.
type MapState string

const (
	MapRendered MapState = "rendered"
	MapFallback MapState = "fallback"
)

// LegendEntry is one legend row. Cluster is nil for the no-data row.
type LegendEntry struct {
	Cluster *int   `json:"cluster"`
	Label   string `json:"label"`
	Color   string `json:"color"`
}

// MapLabel is a text label placed at a feature's centroid.
type MapLabel struct {
	Text string    `json:"text"`
	At   orb.Point `json:"at"`
}

// MapArtifact is the renderable choropleth, or the fallback base map.
type MapArtifact struct {
	State   MapState  `json:"state"`
	Message string    `json:"message,omitempty"`
	Center  orb.Point `json:"center"` // lon, lat
	Zoom    int       `json:"zoom"`
	Tiles   string    `json:"tiles"`
	// Bounds is set when the layer should be fitted.
	Bounds *orb.Bound `json:"bounds,omitempty"`
	// Layer is the styled GeoJSON FeatureCollection, nil on fallback.
	Layer        []byte        `json:"-"`
	Legend       []LegendEntry `json:"legend,omitempty"`
	Labels       []MapLabel    `json:"labels,omitempty"`
	TooltipField []string      `json:"tooltip_fields,omitempty"`
	PopupFields  []string      `json:"popup_fields,omitempty"`
}
