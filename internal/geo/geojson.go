package geo

import (
	"io"
	"math"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
)

// ReadGeoJSONFile loads a GeoJSON FeatureCollection from path.
func ReadGeoJSONFile(path string) (*model.GeoTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "failed to read GeoJSON file")
	}
	return ParseGeoJSON(data)
}

// ParseGeoJSON decodes a FeatureCollection. Only Polygon and MultiPolygon
// geometries are kept; other geometry types load as nil.
func ParseGeoJSON(data []byte) (*model.GeoTable, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDataDefect, "invalid GeoJSON FeatureCollection")
	}
	if len(fc.Features) == 0 {
		return nil, apperrors.DataDefect("GeoJSON has no features")
	}

	table := &model.GeoTable{}
	seen := make(map[string]bool)
	for _, f := range fc.Features {
		keys := make([]string, 0, len(f.Properties))
		for k := range f.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				table.Columns = append(table.Columns, k)
			}
		}

		props := make(model.GenericRecord, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}

		var g orb.Geometry
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			g = f.Geometry
		}
		table.Features = append(table.Features, model.GeoFeature{Properties: props, Geometry: g})
	}
	return table, nil
}

// EncodeGeoJSON converts table to a FeatureCollection, one feature per row.
// NaN and infinite numbers become null.
func EncodeGeoJSON(table *model.GeoTable) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range table.Features {
		feature := geojson.NewFeature(f.Geometry)
		for k, v := range f.Properties {
			if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
				v = nil
			}
			feature.Properties[k] = v
		}
		fc.Append(feature)
	}
	return fc
}

// WriteGeoJSON writes table as a FeatureCollection to w.
func WriteGeoJSON(w io.Writer, table *model.GeoTable) error {
	if table == nil {
		return apperrors.Precondition("nothing to write: geometry table is nil")
	}
	data, err := EncodeGeoJSON(table).MarshalJSON()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode GeoJSON")
	}
	_, err = w.Write(data)
	return err
}
