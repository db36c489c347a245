package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"geo-cluster-pipeline/internal/model"
)

// sultraRegions are the 17 regencies and cities of the fixture province,
// spelled as in the geometry source.
var sultraRegions = []string{
	"BOMBANA", "BUTON", "BUTON SELATAN", "BUTON TENGAH", "BUTON UTARA",
	"KOLAKA", "KOLAKA TIMUR", "KOLAKA UTARA", "KONAWE", "KONAWE KEPULAUAN",
	"KONAWE SELATAN", "KONAWE UTARA", "MUNA", "MUNA BARAT", "WAKATOBI",
	"KOTA KENDARI", "KOTA BAU BAU",
}

// sultraCSV builds a 17-row dataset with three features in three clear
// groups. misspelled replaces the entity name of the WAKATOBI row when set.
func sultraCSV(misspelled string) string {
	var b strings.Builder
	b.WriteString("Kabupaten/Kota,Population,Poverty,HDI\n")
	for i, name := range sultraRegions {
		switch name {
		case "WAKATOBI":
			if misspelled != "" {
				name = misspelled
			}
		case "KOTA BAU BAU":
			name = "Kota Baubau"
		}
		var pop, pov, hdi float64
		switch i % 3 {
		case 0:
			pop, pov, hdi = 100+float64(i), 20+float64(i%2), 60+float64(i%2)*0.5
		case 1:
			pop, pov, hdi = 300+float64(i), 12+float64(i%2), 70+float64(i%2)*0.5
		default:
			pop, pov, hdi = 500+float64(i), 5+float64(i%2), 80+float64(i%2)*0.5
		}
		fmt.Fprintf(&b, "%s,%.1f,%.2f,%.2f\n", name, pop, pov, hdi)
	}
	return b.String()
}

// sultraGeoJSON returns one unit square per region laid out on a grid.
func sultraGeoJSON(t *testing.T) []byte {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	for i, name := range sultraRegions {
		x, y := 121.0+float64(i%5)*0.5, -5.0+float64(i/5)*0.5
		poly := orb.Polygon{{{x, y}, {x + 0.4, y}, {x + 0.4, y + 0.4}, {x, y + 0.4}, {x, y}}}
		f := geojson.NewFeature(poly)
		f.Properties["KAB_KOTA"] = name
		f.Properties["ID"] = i + 1
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	return data
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// blobs returns three well separated 2-D groups of five points each.
func blobs() [][]float64 {
	var data [][]float64
	for _, c := range [][2]float64{{0.1, 0.1}, {0.9, 0.1}, {0.5, 0.9}} {
		for _, d := range [][2]float64{{0, 0}, {0.02, 0}, {0, 0.02}, {-0.02, 0}, {0, -0.02}} {
			data = append(data, []float64{c[0] + d[0], c[1] + d[1]})
		}
	}
	return data
}

// table builds a Table from a header and rows of cells.
func table(columns []string, rows ...[]interface{}) *model.Table {
	t := &model.Table{Columns: columns}
	for _, r := range rows {
		rec := make(model.GenericRecord, len(columns))
		for i, c := range columns {
			rec[c] = r[i]
		}
		t.Records = append(t.Records, rec)
	}
	return t
}

func square(x, y float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}}
}

// geoTable builds a geometry source keyed by KAB_KOTA.
func geoTable(names ...string) *model.GeoTable {
	g := &model.GeoTable{Columns: []string{"KAB_KOTA"}}
	for i, n := range names {
		g.Features = append(g.Features, model.GeoFeature{
			Properties: model.GenericRecord{"KAB_KOTA": n},
			Geometry:   square(float64(i), 0),
		})
	}
	return g
}
