// Package geo loads and writes the geometry sources consumed by the merge
// stage: zipped ESRI shapefiles and GeoJSON feature collections.
package geo

import (
	"fmt"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// shapeToGeometry converts a shapefile polygon into an orb Polygon or
// MultiPolygon. Clockwise rings start a new polygon; counter-clockwise rings
// are holes of the preceding one.
func shapeToGeometry(s shp.Shape) (orb.Geometry, error) {
	var parts []int32
	var points []shp.Point
	switch p := s.(type) {
	case *shp.Polygon:
		parts, points = p.Parts, p.Points
	case *shp.PolygonZ:
		parts, points = p.Parts, p.Points
	case *shp.PolygonM:
		parts, points = p.Parts, p.Points
	case *shp.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported shape type %T", s)
	}

	var polys orb.MultiPolygon
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		if len(ring) < 4 {
			continue
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		if ring.Orientation() == orb.CW || len(polys) == 0 {
			polys = append(polys, orb.Polygon{ring})
			continue
		}
		polys[len(polys)-1] = append(polys[len(polys)-1], ring)
	}

	switch len(polys) {
	case 0:
		return nil, nil
	case 1:
		return polys[0], nil
	default:
		return polys, nil
	}
}

// geometryToShape converts an orb Polygon or MultiPolygon into a shapefile
// polygon with clockwise outer rings and counter-clockwise holes.
func geometryToShape(g orb.Geometry) (*shp.Polygon, error) {
	var polys orb.MultiPolygon
	switch v := g.(type) {
	case orb.Polygon:
		polys = orb.MultiPolygon{v}
	case orb.MultiPolygon:
		polys = v
	default:
		return nil, fmt.Errorf("unsupported geometry %T", g)
	}

	var parts [][]shp.Point
	for _, poly := range polys {
		for i, ring := range poly {
			r := ring.Clone()
			wantCW := i == 0
			if (r.Orientation() == orb.CW) != wantCW {
				r.Reverse()
			}
			pts := make([]shp.Point, len(r))
			for j, p := range r {
				pts[j] = shp.Point{X: p[0], Y: p[1]}
			}
			parts = append(parts, pts)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("geometry has no rings")
	}
	polygon := shp.Polygon(*shp.NewPolyLine(parts))
	return &polygon, nil
}
