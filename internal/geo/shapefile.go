package geo

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/klauspost/compress/zip"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/utils"
)

// ------------------- Reading -------------------

// ReadShapefile loads a .shp file (with its .shx/.dbf siblings).
func ReadShapefile(path string) (*model.GeoTable, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDataDefect, "failed to open shapefile")
	}
	defer reader.Close()

	fields := reader.Fields()
	table := &model.GeoTable{Columns: make([]string, len(fields))}
	for i, f := range fields {
		table.Columns[i] = fieldName(f)
	}

	for reader.Next() {
		n, shape := reader.Shape()
		g, err := shapeToGeometry(shape)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDataDefect, fmt.Sprintf("shape %d", n))
		}
		props := make(model.GenericRecord, len(fields))
		for i, f := range fields {
			props[table.Columns[i]] = attributeValue(f, reader.ReadAttribute(n, i))
		}
		table.Features = append(table.Features, model.GeoFeature{Properties: props, Geometry: g})
	}
	if table.Len() == 0 {
		return nil, apperrors.DataDefect("shapefile %q has no records", filepath.Base(path))
	}
	return table, nil
}

// ReadShapefileZip extracts a zip archive into a temporary directory and
// loads the first .shp it contains. The directory is removed afterwards.
func ReadShapefileZip(path string) (*model.GeoTable, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "failed to open shapefile archive")
	}
	defer zr.Close()

	dir, err := os.MkdirTemp("", "shapefile-*")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to create extraction directory")
	}
	defer os.RemoveAll(dir)

	var shpPath string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// Flatten entries so every component lands next to the .shp.
		name := filepath.Base(f.Name)
		if strings.HasPrefix(name, ".") || strings.HasPrefix(f.Name, "__MACOSX") {
			continue
		}
		dst := filepath.Join(dir, name)
		if err := extract(f, dst); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "failed to extract "+f.Name)
		}
		if shpPath == "" && strings.EqualFold(filepath.Ext(name), ".shp") {
			shpPath = dst
		}
	}
	if shpPath == "" {
		return nil, apperrors.DataDefect("no .shp file found in archive")
	}
	return ReadShapefile(shpPath)
}

// ReadGeometryFile dispatches on extension: .zip, .shp, .geojson or .json.
func ReadGeometryFile(path string) (*model.GeoTable, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return ReadShapefileZip(path)
	case ".shp":
		return ReadShapefile(path)
	case ".geojson", ".json":
		return ReadGeoJSONFile(path)
	default:
		return nil, apperrors.InvalidInput("unsupported geometry file %q", filepath.Base(path))
	}
}

func extract(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func fieldName(f shp.Field) string {
	return strings.TrimRight(f.String(), "\x00 ")
}

func attributeValue(f shp.Field, raw string) interface{} {
	raw = strings.TrimSpace(strings.Trim(raw, "\x00"))
	if raw == "" {
		return nil
	}
	switch f.Fieldtype {
	case 'N', 'F':
		return utils.ParseValue(raw)
	default:
		return raw
	}
}

// ------------------- Writing -------------------

// wgs84 is written as the .prj sidecar.
const wgs84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`

// WriteShapefileZip writes table as a polygon shapefile named base and packs
// .shp/.shx/.dbf/.prj into a zip at zipPath. Rows without geometry are
// skipped. It returns the dbf field names in column order.
func WriteShapefileZip(table *model.GeoTable, base, zipPath string) ([]string, error) {
	dir, err := os.MkdirTemp("", "shapefile-out-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	names, err := WriteShapefile(table, filepath.Join(dir, base+".shp"))
	if err != nil {
		return nil, err
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return nil, err
	}
	zw := zip.NewWriter(out)
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		if err := addToZip(zw, filepath.Join(dir, base+ext), base+ext); err != nil {
			zw.Close()
			out.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return nil, err
	}
	return names, out.Close()
}

// WriteShapefile writes table to shpPath plus its .shx, .dbf and .prj.
func WriteShapefile(table *model.GeoTable, shpPath string) ([]string, error) {
	if table == nil || table.Len() == 0 {
		return nil, apperrors.Precondition("nothing to write: geometry table is empty")
	}

	names := dbfFieldNames(table.Columns)
	fields := make([]shp.Field, len(table.Columns))
	kinds := make([]columnKind, len(table.Columns))
	for i, col := range table.Columns {
		kinds[i] = kindOf(table, col)
		switch kinds[i] {
		case kindInt:
			fields[i] = shp.NumberField(names[i], 18)
		case kindFloat:
			fields[i] = shp.FloatField(names[i], 24, 8)
		default:
			fields[i] = shp.StringField(names[i], 254)
		}
	}

	w, err := shp.Create(shpPath, shp.POLYGON)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to create shapefile")
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to set shapefile fields")
	}

	for _, f := range table.Features {
		if f.Geometry == nil {
			continue
		}
		shape, err := geometryToShape(f.Geometry)
		if err != nil {
			w.Close()
			return nil, apperrors.Wrap(err, apperrors.CodeDataDefect, "failed to convert geometry")
		}
		row := int(w.Write(shape))
		for i, col := range table.Columns {
			v, ok := attributeFor(kinds[i], f.Properties[col])
			if !ok {
				continue
			}
			if err := w.WriteAttribute(row, i, v); err != nil {
				w.Close()
				return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to write attribute "+col)
			}
		}
	}
	w.Close()

	prj := strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".prj"
	if err := os.WriteFile(prj, []byte(wgs84), 0o644); err != nil {
		return nil, err
	}
	return names, nil
}

func addToZip(zw *zip.Writer, src, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

type columnKind int

const (
	kindString columnKind = iota
	kindInt
	kindFloat
)

func kindOf(table *model.GeoTable, col string) columnKind {
	kind, seen := kindInt, false
	for _, f := range table.Features {
		switch v := f.Properties[col].(type) {
		case nil:
		case int, int64, int32:
			seen = true
		case float64:
			seen = true
			if math.IsNaN(v) {
				continue
			}
			if v != math.Trunc(v) {
				kind = kindFloat
			}
		default:
			return kindString
		}
	}
	if !seen {
		return kindString
	}
	// Float-valued columns stay float even when every value is integral.
	for _, f := range table.Features {
		if _, ok := f.Properties[col].(float64); ok {
			return kindFloat
		}
	}
	return kind
}

func attributeFor(kind columnKind, v interface{}) (interface{}, bool) {
	if v == nil {
		return nil, false
	}
	switch kind {
	case kindInt:
		f, ok := utils.CoerceFloat(v)
		if !ok {
			return nil, false
		}
		return int(f), true
	case kindFloat:
		f, ok := utils.CoerceFloat(v)
		if !ok {
			return nil, false
		}
		return f, true
	default:
		return fmt.Sprint(v), true
	}
}

// dbfFieldNames truncates names to the 10-byte dBASE limit, suffixing
// collisions with a counter.
func dbfFieldNames(columns []string) []string {
	used := make(map[string]bool, len(columns))
	out := make([]string, len(columns))
	for i, col := range columns {
		name := truncate(col, 10)
		for n := 1; used[strings.ToUpper(name)]; n++ {
			suffix := "_" + strconv.Itoa(n)
			name = truncate(col, 10-len(suffix)) + suffix
		}
		used[strings.ToUpper(name)] = true
		out[i] = name
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
