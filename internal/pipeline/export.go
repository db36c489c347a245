package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"geo-cluster-pipeline/internal/geo"
	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/logging"
)

// Exporter writes run artifacts into one output directory.
type Exporter struct {
	dir    string
	logger logging.Logger
}

func NewExporter(dir string, logger logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Exporter{dir: dir, logger: logger.Named("export")}
}

// Dir returns the output directory.
func (e *Exporter) Dir() string { return e.dir }

// JSON writes v as indented JSON.
func (e *Exporter) JSON(name string, v interface{}, records int) model.ExportResult {
	return e.write("json", name, records, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// ClusteringCSV writes the per-observation clustering table.
func (e *Exporter) ClusteringCSV(name string, partition *model.PartitionResult) model.ExportResult {
	if partition == nil {
		return e.failed("csv", name, apperrors.Precondition("clustering has not run"))
	}
	return e.write("csv", name, len(partition.ClusteringTable), func(w io.Writer) error {
		return WriteClusteringTableCSV(w, partition)
	})
}

// HTML writes the output of render as an HTML file.
func (e *Exporter) HTML(name string, render func(io.Writer) error) model.ExportResult {
	return e.write("html", name, 0, render)
}

// GeoJSON writes the merged geometry table as a FeatureCollection.
func (e *Exporter) GeoJSON(name string, merged *model.GeoTable) model.ExportResult {
	return e.write("geojson", name, merged.Len(), func(w io.Writer) error {
		return geo.WriteGeoJSON(w, merged)
	})
}

// ShapefileZip writes the merged geometry table as a zipped shapefile.
func (e *Exporter) ShapefileZip(name string, merged *model.GeoTable) model.ExportResult {
	path := filepath.Join(e.dir, name)
	base := name[:len(name)-len(filepath.Ext(name))]
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return e.failed("shapefile", name, err)
	}
	if _, err := geo.WriteShapefileZip(merged, base, path); err != nil {
		return e.failed("shapefile", name, err)
	}
	e.logger.Info("exported", logging.String("type", "shapefile"), logging.String("path", path))
	return model.ExportResult{Type: "shapefile", Path: path, RecordCount: merged.Len(), Success: true, Timestamp: time.Now()}
}

func (e *Exporter) write(kind, name string, records int, fn func(io.Writer) error) model.ExportResult {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return e.failed(kind, name, fmt.Errorf("failed to create directory: %w", err))
	}
	path := filepath.Join(e.dir, name)
	file, err := os.Create(path)
	if err != nil {
		return e.failed(kind, name, fmt.Errorf("failed to create file: %w", err))
	}
	if err := fn(file); err != nil {
		file.Close()
		return e.failed(kind, name, err)
	}
	if err := file.Close(); err != nil {
		return e.failed(kind, name, err)
	}

	e.logger.Info("exported",
		logging.String("type", kind),
		logging.String("path", path),
		logging.Int("records", records),
	)
	return model.ExportResult{Type: kind, Path: path, RecordCount: records, Success: true, Timestamp: time.Now()}
}

func (e *Exporter) failed(kind, name string, err error) model.ExportResult {
	e.logger.Error("export failed", logging.String("type", kind), logging.String("file", name), logging.Err(err))
	return model.ExportResult{
		Type:      kind,
		Path:      filepath.Join(e.dir, name),
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}
}

// WriteClusteringTableCSV writes entity, original values, normalized values,
// cluster, distance to centroid and centroid coordinates per observation.
func WriteClusteringTableCSV(w io.Writer, partition *model.PartitionResult) error {
	if partition == nil {
		return apperrors.Precondition("clustering has not run")
	}
	cw := csv.NewWriter(w)

	header := make([]string, 0, 3+3*len(partition.Features))
	if partition.EntityColumn != "" {
		header = append(header, partition.EntityColumn)
	}
	header = append(header, partition.Features...)
	for _, f := range partition.Features {
		header = append(header, f+"_normalized")
	}
	header = append(header, model.ClusterColumn, "Distance")
	for _, f := range partition.Features {
		header = append(header, model.CentroidColumn(f))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range partition.ClusteringTable {
		rec := make([]string, 0, len(header))
		if partition.EntityColumn != "" {
			rec = append(rec, row.Entity)
		}
		for _, f := range partition.Features {
			rec = append(rec, formatFloat(row.Values[f]))
		}
		for _, f := range partition.Features {
			rec = append(rec, formatFloat(row.Normalized[f]))
		}
		rec = append(rec, strconv.Itoa(row.Cluster), formatFloat(row.Distance))
		for _, c := range row.Centroid {
			rec = append(rec, formatFloat(c))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
