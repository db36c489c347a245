package model

import "time"

// GenericRecord is a schema-agnostic map for one table row
type GenericRecord map[string]interface{}

// Clone returns a shallow copy; cell values are scalars.
func (r GenericRecord) Clone() GenericRecord {
	out := make(GenericRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is a column-ordered set of records.
type Table struct {
	Columns []string        `json:"columns"`
	Records []GenericRecord `json:"records"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Clone deep-copies the table so the result never aliases the receiver.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Records: make([]GenericRecord, len(t.Records)),
	}
	for i, r := range t.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// WithColumn returns a clone with an extra column filled by value(i).
func (t *Table) WithColumn(name string, value func(i int) interface{}) *Table {
	out := t.Clone()
	if !out.HasColumn(name) {
		out.Columns = append(out.Columns, name)
	}
	for i, r := range out.Records {
		r[name] = value(i)
	}
	return out
}

// ClusterColumn is the column carrying the assigned cluster id.
const ClusterColumn = "Cluster"

// CentroidColumn names the per-feature centroid attribute, e.g. "Centroid_Population".
func CentroidColumn(feature string) string { return "Centroid_" + feature }

// RunStatus is the lifecycle status of one pipeline run.
type RunStatus string

const (
	StatusPending      RunStatus = "pending"
	StatusNormalizing  RunStatus = "normalizing"
	StatusEvaluating   RunStatus = "evaluating"
	StatusClustering   RunStatus = "clustering"
	StatusInterpreting RunStatus = "interpreting"
	StatusMerging      RunStatus = "merging"
	StatusRendering    RunStatus = "rendering"
	StatusCompleted    RunStatus = "completed"
	StatusFailed       RunStatus = "failed"
)

// Terminal reports whether no further transitions happen.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Geometry source formats.
const (
	GeometryShapefile = "shapefile"
	GeometryGeoJSON   = "geojson"
)

// RunSpec defines one analysis run
type RunSpec struct {
	DataFile       string `json:"data_file"`
	GeometryFile   string `json:"geometry_file,omitempty"`
	GeometryFormat string `json:"geometry_format,omitempty"` // shapefile, geojson
	EntityColumn   string `json:"entity_column,omitempty"`   // empty = auto-detect
	KMin           int    `json:"k_min"`
	KMax           int    `json:"k_max"`
	K              int    `json:"k,omitempty"` // 0 = use best_k
	OutputDir      string `json:"output_dir,omitempty"`
}

// Run is the registry view of a run.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	Spec      RunSpec   `json:"spec"`
	BestK     int       `json:"best_k,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
