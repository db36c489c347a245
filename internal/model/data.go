package model

import "time"

// DatasetMetadata describes an ingested table.
type DatasetMetadata struct {
	Filename          string   `json:"filename"`
	Columns           []string `json:"columns"`
	NumericColumns    []string `json:"numeric_columns"`
	NonNumericColumns []string `json:"non_numeric_columns"`
	RowCount          int      `json:"row_count"`
	MemoryBytes       int64    `json:"memory_bytes"`
	EntityColumn      string   `json:"entity_column,omitempty"`
}

// MissingInfo reports incomplete rows removed before analysis.
type MissingInfo struct {
	HasMissing      bool           `json:"has_missing"`
	MissingByColumn map[string]int `json:"missing_counts,omitempty"`
	RowsDropped     int            `json:"rows_dropped"`
	NewRowCount     int            `json:"new_row_count"`
}

// CoercionIssue records one cell that failed numeric conversion.
type CoercionIssue struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// NormParams are the min-max parameters of one column.
type NormParams struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Constant reports whether the column had zero range.
func (p NormParams) Constant() bool { return p.Max == p.Min }

// Apply maps x into [0,1]. Constant columns map to 0.
func (p NormParams) Apply(x float64) float64 {
	if p.Constant() {
		return 0
	}
	return (x - p.Min) / (p.Max - p.Min)
}

// Inverse maps a scaled value back to the original unit. Constant columns
// map back to Min.
func (p NormParams) Inverse(v float64) float64 {
	if p.Constant() {
		return p.Min
	}
	return v*(p.Max-p.Min) + p.Min
}

// NormalizationResult is the Normalizer's immutable output.
type NormalizationResult struct {
	// Original holds the cleaned rows with numeric cells coerced to float64.
	Original *Table `json:"original"`
	// Normalized mirrors Original with numeric cells rescaled.
	Normalized *Table `json:"normalized"`
	// Features lists the numeric columns in matrix column order.
	Features []string `json:"features"`
	// Scaled is the row-major matrix handed to the evaluator.
	Scaled       [][]float64           `json:"scaled"`
	Params       map[string]NormParams `json:"params"`
	Issues       []CoercionIssue       `json:"issues,omitempty"`
	Missing      MissingInfo           `json:"missing"`
	EntityColumn string                `json:"entity_column,omitempty"`
}

// Inverse maps a scaled value of column col back to its original unit.
func (r *NormalizationResult) Inverse(col string, v float64) (float64, bool) {
	p, ok := r.Params[col]
	if !ok {
		return 0, false
	}
	return p.Inverse(v), true
}

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string    `json:"type"` // "geojson", "shapefile", "csv", "json", "html"
	Path        string    `json:"path"`
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
