package model

// ValidityRecord holds one candidate k of the evaluation sweep.
type ValidityRecord struct {
	K   int     `json:"k"`
	SSW float64 `json:"ssw"`
	SSB float64 `json:"ssb"`
	DBI float64 `json:"dbi"`
	// Degenerate marks fits with fewer than two populated clusters; DBI is
	// undefined there and reported as 0.
	Degenerate bool        `json:"degenerate,omitempty"`
	Labels     []int       `json:"labels"`
	Centroids  [][]float64 `json:"centroids"`
}

// EvaluationRow is the display projection of a ValidityRecord.
type EvaluationRow struct {
	K   int     `json:"k"`
	SSW float64 `json:"ssw"`
	SSB float64 `json:"ssb"`
	DBI float64 `json:"dbi"`

	// Excluded marks rows that did not compete for best k.
	Excluded bool `json:"excluded_from_selection,omitempty"`
}

// EvaluationReport is the full k sweep plus the selected k.
type EvaluationReport struct {
	Records  []ValidityRecord `json:"records"`
	BestK    int              `json:"best_k"`
	BestDBI  float64          `json:"best_dbi"`
	KMin     int              `json:"k_min"`
	KMax     int              `json:"k_max"`
	Features []string         `json:"features"`

	// ExcludedK lists the k values whose DBI was not considered when picking
	// BestK because the fit was degenerate.
	ExcludedK []int `json:"excluded_k"`
}

// Table returns the {k, ssw, ssb, dbi} rows in k order.
func (r *EvaluationReport) Table() []EvaluationRow {
	excluded := make(map[int]bool, len(r.ExcludedK))
	for _, k := range r.ExcludedK {
		excluded[k] = true
	}
	rows := make([]EvaluationRow, len(r.Records))
	for i, rec := range r.Records {
		rows[i] = EvaluationRow{K: rec.K, SSW: rec.SSW, SSB: rec.SSB, DBI: rec.DBI, Excluded: excluded[rec.K]}
	}
	return rows
}

// Record returns the record for k.
func (r *EvaluationReport) Record(k int) (ValidityRecord, bool) {
	for _, rec := range r.Records {
		if rec.K == k {
			return rec, true
		}
	}
	return ValidityRecord{}, false
}

// ClusteringTableRow is one observation of the detailed clustering table.
type ClusteringTableRow struct {
	Entity     string             `json:"entity,omitempty"`
	Values     map[string]float64 `json:"values"`
	Normalized map[string]float64 `json:"normalized"`
	Cluster    int                `json:"cluster"`
	Distance   float64            `json:"distance"`
	// Centroid is the assigned centroid rounded to 4 decimals.
	Centroid []float64 `json:"centroid"`
}

// PartitionResult is the final fit at the chosen k.
type PartitionResult struct {
	K         int         `json:"k"`
	Features  []string    `json:"features"`
	Labels    []int       `json:"labels"`
	Centroids [][]float64 `json:"centroids"`
	// Summary holds per-cluster means of the original values.
	Summary map[int]map[string]float64 `json:"cluster_summary"`
	// Counts has an entry for every id in [0,K), zero included.
	Counts map[int]int `json:"cluster_counts"`
	// Original and Normalized carry the Cluster column.
	Original     *Table `json:"original"`
	Normalized   *Table `json:"normalized"`
	EntityColumn string `json:"entity_column,omitempty"`
	// MergeTable is nil when no entity column was available.
	MergeTable      *Table               `json:"merge_table,omitempty"`
	ClusteringTable []ClusteringTableRow `json:"clustering_table"`
	Warnings        []string             `json:"warnings,omitempty"`
}

// HasMergeTable reports whether a merge table was built.
func (p *PartitionResult) HasMergeTable() bool {
	return p != nil && p.MergeTable != nil
}

// FeatureFlag marks a feature as notably above or below the global mean.
type FeatureFlag string

const (
	FlagHigh FeatureFlag = "high"
	FlagLow  FeatureFlag = "low"
)

// ClusterInterpretation characterizes one cluster.
type ClusterInterpretation struct {
	Cluster int                    `json:"cluster"`
	Count   int                    `json:"count"`
	Means   map[string]float64     `json:"means"`
	Flags   map[string]FeatureFlag `json:"flagged_features"`
	// High and Low list flagged features in feature order.
	High []string `json:"high"`
	Low  []string `json:"low"`
}

// Unremarkable reports whether no feature was flagged.
func (c ClusterInterpretation) Unremarkable() bool { return len(c.Flags) == 0 }
