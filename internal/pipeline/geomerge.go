package pipeline

import (
	"fmt"
	"strings"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/logging"
)

// ------------------- Name standardization -------------------

// NameStandardizer canonicalizes entity names before the geo join. An alias
// replaces a whole name, never a substring: with KOTA BAUBAU -> KOTA BAU BAU,
// "KOTA BAUBAU X" is left unchanged.
type NameStandardizer struct {
	aliases map[string]string
}

// NewNameStandardizer builds a standardizer from an alias table. Keys and
// values are upper-cased so lookups run on already upper-cased names.
func NewNameStandardizer(aliases map[string]string) *NameStandardizer {
	norm := make(map[string]string, len(aliases))
	for k, v := range aliases {
		norm[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}
	return &NameStandardizer{aliases: norm}
}

// Standardize trims and upper-cases name, then applies an alias whose key
// equals the whole result.
func (s *NameStandardizer) Standardize(name string) string {
	std := strings.ToUpper(strings.TrimSpace(name))
	if alias, ok := s.aliases[std]; ok {
		return alias
	}
	return std
}

// ------------------- Geo merge -------------------

// GeoMerger left-joins partition rows onto geometry rows by name.
type GeoMerger struct {
	nameKey string
	std     *NameStandardizer
	logger  logging.Logger
}

func NewGeoMerger(nameKeyColumn string, std *NameStandardizer, logger logging.Logger) *GeoMerger {
	if std == nil {
		std = NewNameStandardizer(nil)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GeoMerger{nameKey: nameKeyColumn, std: std, logger: logger.Named("geomerge")}
}

// Merge joins the partition's merge table onto geom.
func (m *GeoMerger) Merge(geom *model.GeoTable, partition *model.PartitionResult) (*model.MergeReport, error) {
	if partition == nil {
		return nil, apperrors.Precondition("merge requested before clustering")
	}
	if !partition.HasMergeTable() {
		return nil, apperrors.Precondition("partition has no merge table: an entity column is required")
	}
	return m.MergeTable(geom, partition.MergeTable, partition.EntityColumn, partition.Features)
}

// MergeTable joins table onto geom. Every geometry row is preserved; rows
// with no match carry a nil cluster. A partition name matching several
// geometry rows, or several partition rows sharing one name, multiply the
// output rows like a relational left join. Only partition names are
// standardized; the geometry name key is compared as stored, so geometry
// spellings outside the canonical form surface in MissingInPartition.
func (m *GeoMerger) MergeTable(geom *model.GeoTable, table *model.Table, entityColumn string, features []string) (*model.MergeReport, error) {
	if geom == nil {
		return nil, apperrors.Precondition("merge requested without geometry")
	}
	if !geom.HasColumn(m.nameKey) {
		return nil, apperrors.DataDefect("geometry source has no %q column", m.nameKey)
	}
	if table == nil || !table.HasColumn(model.ClusterColumn) {
		return nil, apperrors.Precondition("partition table has no %q column: run clustering first", model.ClusterColumn)
	}
	if !table.HasColumn(entityColumn) {
		return nil, apperrors.DataDefect("partition table has no entity column %q", entityColumn)
	}

	// Index standardized partition names, preserving row order.
	index := make(map[string][]int)
	var partitionNames []string
	for i, rec := range table.Records {
		name := m.std.Standardize(cellString(rec[entityColumn]))
		if _, seen := index[name]; !seen {
			partitionNames = append(partitionNames, name)
		} else {
			m.logger.Warn("duplicate entity name in partition data", logging.String("entity", name))
		}
		index[name] = append(index[name], i)
	}

	attach := []string{model.ClusterColumn}
	for _, f := range features {
		attach = append(attach, model.CentroidColumn(f))
	}
	entityCollides := geom.HasColumn(entityColumn)
	if !entityCollides {
		attach = append([]string{entityColumn}, attach...)
	}

	merged := &model.GeoTable{Columns: append([]string(nil), geom.Columns...)}
	for _, c := range attach {
		if !merged.HasColumn(c) {
			merged.Columns = append(merged.Columns, c)
		}
	}

	geomKeys := make(map[string]bool, geom.Len())
	var geomNames []string
	for _, f := range geom.Features {
		key := cellString(f.Properties[m.nameKey])
		if !geomKeys[key] {
			geomKeys[key] = true
			geomNames = append(geomNames, key)
		}

		matches := index[key]
		if len(matches) == 0 {
			props := f.Properties.Clone()
			for _, c := range attach {
				props[c] = nil
			}
			merged.Features = append(merged.Features, model.GeoFeature{Properties: props, Geometry: f.Geometry})
			continue
		}
		for _, ri := range matches {
			props := f.Properties.Clone()
			row := table.Records[ri]
			for _, c := range attach {
				if c == entityColumn {
					props[c] = m.std.Standardize(cellString(row[c]))
					continue
				}
				props[c] = row[c]
			}
			merged.Features = append(merged.Features, model.GeoFeature{Properties: props, Geometry: f.Geometry})
		}
	}

	report := &model.MergeReport{
		Merged:             merged,
		MissingInGeometry:  []string{},
		MissingInPartition: []string{},
		NameKeyColumn:      m.nameKey,
		EntityColumn:       entityColumn,
		Features:           append([]string(nil), features...),
	}
	for _, name := range partitionNames {
		if !geomKeys[name] {
			report.MissingInGeometry = append(report.MissingInGeometry, name)
		}
	}
	for _, name := range geomNames {
		if _, ok := index[name]; !ok {
			report.MissingInPartition = append(report.MissingInPartition, name)
		}
	}
	for _, f := range merged.Features {
		if _, ok := clusterID(f.Properties[model.ClusterColumn]); ok {
			report.TotalMatched++
		}
	}

	if len(report.MissingInGeometry) > 0 || len(report.MissingInPartition) > 0 {
		m.logger.Warn("unmatched entities",
			logging.Any("missing_in_geometry", report.MissingInGeometry),
			logging.Any("missing_in_partition_data", report.MissingInPartition),
		)
	}
	m.logger.Info("geo merge finished",
		logging.Int("geometry_rows", geom.Len()),
		logging.Int("merged_rows", merged.Len()),
		logging.Int("total_matched", report.TotalMatched),
	)
	return report, nil
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// clusterID extracts an integral cluster id. Nil, NaN and non-integral
// values report false.
func clusterID(v interface{}) (int, bool) {
	id, ok := groupID(v)
	if !ok || id < 0 {
		return 0, false
	}
	return id, true
}
