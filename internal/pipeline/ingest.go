package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/logging"
	"geo-cluster-pipeline/pkg/utils"
)

// ------------------- CSV Ingestion -------------------

// IngestCSVFile opens path and ingests it with IngestCSV.
func IngestCSVFile(ctx context.Context, path string, logger logging.Logger) (*model.Table, *model.DatasetMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "failed to open CSV file")
	}
	defer file.Close()

	return IngestCSV(ctx, file, filepath.Base(path), logger)
}

// IngestCSV reads a headed CSV stream into a Table. Headers are trimmed and
// stripped of quotes; cells are parsed with utils.ParseValue. Column
// classification and entity column detection are reported in the metadata.
func IngestCSV(ctx context.Context, r io.Reader, filename string, logger logging.Logger) (*model.Table, *model.DatasetMetadata, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	headers, err := csvReader.Read()
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeDataDefect, "failed to read CSV header")
	}

	columns := make([]string, 0, len(headers))
	seen := make(map[string]int, len(headers))
	for _, h := range headers {
		// Clean header names: trim whitespace, BOM and ALL quotes
		clean := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		clean = strings.ReplaceAll(clean, `"`, "")
		if clean == "" {
			clean = fmt.Sprintf("column_%d", len(columns)+1)
		}
		if n, dup := seen[clean]; dup {
			seen[clean] = n + 1
			clean = fmt.Sprintf("%s.%d", clean, n)
		} else {
			seen[clean] = 1
		}
		columns = append(columns, clean)
	}

	table := &model.Table{Columns: columns}
	line := 1
	for {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.CodeDataDefect, fmt.Sprintf("CSV read error at line %d", line))
		}

		rec := make(model.GenericRecord, len(columns))
		for i, col := range columns {
			if i < len(record) {
				rec[col] = utils.ParseValue(record[i])
			} else {
				rec[col] = nil
			}
		}
		table.Records = append(table.Records, rec)
	}

	if table.Len() == 0 {
		return nil, nil, apperrors.DataDefect("CSV %q has no data rows", filename)
	}

	numeric, nonNumeric := ClassifyColumns(table)
	meta := &model.DatasetMetadata{
		Filename:          filename,
		Columns:           append([]string(nil), columns...),
		NumericColumns:    numeric,
		NonNumericColumns: nonNumeric,
		RowCount:          table.Len(),
		MemoryBytes:       approxMemory(table),
		EntityColumn:      DetectEntityColumn(nonNumeric, ""),
	}

	logger.Info("CSV ingested",
		logging.String("file", filename),
		logging.Int("rows", meta.RowCount),
		logging.Int("numeric_columns", len(numeric)),
		logging.String("entity_column", meta.EntityColumn),
	)
	return table, meta, nil
}

// ClassifyColumns splits columns into numeric and non-numeric. A column is
// numeric when more than half of its non-empty cells coerce to a number;
// the remaining cells surface later as coercion issues.
func ClassifyColumns(t *model.Table) (numeric, nonNumeric []string) {
	for _, col := range t.Columns {
		var present, ok int
		for _, rec := range t.Records {
			v := rec[col]
			if utils.IsMissing(v) {
				continue
			}
			present++
			if _, good := utils.CoerceFloat(v); good {
				ok++
			}
		}
		if present > 0 && ok*2 > present {
			numeric = append(numeric, col)
		} else {
			nonNumeric = append(nonNumeric, col)
		}
	}
	return numeric, nonNumeric
}

// DetectEntityColumn returns preferred when it is a non-numeric column, and
// otherwise the first non-numeric column. Empty means none.
func DetectEntityColumn(nonNumeric []string, preferred string) string {
	if preferred != "" {
		for _, c := range nonNumeric {
			if c == preferred {
				return c
			}
		}
	}
	if len(nonNumeric) > 0 {
		return nonNumeric[0]
	}
	return ""
}

// ReportMissing counts missing cells per column without modifying t.
func ReportMissing(t *model.Table, columns []string) map[string]int {
	counts := make(map[string]int)
	for _, col := range columns {
		for _, rec := range t.Records {
			if utils.IsMissing(rec[col]) {
				counts[col]++
			}
		}
	}
	return counts
}

func approxMemory(t *model.Table) int64 {
	var total int64
	for _, rec := range t.Records {
		for k, v := range rec {
			total += int64(len(k)) + int64(unsafe.Sizeof(v))
			if s, ok := v.(string); ok {
				total += int64(len(s))
			}
		}
	}
	return total
}
