package pipeline

import (
	"fmt"
	"math"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/utils"
)

// CoercionResult is the outcome of the numeric pre-validation step.
type CoercionResult struct {
	// Table is a clone of the input with every feature cell either float64
	// or NaN.
	Table  *model.Table
	Issues []model.CoercionIssue
}

// CoerceNumeric converts every feature cell of t to float64. Numeric-looking
// strings are parsed; empty cells become NaN silently; any other failure
// becomes NaN plus a CoercionIssue. A feature with no numeric cell at all is
// a data defect. The input table is never modified.
func CoerceNumeric(t *model.Table, features []string) (*CoercionResult, error) {
	if t == nil || t.Len() == 0 {
		return nil, apperrors.DataDefect("dataset is empty")
	}
	if len(features) == 0 {
		return nil, apperrors.DataDefect("no numeric columns selected")
	}
	for _, f := range features {
		if !t.HasColumn(f) {
			return nil, apperrors.DataDefect("column %q not found", f)
		}
	}

	out := t.Clone()
	var issues []model.CoercionIssue
	for _, f := range features {
		good := 0
		for i, rec := range out.Records {
			raw := rec[f]
			v, ok := utils.CoerceFloat(raw)
			if ok {
				rec[f] = v
				good++
				continue
			}
			rec[f] = math.NaN()
			if !utils.IsMissing(raw) {
				issues = append(issues, model.CoercionIssue{
					Row:    i,
					Column: f,
					Value:  fmt.Sprint(raw),
					Reason: "not a number",
				})
			}
		}
		if good == 0 {
			return nil, apperrors.DataDefect("column %q is entirely non-numeric", f)
		}
	}

	return &CoercionResult{Table: out, Issues: issues}, nil
}

// DropIncomplete removes rows missing any of columns. Removing every row is
// a data defect.
func DropIncomplete(t *model.Table, columns []string) (*model.Table, model.MissingInfo, error) {
	counts := ReportMissing(t, columns)
	info := model.MissingInfo{NewRowCount: t.Len()}
	if len(counts) == 0 {
		return t, info, nil
	}

	info.HasMissing = true
	info.MissingByColumn = counts

	kept := &model.Table{Columns: t.Columns}
	for _, rec := range t.Records {
		complete := true
		for _, c := range columns {
			if utils.IsMissing(rec[c]) {
				complete = false
				break
			}
		}
		if complete {
			kept.Records = append(kept.Records, rec)
		}
	}

	info.RowsDropped = t.Len() - kept.Len()
	info.NewRowCount = kept.Len()
	if kept.Len() == 0 {
		return nil, info, apperrors.DataDefect("every row contains missing values")
	}
	return kept, info, nil
}
