package pipeline

import (
	"math"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/logging"
)

// Normalizer coerces, cleans and min-max scales the numeric features of a table.
type Normalizer struct {
	logger logging.Logger
}

func NewNormalizer(logger logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Normalizer{logger: logger.Named("normalize")}
}

// Normalize runs coercion, drops rows missing a feature or the entity column,
// then rescales each feature to [0,1]. Constant columns become 0.
func (n *Normalizer) Normalize(t *model.Table, features []string, entityColumn string) (*model.NormalizationResult, error) {
	coerced, err := CoerceNumeric(t, features)
	if err != nil {
		return nil, err
	}
	if len(coerced.Issues) > 0 {
		n.logger.Warn("non-numeric values treated as missing",
			logging.Int("issues", len(coerced.Issues)),
			logging.String("first_column", coerced.Issues[0].Column),
			logging.String("first_value", coerced.Issues[0].Value),
		)
	}

	required := append([]string(nil), features...)
	if entityColumn != "" {
		if !t.HasColumn(entityColumn) {
			return nil, apperrors.DataDefect("entity column %q not found", entityColumn)
		}
		required = append(required, entityColumn)
	}

	clean, missing, err := DropIncomplete(coerced.Table, required)
	if err != nil {
		return nil, err
	}
	if missing.HasMissing {
		n.logger.Warn("rows with missing values dropped",
			logging.Int("rows_dropped", missing.RowsDropped),
			logging.Int("rows_left", missing.NewRowCount),
		)
	}

	params := make(map[string]model.NormParams, len(features))
	for _, f := range features {
		p := model.NormParams{Min: math.Inf(1), Max: math.Inf(-1)}
		for _, rec := range clean.Records {
			v := rec[f].(float64)
			p.Min = math.Min(p.Min, v)
			p.Max = math.Max(p.Max, v)
		}
		params[f] = p
	}

	normalized := clean.Clone()
	scaled := make([][]float64, normalized.Len())
	for i, rec := range normalized.Records {
		row := make([]float64, len(features))
		for j, f := range features {
			v := params[f].Apply(rec[f].(float64))
			rec[f] = v
			row[j] = v
		}
		scaled[i] = row
	}

	n.logger.Info("normalized",
		logging.Int("rows", clean.Len()),
		logging.Int("features", len(features)),
	)
	return &model.NormalizationResult{
		Original:     clean,
		Normalized:   normalized,
		Features:     append([]string(nil), features...),
		Scaled:       scaled,
		Params:       params,
		Issues:       coerced.Issues,
		Missing:      missing,
		EntityColumn: entityColumn,
	}, nil
}
