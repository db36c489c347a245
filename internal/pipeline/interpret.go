package pipeline

import (
	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/logging"
)

// DefaultFlagRatio flags cluster means more than 10% away from the global mean.
const DefaultFlagRatio = 0.10

// Interpreter characterizes clusters against the global feature means.
type Interpreter struct {
	ratio  float64
	logger logging.Logger
}

func NewInterpreter(ratio float64, logger logging.Logger) *Interpreter {
	if ratio <= 0 {
		ratio = DefaultFlagRatio
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Interpreter{ratio: ratio, logger: logger.Named("interpret")}
}

// Interpret computes, for each distinct cluster id in labels, the member
// count, per-feature means over the original table and the high/low flags.
// A feature is "high" when mean > global*(1+ratio) and "low" when
// mean < global*(1-ratio). Results are ordered by cluster id.
func (in *Interpreter) Interpret(original *model.Table, features []string, labels []int) ([]model.ClusterInterpretation, error) {
	if original == nil || len(labels) == 0 {
		return nil, apperrors.Precondition("interpretation requested before clustering")
	}
	if original.Len() != len(labels) {
		return nil, apperrors.InvalidInput("table has %d rows but %d labels", original.Len(), len(labels))
	}

	labeled := original.WithColumn(model.ClusterColumn, func(i int) interface{} { return labels[i] })
	global := ColumnMeans(labeled.Records, features)

	groups := AggregateByGroup(labeled.Records, model.ClusterColumn, features)
	out := make([]model.ClusterInterpretation, 0, len(groups))
	for _, g := range groups {
		ci := model.ClusterInterpretation{
			Cluster: g.Group,
			Count:   g.Count,
			Means:   g.Means,
			Flags:   make(map[string]model.FeatureFlag),
			High:    []string{},
			Low:     []string{},
		}
		for _, f := range features {
			flag, ok := in.flag(g.Means[f], global[f])
			if !ok {
				continue
			}
			ci.Flags[f] = flag
			if flag == model.FlagHigh {
				ci.High = append(ci.High, f)
			} else {
				ci.Low = append(ci.Low, f)
			}
		}
		out = append(out, ci)
	}

	in.logger.Info("clusters interpreted", logging.Int("clusters", len(out)))
	return out, nil
}

// flag applies the high check before the low check, so one feature never
// carries both flags for the same cluster.
func (in *Interpreter) flag(mean, global float64) (model.FeatureFlag, bool) {
	if mean > global*(1+in.ratio) {
		return model.FlagHigh, true
	}
	if mean < global*(1-in.ratio) {
		return model.FlagLow, true
	}
	return "", false
}
