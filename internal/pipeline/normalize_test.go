package pipeline

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "geo-cluster-pipeline/pkg/errors"
	"geo-cluster-pipeline/pkg/utils"
)

func TestNormalize_ScalesIntoUnitRange(t *testing.T) {
	in := table([]string{"name", "a", "b"},
		[]interface{}{"x", 10, 5.0},
		[]interface{}{"y", 20, 5.0},
		[]interface{}{"z", 15, 5.0},
	)

	res, err := NewNormalizer(nil).Normalize(in, []string{"a", "b"}, "name")
	require.NoError(t, err)

	assert.Equal(t, [][]float64{{0, 0}, {1, 0}, {0.5, 0}}, res.Scaled)
	assert.True(t, res.Params["b"].Constant())
	for _, row := range res.Scaled {
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
	// Input table untouched.
	assert.Equal(t, 10, in.Records[0]["a"])
}

func TestNormalize_InverseRestoresOriginal(t *testing.T) {
	in := table([]string{"a"}, []interface{}{3.5}, []interface{}{-1.0}, []interface{}{7.25})
	res, err := NewNormalizer(nil).Normalize(in, []string{"a"}, "")
	require.NoError(t, err)

	for i, row := range res.Scaled {
		orig, ok := res.Inverse("a", row[0])
		require.True(t, ok)
		assert.InDelta(t, res.Original.Records[i]["a"].(float64), orig, 1e-12)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := table([]string{"a", "b"}, []interface{}{1.0, 9.0}, []interface{}{4.0, 3.0}, []interface{}{2.0, 6.0})
	first, err := NewNormalizer(nil).Normalize(in, []string{"a", "b"}, "")
	require.NoError(t, err)

	second, err := NewNormalizer(nil).Normalize(first.Normalized, []string{"a", "b"}, "")
	require.NoError(t, err)
	for i := range first.Scaled {
		assert.InDeltaSlice(t, first.Scaled[i], second.Scaled[i], 1e-12)
	}
}

func TestNormalize_CoercionIssuesAndDroppedRows(t *testing.T) {
	in := table([]string{"name", "a"},
		[]interface{}{"x", "1,5"},
		[]interface{}{"y", "2.5"},
		[]interface{}{"z", nil},
		[]interface{}{"w", 4.0},
	)

	res, err := NewNormalizer(nil).Normalize(in, []string{"a"}, "name")
	require.NoError(t, err)

	require.Len(t, res.Issues, 1)
	assert.Equal(t, "a", res.Issues[0].Column)
	assert.Equal(t, "1,5", res.Issues[0].Value)
	assert.True(t, res.Missing.HasMissing)
	assert.Equal(t, 2, res.Missing.RowsDropped)
	assert.Equal(t, 2, res.Original.Len())
	assert.Equal(t, 2.5, res.Original.Records[0]["a"])
}

func TestNormalize_NonFiniteCellsAreMissing(t *testing.T) {
	csv := "Name,A,B\nX,1,2\nY,inf,3\nZ,5,9\nW,7,1\nV,-Infinity,4\n"
	tbl, meta, err := IngestCSV(context.Background(), strings.NewReader(csv), "data.csv", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, meta.NumericColumns)

	res, err := NewNormalizer(nil).Normalize(tbl, meta.NumericColumns, meta.EntityColumn)
	require.NoError(t, err)

	require.Len(t, res.Issues, 2)
	assert.Equal(t, "inf", res.Issues[0].Value)
	assert.Equal(t, "-Infinity", res.Issues[1].Value)
	assert.Equal(t, 2, res.Missing.RowsDropped)
	require.Len(t, res.Scaled, 3)
	for _, row := range res.Scaled {
		for _, v := range row {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
	assert.InDeltaSlice(t, []float64{0, 0.125}, res.Scaled[0], 1e-12)

	// Infinities already held as floats are treated the same way.
	in := table([]string{"a"}, []interface{}{1.0}, []interface{}{math.Inf(1)}, []interface{}{3.0})
	res, err = NewNormalizer(nil).Normalize(in, []string{"a"}, "")
	require.NoError(t, err)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, [][]float64{{0}, {1}}, res.Scaled)

	report, err := NewEvaluator(DefaultKMeansConfig(), false, nil).
		Evaluate(context.Background(), res.Scaled, []string{"a"}, 2, 2)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(report.Records[0].SSB))
	assert.False(t, math.IsInf(report.Records[0].SSW, 0))
}

func TestNormalize_DataDefects(t *testing.T) {
	tests := []struct {
		name     string
		in       []interface{}
		features []string
		entity   string
	}{
		{"missing column", []interface{}{1.0}, []string{"nope"}, ""},
		{"non-numeric column", []interface{}{"abc"}, []string{"a"}, ""},
		{"missing entity column", []interface{}{1.0}, []string{"a"}, "name"},
		{"no features", []interface{}{1.0}, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := table([]string{"a"}, tt.in)
			_, err := NewNormalizer(nil).Normalize(in, tt.features, tt.entity)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeDataDefect), "got %v", err)
		})
	}

	_, err := NewNormalizer(nil).Normalize(table([]string{"a"}, []interface{}{nil}), []string{"a"}, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDataDefect), "all rows missing")
}

func TestIngestCSV_ClassifiesColumns(t *testing.T) {
	csv := "\ufeff\"Name\",Population, Area ,Note\n" +
		"A,100,1.5,x\n" +
		"B,200,,y\n" +
		"C,n/a,2.5,z\n" +
		"D,400,3.5,\n"

	tbl, meta, err := IngestCSV(context.Background(), strings.NewReader(csv), "data.csv", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Population", "Area", "Note"}, meta.Columns)
	assert.Equal(t, []string{"Population", "Area"}, meta.NumericColumns)
	assert.Equal(t, []string{"Name", "Note"}, meta.NonNumericColumns)
	assert.Equal(t, "Name", meta.EntityColumn)
	assert.Equal(t, 4, tbl.Len())
	assert.Nil(t, tbl.Records[1]["Area"])
	assert.Equal(t, "n/a", tbl.Records[2]["Population"])
	assert.Equal(t, 1, ReportMissing(tbl, []string{"Area"})["Area"])
}

func TestIngestCSV_Empty(t *testing.T) {
	_, _, err := IngestCSV(context.Background(), strings.NewReader("a,b\n"), "empty.csv", nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDataDefect))

	_, _, err = IngestCSV(context.Background(), strings.NewReader(""), "none.csv", nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDataDefect))
}

func TestDetectEntityColumn(t *testing.T) {
	assert.Equal(t, "Region", DetectEntityColumn([]string{"Name", "Region"}, "Region"))
	assert.Equal(t, "Name", DetectEntityColumn([]string{"Name", "Region"}, "Missing"))
	assert.Equal(t, "", DetectEntityColumn(nil, ""))
}

func TestCoerceNumeric_NaNForMissing(t *testing.T) {
	res, err := CoerceNumeric(table([]string{"a"}, []interface{}{""}, []interface{}{"2"}), []string{"a"})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Table.Records[0]["a"].(float64)))
	assert.Equal(t, 2.0, res.Table.Records[1]["a"])
	assert.Empty(t, res.Issues)
	assert.True(t, utils.IsMissing(res.Table.Records[0]["a"]))
}
