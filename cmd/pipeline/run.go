package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"geo-cluster-pipeline/internal/model"
	"geo-cluster-pipeline/internal/pipeline"
	"geo-cluster-pipeline/internal/session"
	"geo-cluster-pipeline/internal/store"
	"geo-cluster-pipeline/pkg/logging"
	"geo-cluster-pipeline/pkg/utils"
)

type runFlags struct {
	data         string
	shapefile    string
	geojson      string
	kMin         int
	kMax         int
	k            int
	entityColumn string
	out          string
}

func (f *runFlags) register(cmd *cobra.Command, withGeometry bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.data, "data", "", "CSV with one row per entity (required)")
	fs.IntVar(&f.kMin, "k-min", 0, "smallest k to evaluate (default from config)")
	fs.IntVar(&f.kMax, "k-max", 0, "largest k to evaluate (default from config)")
	fs.StringVar(&f.entityColumn, "entity-column", "", "entity name column (default: auto-detect)")
	_ = cmd.MarkFlagRequired("data")
	if !withGeometry {
		return
	}
	fs.StringVar(&f.shapefile, "shapefile", "", "zipped shapefile or .shp (default from config)")
	fs.StringVar(&f.geojson, "geojson", "", "GeoJSON FeatureCollection")
	fs.IntVar(&f.k, "k", 0, "final k (default: best k)")
	fs.StringVar(&f.out, "out", "", "artifact directory (default: <output.dir>/<run id>)")
	cmd.MarkFlagsMutuallyExclusive("shapefile", "geojson")
}

func (f *runFlags) spec() (model.RunSpec, error) {
	spec := model.RunSpec{
		DataFile:     f.data,
		EntityColumn: f.entityColumn,
		KMin:         f.kMin,
		KMax:         f.kMax,
		K:            f.k,
		OutputDir:    f.out,
	}
	switch {
	case f.shapefile != "":
		spec.GeometryFile, spec.GeometryFormat = f.shapefile, model.GeometryShapefile
	case f.geojson != "":
		spec.GeometryFile, spec.GeometryFormat = f.geojson, model.GeometryGeoJSON
	}
	if f.kMin != 0 && f.kMin < 2 {
		return spec, fmt.Errorf("--k-min must be >= 2, got %d", f.kMin)
	}
	if f.kMin != 0 && f.kMax != 0 && f.kMax < f.kMin {
		return spec, fmt.Errorf("--k-max (%d) must be >= --k-min (%d)", f.kMax, f.kMin)
	}
	if f.k != 0 && f.k < 2 {
		return spec, fmt.Errorf("--k must be >= 2, got %d", f.k)
	}
	return spec, nil
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline on a CSV and write every artifact",
		Example: `  pipeline run --data data/sultra.csv --shapefile data/shapefiles/sultra.zip
  pipeline run --data data/sultra.csv --geojson regions.geojson --k 3 --out out/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			spec, err := flags.spec()
			if err != nil {
				return err
			}

			st, err := store.Open(cli.Config.Store.DSN)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), utils.ParseDuration(cli.Config.JobTimeout))
			defer cancel()

			runID := uuid.New().String()
			if _, err := st.CreateRun(ctx, runID, spec); err != nil {
				return err
			}
			p := pipeline.New(cli.Config, pipeline.Deps{Recorder: st, Logger: cli.Logger})
			sess, err := p.Run(ctx, runID, spec)
			if err != nil {
				return err
			}
			cli.Logger.Info("run finished", logging.String("run_id", runID))

			if cli.OutputFormat == "json" {
				return printJSON(cmd.OutOrStdout(), runSummary(runID, sess))
			}
			return printRun(cmd.OutOrStdout(), runID, sess)
		},
	}
	flags.register(cmd, true)
	return cmd
}

func runSummary(runID string, sess *session.Session) map[string]interface{} {
	out := map[string]interface{}{"run_id": runID}
	if report, err := sess.Evaluation(); err == nil {
		out["evaluation"] = report.Table()
		out["best_k"] = report.BestK
	}
	if p, err := sess.Partition(); err == nil {
		out["k"] = p.K
		out["cluster_counts"] = p.Counts
		out["cluster_summary"] = p.Summary
	}
	if in, err := sess.Interpretation(); err == nil {
		out["interpretation"] = in
	}
	if m, err := sess.Merge(); err == nil {
		out["merge"] = m
	}
	if art, err := sess.Map(); err == nil {
		out["map_state"] = art.State
		out["map_message"] = art.Message
	}
	out["files"] = sess.Exports()
	return out
}

func printRun(w io.Writer, runID string, sess *session.Session) error {
	fmt.Fprintf(w, "Run %s\n\n", runID)

	if report, err := sess.Evaluation(); err == nil {
		if err := printEvaluation(w, report); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	if in, err := sess.Interpretation(); err == nil {
		rows := make([][]string, 0, len(in))
		for _, c := range in {
			high, low := strings.Join(c.High, ", "), strings.Join(c.Low, ", ")
			if c.Unremarkable() {
				high = "(no notable features)"
			}
			rows = append(rows, []string{strconv.Itoa(c.Cluster), strconv.Itoa(c.Count), high, low})
		}
		if err := printTable(w, []string{"CLUSTER", "COUNT", "HIGH", "LOW"}, rows); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	if m, err := sess.Merge(); err == nil {
		fmt.Fprintf(w, "Matched: %d\n", m.TotalMatched)
		fmt.Fprintf(w, "Missing in geometry: %s\n", listOrNone(m.MissingInGeometry))
		fmt.Fprintf(w, "Missing in partition data: %s\n", listOrNone(m.MissingInPartition))
	}
	if art, err := sess.Map(); err == nil && art.State == model.MapFallback {
		fmt.Fprintf(w, "Map fell back to the base map: %s\n", art.Message)
	}
	fmt.Fprintln(w)

	rows := [][]string{}
	for _, res := range sess.Exports() {
		status := "ok"
		if !res.Success {
			status = "failed: " + res.Error
		}
		rows = append(rows, []string{res.Type, res.Path, status})
	}
	return printTable(w, []string{"TYPE", "PATH", "STATUS"}, rows)
}

func printEvaluation(w io.Writer, report *model.EvaluationReport) error {
	rows := make([][]string, 0, len(report.Records))
	for _, r := range report.Table() {
		mark := ""
		switch {
		case r.K == report.BestK:
			mark = "*"
		case r.Excluded:
			mark = "degenerate"
		}
		rows = append(rows, []string{
			strconv.Itoa(r.K),
			strconv.FormatFloat(r.SSW, 'f', 4, 64),
			strconv.FormatFloat(r.SSB, 'f', 4, 64),
			strconv.FormatFloat(r.DBI, 'f', 4, 64),
			mark,
		})
	}
	if err := printTable(w, []string{"K", "SSW", "SSB", "DBI", "BEST"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nBest k = %d (DBI %.4f)\n", report.BestK, report.BestDBI)
	return err
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
