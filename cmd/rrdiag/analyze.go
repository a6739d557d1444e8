package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sartorproj/rrdiag/pipeline"
)

var analyzeKeys = flagKeys{
	"start":           "archive.start",
	"end":             "archive.end",
	"step":            "archive.step",
	"top":             "analysis.top",
	"detrend":         "analysis.detrend",
	"refine":          "analysis.refine",
	"diff":            "analysis.diff",
	"seasonal-diff":   "analysis.seasonal_diff",
	"seasonal-lag":    "analysis.seasonal_lag",
	"decompose":       "analysis.decompose",
	"periods":         "analysis.periods",
	"mstl-iterations": "analysis.mstl_iterations",
	"robust":          "analysis.robust",
	"max-lag":         "analysis.max_lag",
	"workers":         "analysis.workers",
}

func newAnalyzeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Suggest periods, test stationarity and decompose every source",
		Example: `  rrdiag analyze load.csv --top 3 --refine
  rrdiag analyze load.csv --diff 1 --decompose --periods 1d,1w`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, analyzeKeys, nil); err != nil {
				return err
			}
			defer a.finish()

			ds, err := a.fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			analyzer := pipeline.NewAnalyzer(pipeline.OptionsFromConfig(a.cfg.Analysis), a.logger, a.metrics)
			report, err := analyzer.Analyze(cmd.Context(), ds)
			if err != nil {
				return err
			}

			printReport(cmd.OutOrStdout(), report)

			failed := 0
			for _, src := range report.Sources {
				if src.Err() != nil {
					failed++
				}
			}
			if failed > 0 {
				return errors.Errorf("%d of %d sources had failing stages", failed, len(report.Sources))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.String("start", "first", "start time marker")
	f.String("end", "last", "end time marker")
	f.String("step", "", "resample to this step (must not be finer than the archive's)")
	f.Int("top", 5, "number of suggested periods")
	f.Bool("detrend", false, "remove the linear trend before period detection")
	f.Bool("refine", false, "refine detected periods between spectrum bins")
	f.Int("diff", 0, "ordinary differencing order d")
	f.Int("seasonal-diff", 0, "seasonal differencing order D")
	f.String("seasonal-lag", "", "seasonal differencing lag, e.g. 1d")
	f.Bool("decompose", false, "run MSTL decomposition")
	f.StringSlice("periods", nil, "decomposition periods (default: the detected ones)")
	f.Int("mstl-iterations", 2, "MSTL refinement iterations")
	f.Bool("robust", false, "use robust STL fits")
	f.Int("max-lag", 40, "ACF and PACF lags")
	f.Int("workers", 1, "sources analyzed concurrently")
	return cmd
}

func printReport(w io.Writer, report *pipeline.Report) {
	fmt.Fprintf(w, "Range: %s to %s, step %s\n", report.Start.Format(timeLayout), report.End.Format(timeLayout), report.Step)
	for _, src := range report.Sources {
		fmt.Fprintf(w, "\n%s\n%s (%d samples, %d interpolated)\n%s\n",
			strings.Repeat("=", 60), src.Source, src.Samples, src.Filled, strings.Repeat("=", 60))

		if len(src.Periods) > 0 {
			fmt.Fprintln(w, "Suggested periods:")
			for _, p := range src.Periods {
				fmt.Fprintf(w, "\t%s\n", p.Duration)
			}
		}
		if st := src.Stationarity; st != nil {
			fmt.Fprintf(w, "ADF statistic=%.4f p-value=%.4g\n", st.Statistic, st.PValue)
			fmt.Fprintf(w, "Suggested %s\n", st.Suggestion())
		}
		if dec := src.Decomposition; dec != nil {
			fmt.Fprintf(w, "Decomposed with periods %v in %d iterations\n", dec.Periods, dec.Iterations)
		}
		if src.ACF != nil && src.PACF != nil {
			fmt.Fprintf(w, "Significant ACF lags: %v\n", src.ACF.Significant())
			fmt.Fprintf(w, "Significant PACF lags: %v\n", src.PACF.Significant())
		}
		for _, err := range src.Errors {
			fmt.Fprintf(w, "Failed: %v\n", err)
		}
	}
}

const timeLayout = "2006-01-02 15:04:05 MST"

