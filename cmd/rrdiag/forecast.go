package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sartorproj/rrdiag/config"
	"github.com/sartorproj/rrdiag/forecast"
	"github.com/sartorproj/rrdiag/timeseries"
)

var forecastKeys = flagKeys{
	"start":           "archive.start",
	"end":             "archive.end",
	"step":            "archive.step",
	"model":           "forecast.model",
	"order":           "forecast.order",
	"seasonal-period": "forecast.seasonal_period",
	"horizon":         "forecast.horizon",
	"levels":          "forecast.levels",
	"criterion":       "forecast.criterion",
	"test":            "forecast.test",
}

func newForecastCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "forecast FILE",
		Short: "Fit a model to every source and forecast past the last sample",
		Example: `  rrdiag forecast load.csv --model autoarima --seasonal-period 1d --horizon 1d
  rrdiag forecast load.csv --model arima --order 2,1,1 --output forecast.csv
  rrdiag forecast load.csv --model ets --seasonal-period 1d --levels 50,80,95`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, forecastKeys, forecastDefaults); err != nil {
				return err
			}
			defer a.finish()

			ds, err := a.fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f, err := newForecaster(a.cfg.Forecast, ds.Step)
			if err != nil {
				return err
			}
			req := forecast.Request{Horizon: a.cfg.Forecast.Horizon, Levels: a.cfg.Forecast.Levels}

			var records *timeseries.RecordWriter
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return errors.Wrap(err, "create output")
				}
				defer file.Close()
				records = timeseries.NewRecordWriter(file, timeseries.HeaderDS)
			}

			failed := 0
			for _, name := range ds.Sources {
				logger := a.logger.With(zap.String("source", name), zap.String("model", f.Name()))
				res, err := forecastSource(cmd, f, ds.Get(name), req)
				a.metrics.ForecastDone(f.Name(), err)
				if err != nil {
					if cmd.Context().Err() != nil {
						return cmd.Context().Err()
					}
					logger.Error("forecast failed", zap.Error(err))
					failed++
					continue
				}
				logger.Info("forecast done", zap.String("selected", res.Model), zap.Int("steps", res.Forecast.Len()))

				printForecast(cmd.OutOrStdout(), name, ds.Step, res)
				if records != nil {
					if err := writeForecast(records, name, res); err != nil {
						return err
					}
				}
			}

			if records != nil {
				if err := records.Flush(); err != nil {
					return errors.Wrapf(err, "write %s", output)
				}
			}
			if failed > 0 {
				return errors.Errorf("%d of %d sources could not be forecast", failed, len(ds.Sources))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.String("start", "end-30d", "start time marker")
	f.String("end", "last", "end time marker")
	f.String("step", "", "resample to this step (must not be finer than the archive's)")
	f.String("model", "autoarima", "model: arima, autoarima or ets")
	f.String("order", "1,1,1", "ARIMA order p,d,q")
	f.String("seasonal-period", "1d", "seasonal period; 0 disables the seasonal search")
	f.String("horizon", "1d", "forecast horizon")
	f.StringSlice("levels", []string{"25", "50", "75"}, "prediction interval levels in percent")
	f.String("criterion", "aicc", "AutoARIMA information criterion: aic, aicc or bic")
	f.String("test", "kpss", "AutoARIMA stationarity test: kpss or adf")
	f.StringVarP(&output, "output", "o", "", "write fitted and forecast values as ds,timestamp,value records")
	return cmd
}

// forecastDefaults forecasts from the last 30 days unless told otherwise.
func forecastDefaults(v *viper.Viper) {
	v.SetDefault("archive.start", "end-30d")
}

// newForecaster builds the configured model. Seasonal periods are converted
// to samples at step.
func newForecaster(c config.Forecast, step time.Duration) (forecast.Forecaster, error) {
	season := 0
	if c.SeasonalPeriod > 0 {
		var err error
		if season, err = timeseries.PeriodSamples(c.SeasonalPeriod, step); err != nil {
			return nil, errors.Wrap(err, "seasonal period")
		}
	}

	switch c.Model {
	case "arima":
		return forecast.ARIMA{Order: forecast.Order{P: c.Order[0], D: c.Order[1], Q: c.Order[2]}}, nil
	case "autoarima":
		return forecast.AutoARIMA{SeasonLength: season, Criterion: c.Criterion, Test: c.Test}, nil
	case "ets":
		return forecast.HoltWinters{SeasonLength: season}, nil
	default:
		return nil, errors.Errorf("unknown model %q", c.Model)
	}
}

func forecastSource(cmd *cobra.Command, f forecast.Forecaster, s *timeseries.TimeSeries, req forecast.Request) (*forecast.Result, error) {
	filled, err := s.Interpolate()
	if err != nil {
		return nil, err
	}
	return f.Forecast(cmd.Context(), filled, req)
}

func printForecast(w io.Writer, source string, step time.Duration, res *forecast.Result) {
	fmt.Fprintf(w, "\n%s\n%s: %s\n%s\n", strings.Repeat("=", 60), source, res.Model, strings.Repeat("=", 60))

	if sum := res.Summary; sum != nil {
		if sum.Alpha > 0 {
			fmt.Fprintf(w, "  alpha=%.2f beta=%.2f gamma=%.2f\n", sum.Alpha, sum.Beta, sum.Gamma)
		} else {
			printCoeffs(w, "ar", sum.ARCoeffs)
			printCoeffs(w, "ma", sum.MACoeffs)
			printCoeffs(w, "sar", sum.SARCoeffs)
			printCoeffs(w, "sma", sum.SMACoeffs)
			if sum.Intercept != 0 {
				fmt.Fprintf(w, "  intercept  %10.4f\n", sum.Intercept)
			}
		}
		fmt.Fprintf(w, "  sigma^2    %10.4f\n", sum.Variance)
		fmt.Fprintf(w, "  log lik    %10.2f\n", sum.LogLik)
		fmt.Fprintf(w, "  AIC=%.2f AICc=%.2f BIC=%.2f (n=%d)\n", sum.AIC, sum.AICc, sum.BIC, sum.NObs)
		if sum.ModelsEvaluated > 0 {
			fmt.Fprintf(w, "  %d models evaluated\n", sum.ModelsEvaluated)
		}
		if m := sum.Seasonal.SeasonalLag; m > 1 {
			fmt.Fprintf(w, "  A seasonal period of %d corresponds to %s\n", m, time.Duration(m)*step)
		}
		if lb := sum.LjungBox; lb != nil {
			fmt.Fprintf(w, "  Ljung-Box Q(%d)=%.2f p-value=%.4g\n", lb.Lags, lb.Statistic, lb.PValue)
		}
	}

	fmt.Fprintf(w, "Forecast from %s, %d steps of %s\n", res.Forecast.Start.Format(timeLayout), res.Forecast.Len(), step)
}

func printCoeffs(w io.Writer, prefix string, coeffs []float64) {
	for i, c := range coeffs {
		fmt.Fprintf(w, "  %s.L%-6d %10.4f\n", prefix, i+1, c)
	}
}

// writeForecast appends the fitted values followed by the forecast, as one
// series named after the source.
func writeForecast(rw *timeseries.RecordWriter, source string, res *forecast.Result) error {
	values := append(append([]float64(nil), res.Fitted.Values...), res.Forecast.Values...)
	s, err := timeseries.New(source, res.Fitted.Start, res.Fitted.Step, values)
	if err != nil {
		return err
	}
	return rw.Write(s)
}
