// Package config loads rrdiag settings from a YAML file, RRDIAG_ environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/sartorproj/rrdiag/timeseries"
)

// EnvPrefix prefixes every environment variable, e.g. RRDIAG_ANALYSIS_TOP.
const EnvPrefix = "RRDIAG"

// Config is the typed view of all settings.
type Config struct {
	Log      Log
	Archive  Archive
	Analysis Analysis
	Forecast Forecast
	Metrics  Metrics
}

// Log selects the zap configuration.
type Log struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// Archive bounds the samples read from an archive file. Start and End are
// time markers such as "first", "end-30d" or an RFC3339 timestamp.
type Archive struct {
	Start string
	End   string
	// Step is the preferred step; zero keeps the native one.
	Step time.Duration
}

// Analysis configures the diagnostic pipeline.
type Analysis struct {
	Top          int
	Detrend      bool
	Refine       bool
	Diff         int
	SeasonalDiff int
	SeasonalLag  time.Duration
	Decompose    bool
	// Periods override the detected periods for decomposition.
	Periods        []time.Duration
	MSTLIterations int
	Robust         bool
	MaxLag         int
	Workers        int
}

// Forecast configures the forecast command.
type Forecast struct {
	Model          string // arima, autoarima or ets
	Order          [3]int
	SeasonalPeriod time.Duration
	Horizon        time.Duration
	Levels         []float64
	Criterion      string
	Test           string
}

// Metrics configures the Prometheus collectors.
type Metrics struct {
	Namespace string
	// Textfile, when set, receives the collected metrics in the text
	// exposition format when the command exits.
	Textfile string
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("archive.start", "first")
	v.SetDefault("archive.end", "last")
	v.SetDefault("archive.step", "")

	v.SetDefault("analysis.top", 5)
	v.SetDefault("analysis.detrend", false)
	v.SetDefault("analysis.refine", false)
	v.SetDefault("analysis.diff", 0)
	v.SetDefault("analysis.seasonal_diff", 0)
	v.SetDefault("analysis.seasonal_lag", "")
	v.SetDefault("analysis.decompose", false)
	v.SetDefault("analysis.periods", []string{})
	v.SetDefault("analysis.mstl_iterations", 2)
	v.SetDefault("analysis.robust", false)
	v.SetDefault("analysis.max_lag", 40)
	v.SetDefault("analysis.workers", 1)

	v.SetDefault("forecast.model", "autoarima")
	v.SetDefault("forecast.order", "1,1,1")
	v.SetDefault("forecast.seasonal_period", "1d")
	v.SetDefault("forecast.horizon", "1d")
	v.SetDefault("forecast.levels", []string{"25", "50", "75"})
	v.SetDefault("forecast.criterion", "aicc")
	v.SetDefault("forecast.test", "kpss")

	v.SetDefault("metrics.namespace", "rrdiag")
	v.SetDefault("metrics.textfile", "")
}

// NewViper returns a viper instance with defaults and environment binding.
// A non-empty path is read as the configuration file.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	return v, nil
}

// Load builds a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Archive: Archive{
			Start: v.GetString("archive.start"),
			End:   v.GetString("archive.end"),
		},
		Analysis: Analysis{
			Top:            v.GetInt("analysis.top"),
			Detrend:        v.GetBool("analysis.detrend"),
			Refine:         v.GetBool("analysis.refine"),
			Diff:           v.GetInt("analysis.diff"),
			SeasonalDiff:   v.GetInt("analysis.seasonal_diff"),
			Decompose:      v.GetBool("analysis.decompose"),
			MSTLIterations: v.GetInt("analysis.mstl_iterations"),
			Robust:         v.GetBool("analysis.robust"),
			MaxLag:         v.GetInt("analysis.max_lag"),
			Workers:        v.GetInt("analysis.workers"),
		},
		Forecast: Forecast{
			Model:     strings.ToLower(v.GetString("forecast.model")),
			Criterion: strings.ToLower(v.GetString("forecast.criterion")),
			Test:      strings.ToLower(v.GetString("forecast.test")),
		},
		Metrics: Metrics{
			Namespace: v.GetString("metrics.namespace"),
			Textfile:  v.GetString("metrics.textfile"),
		},
	}

	var err error
	if cfg.Archive.Step, err = optionalDuration(v, "archive.step"); err != nil {
		return nil, err
	}
	if cfg.Analysis.SeasonalLag, err = optionalDuration(v, "analysis.seasonal_lag"); err != nil {
		return nil, err
	}
	if cfg.Forecast.SeasonalPeriod, err = optionalDuration(v, "forecast.seasonal_period"); err != nil {
		return nil, err
	}
	if cfg.Forecast.Horizon, err = optionalDuration(v, "forecast.horizon"); err != nil {
		return nil, err
	}
	for _, p := range listValues(v, "analysis.periods") {
		d, err := timeseries.ParseDuration(p)
		if err != nil {
			return nil, errors.Wrapf(err, "analysis.periods")
		}
		cfg.Analysis.Periods = append(cfg.Analysis.Periods, d)
	}
	for _, l := range listValues(v, "forecast.levels") {
		f, err := strconv.ParseFloat(l, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "forecast.levels")
		}
		cfg.Forecast.Levels = append(cfg.Forecast.Levels, f)
	}
	if cfg.Forecast.Order, err = ParseOrder(v.GetString("forecast.order")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// optionalDuration parses key with timeseries.ParseDuration; an empty value
// or "0" is zero.
func optionalDuration(v *viper.Viper, key string) (time.Duration, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := timeseries.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", key)
	}
	return d, nil
}

// listValues reads a list given either as a YAML sequence or as one
// comma-separated string.
func listValues(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseOrder parses "p,d,q".
func ParseOrder(s string) ([3]int, error) {
	var order [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return order, errors.Wrapf(timeseries.ErrInvalidOrder, "order %q must be p,d,q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return order, errors.Wrapf(timeseries.ErrInvalidOrder, "order %q must be p,d,q", s)
		}
		order[i] = n
	}
	return order, nil
}

// Validate checks the settings that do not depend on the data.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.Errorf("log.format %q must be json or console", c.Log.Format)
	}

	a := c.Analysis
	switch {
	case a.Top < 0:
		return errors.Errorf("analysis.top %d must not be negative", a.Top)
	case a.Diff < 0 || a.SeasonalDiff < 0:
		return errors.Wrapf(timeseries.ErrInvalidOrder, "analysis.diff %d and analysis.seasonal_diff %d must not be negative", a.Diff, a.SeasonalDiff)
	case a.SeasonalDiff > 0 && a.SeasonalLag <= 0:
		return errors.Wrap(timeseries.ErrInvalidPeriod, "analysis.seasonal_diff needs analysis.seasonal_lag")
	case a.MSTLIterations < 1:
		return errors.Errorf("analysis.mstl_iterations %d must be positive", a.MSTLIterations)
	case a.MaxLag < 1:
		return errors.Errorf("analysis.max_lag %d must be positive", a.MaxLag)
	case a.Workers < 1:
		return errors.Errorf("analysis.workers %d must be positive", a.Workers)
	}
	if c.Archive.Step < 0 {
		return errors.Wrapf(timeseries.ErrInvalidStep, "archive.step %s", c.Archive.Step)
	}

	f := c.Forecast
	switch f.Model {
	case "arima", "autoarima", "ets":
	default:
		return errors.Errorf("forecast.model %q must be arima, autoarima or ets", f.Model)
	}
	switch f.Criterion {
	case "aic", "aicc", "bic":
	default:
		return errors.Errorf("forecast.criterion %q must be aic, aicc or bic", f.Criterion)
	}
	switch f.Test {
	case "kpss", "adf":
	default:
		return errors.Errorf("forecast.test %q must be kpss or adf", f.Test)
	}
	if f.SeasonalPeriod < 0 {
		return errors.Wrapf(timeseries.ErrInvalidPeriod, "forecast.seasonal_period %s", f.SeasonalPeriod)
	}
	for _, l := range f.Levels {
		if l <= 0 || l >= 100 {
			return errors.Errorf("forecast.levels: %v must be in (0, 100)", l)
		}
	}
	return nil
}
