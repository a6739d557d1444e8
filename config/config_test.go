package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/rrdiag/timeseries"
)

func TestDefaults(t *testing.T) {
	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "first", cfg.Archive.Start)
	assert.Equal(t, "last", cfg.Archive.End)
	assert.Zero(t, cfg.Archive.Step)
	assert.Equal(t, 5, cfg.Analysis.Top)
	assert.Equal(t, 2, cfg.Analysis.MSTLIterations)
	assert.Equal(t, 1, cfg.Analysis.Workers)
	assert.Empty(t, cfg.Analysis.Periods)
	assert.Equal(t, "autoarima", cfg.Forecast.Model)
	assert.Equal(t, [3]int{1, 1, 1}, cfg.Forecast.Order)
	assert.Equal(t, 24*time.Hour, cfg.Forecast.SeasonalPeriod)
	assert.Equal(t, 24*time.Hour, cfg.Forecast.Horizon)
	assert.Equal(t, []float64{25, 50, 75}, cfg.Forecast.Levels)
}

func TestFileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rrdiag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
archive:
  step: 5m
analysis:
  top: 3
  decompose: true
  periods: [1d, 1w]
  workers: 4
forecast:
  model: ets
  levels: [80, 95]
`), 0o600))
	t.Setenv("RRDIAG_ANALYSIS_TOP", "7")
	t.Setenv("RRDIAG_FORECAST_HORIZON", "6h")

	v, err := NewViper(path)
	require.NoError(t, err)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 1, "")
	require.NoError(t, flags.Parse([]string{"--workers", "8"}))
	require.NoError(t, v.BindPFlag("analysis.workers", flags.Lookup("workers")))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 5*time.Minute, cfg.Archive.Step)
	assert.Equal(t, 7, cfg.Analysis.Top)
	assert.True(t, cfg.Analysis.Decompose)
	assert.Equal(t, []time.Duration{24 * time.Hour, 7 * 24 * time.Hour}, cfg.Analysis.Periods)
	assert.Equal(t, 8, cfg.Analysis.Workers)
	assert.Equal(t, "ets", cfg.Forecast.Model)
	assert.Equal(t, 6*time.Hour, cfg.Forecast.Horizon)
	assert.Equal(t, []float64{80, 95}, cfg.Forecast.Levels)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestParseOrder(t *testing.T) {
	order, err := ParseOrder("2, 1,0")
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 1, 0}, order)

	for _, bad := range []string{"", "1,1", "1,x,1", "1,-1,0", "1,1,1,1"} {
		_, err := ParseOrder(bad)
		assert.ErrorIs(t, err, timeseries.ErrInvalidOrder, bad)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"log level", "log.level", "trace"},
		{"log format", "log.format", "xml"},
		{"negative top", "analysis.top", -1},
		{"negative diff", "analysis.diff", -1},
		{"seasonal diff without lag", "analysis.seasonal_diff", 1},
		{"no workers", "analysis.workers", 0},
		{"no max lag", "analysis.max_lag", 0},
		{"model", "forecast.model", "prophet"},
		{"criterion", "forecast.criterion", "hqic"},
		{"test", "forecast.test", "pp"},
		{"level", "forecast.levels", []string{"100"}},
		{"bad duration", "forecast.horizon", "soon"},
		{"bad period", "analysis.periods", []string{"1x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewViper("")
			require.NoError(t, err)
			v.Set(tt.key, tt.val)
			_, err = Load(v)
			assert.Error(t, err)
		})
	}
}
