package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sartorproj/rrdiag/archive"
	"github.com/sartorproj/rrdiag/config"
	"github.com/sartorproj/rrdiag/metrics"
	"github.com/sartorproj/rrdiag/timeseries"
)

// app is the state shared by the subcommands of one invocation.
type app struct {
	cfgFile string
	reader  archive.Reader

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Recorder
}

// flagKeys maps flag names to configuration keys.
type flagKeys map[string]string

var persistentKeys = flagKeys{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"metrics-file": "metrics.textfile",
}

func newRootCmd() *cobra.Command {
	a := &app{reader: archive.NewCSVArchive()}

	cmd := &cobra.Command{
		Use:   "rrdiag",
		Short: "Time-series diagnostics and forecasts for round-robin archives",
		Long: `rrdiag reads fixed-step samples from an archive file, suggests seasonal
periods, tests stationarity, decomposes the series and forecasts it.

Settings come from an optional YAML file, RRDIAG_* environment variables
and flags, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML configuration file")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "console", "log format (json, console)")
	cmd.PersistentFlags().String("metrics-file", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(newAnalyzeCmd(a))
	cmd.AddCommand(newForecastCmd(a))
	return cmd
}

// setup loads the configuration with the command's flags bound over it and
// builds the logger and metrics. defaults, when set, adjusts the defaults of
// the command before loading.
func (a *app) setup(cmd *cobra.Command, keys flagKeys, defaults func(*viper.Viper)) error {
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	if defaults != nil {
		defaults(v)
	}
	for _, set := range []flagKeys{persistentKeys, keys} {
		for name, key := range set {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
				return errors.Wrapf(err, "bind flag %s", name)
			}
		}
	}

	if a.cfg, err = config.Load(v); err != nil {
		return err
	}
	if a.logger, err = newLogger(a.cfg.Log); err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		a.logger.Debug("loaded configuration", zap.String("file", used))
	}

	a.registry = prometheus.NewRegistry()
	mc := metrics.DefaultConfig()
	mc.Namespace = a.cfg.Metrics.Namespace
	a.metrics = metrics.New(a.registry, mc)
	return nil
}

// finish writes the metrics textfile, if configured, and flushes the logger.
func (a *app) finish() {
	if a.logger == nil {
		return
	}
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
			a.logger.Error("failed to write metrics", zap.String("file", path), zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// fetch reads filename over the configured range.
func (a *app) fetch(ctx context.Context, filename string) (*timeseries.DataSet, error) {
	ds, err := archive.Fetch(ctx, a.reader, archive.FetchRequest{
		Filename: filename,
		Start:    a.cfg.Archive.Start,
		End:      a.cfg.Archive.End,
		Step:     a.cfg.Archive.Step,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Info("fetched archive",
		zap.String("file", filename),
		zap.Time("start", ds.Start),
		zap.Time("end", ds.End),
		zap.Duration("step", ds.Step),
		zap.Strings("sources", ds.Sources))
	return ds, nil
}

func newLogger(c config.Log) (*zap.Logger, error) {
	lc := zap.NewProductionConfig()
	if c.Format == "console" {
		lc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	lc.Level = zap.NewAtomicLevelAt(level)
	logger, err := lc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger, nil
}
