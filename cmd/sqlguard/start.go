package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/operator-framework/sqlguard/pkg/lib/fsutil"
	"github.com/operator-framework/sqlguard/pkg/lib/lines"
	"github.com/operator-framework/sqlguard/pkg/lib/log"
	"github.com/operator-framework/sqlguard/pkg/lib/server"
	"github.com/operator-framework/sqlguard/pkg/lib/signals"
	"github.com/operator-framework/sqlguard/pkg/version"
	"github.com/operator-framework/sqlguard/pkg/workload"
)

const (
	envPrefix       = "SQLGUARD"
	defaultDatabase = "test_database.db"
	defaultEmails   = "emails.txt"
)

type options struct {
	database    string
	emails      string
	workers     int
	queries     int
	rows        int
	mode        string
	qps         float64
	timed       bool
	verify      bool
	output      string
	logFormat   string
	metricsAddr string
	profiling   bool
	debug       bool
	version     bool

	out    io.Writer
	errOut io.Writer
}

func newOptions(out, errOut io.Writer) *options {
	return &options{out: out, errOut: errOut}
}

func (o *options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.database, "database", defaultDatabase, "path of the backing store, recreated on every run")
	fs.StringVar(&o.emails, "emails", defaultEmails, "file with one email per line, searched for in the working directory and its parents")
	fs.IntVar(&o.workers, "workers", workload.DefaultWorkers, "number of reader workers")
	fs.IntVar(&o.queries, "queries", workload.DefaultQueries, "number of reads issued by each worker")
	fs.IntVar(&o.rows, "rows", 0, "number of emails to insert, 0 inserts all of them")
	fs.StringVar(&o.mode, "mode", string(workload.ModeShared), "connection mode: shared (one serialized connection) or per-worker (one unsynchronized connection each)")
	fs.Float64Var(&o.qps, "queries-per-second", 0, "per worker read rate, 0 for unpaced")
	fs.BoolVar(&o.timed, "timed", false, "log the duration of every read")
	fs.BoolVar(&o.verify, "verify", true, "check every row read against the populated content")
	fs.StringVarP(&o.output, "output", "o", workload.FormatText, "report format: text, json or yaml")
	fs.StringVar(&o.logFormat, "log-format", log.FormatText, "log format: text or json")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address while running, e.g. :8080")
	fs.BoolVar(&o.profiling, "profiling", false, "serve pprof handlers next to the metrics (requires --metrics-addr)")
	fs.BoolVar(&o.debug, "debug", false, "use debug log level")
	fs.BoolVar(&o.version, "version", false, "displays the sqlguard version")
}

// Complete applies SQLGUARD_* environment variables to flags that were not
// set on the command line.
func (o *options) Complete(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return errors.Wrap(err, "could not bind flags")
	}

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || !v.IsSet(f.Name) {
			return
		}
		if serr := fs.Set(f.Name, v.GetString(f.Name)); serr != nil {
			err = errors.Wrapf(serr, "invalid value for %s_%s", envPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")))
		}
	})
	return err
}

func (o *options) Validate() error {
	switch {
	case o.output != workload.FormatText && o.output != workload.FormatJSON && o.output != workload.FormatYAML:
		return errors.Errorf("unknown output format %q", o.output)
	case o.profiling && o.metricsAddr == "":
		return errors.New("--profiling requires --metrics-addr")
	}
	return nil
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	o := newOptions(out, errOut)

	cmd := &cobra.Command{
		Use:          "sqlguard",
		Short:        "Populates a SQLite store and reads it back from concurrent workers",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd.Flags()); err != nil {
				return err
			}
			if o.version {
				fmt.Fprint(o.out, version.String())
				return nil
			}
			if err := o.Validate(); err != nil {
				return err
			}

			logger, err := log.New(o.out, o.errOut, o.logFormat, o.debug)
			if err != nil {
				return err
			}
			logger.Debugf("log level %s", logger.Level)

			ctx, cancel := signals.WithShutdown(cmd.Context(), logger)
			defer cancel()

			return o.run(ctx, logger)
		},
	}
	o.AddFlags(cmd.Flags())
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd
}

func (o *options) run(ctx context.Context, logger *logrus.Logger) error {
	path, err := o.emailsPath()
	if err != nil {
		return err
	}
	emails, err := lines.Load(path)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"file": path, "lines": len(emails)}).Info("loaded emails")

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()
	if o.metricsAddr != "" {
		g.Go(func() error {
			return server.Serve(serveCtx, o.metricsAddr, server.WithLogger(logger), server.WithProfiling(o.profiling))
		})
	}

	var report *workload.Report
	g.Go(func() error {
		defer stopServing()
		var err error
		report, err = workload.Run(gctx, workload.Config{
			Database:         o.database,
			Emails:           emails,
			Rows:             o.rows,
			Workers:          o.workers,
			Queries:          o.queries,
			Mode:             workload.Mode(o.mode),
			QueriesPerSecond: o.qps,
			Timed:            o.timed,
			VerifyHashes:     o.verify,
			Logger:           logger,
		})
		return err
	})
	err = g.Wait()

	if report != nil {
		if werr := report.Write(o.out, o.output); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func (o *options) emailsPath() (string, error) {
	if filepath.IsAbs(o.emails) {
		return o.emails, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "could not determine working directory")
	}
	return fsutil.FindUpward(wd, o.emails)
}
