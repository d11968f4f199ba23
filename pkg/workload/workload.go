package workload

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/operator-framework/sqlguard/pkg/metrics"
	"github.com/operator-framework/sqlguard/pkg/sqlite"
)

// Run recreates the store, populates it and then reads it from cfg.Workers
// goroutines. A failing worker stops its own loop only. The report is
// returned even when workers fail.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	cfg.Complete()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger.WithFields(logrus.Fields{"database": cfg.Database, "mode": cfg.Mode})

	if err := removeStore(cfg.Database); err != nil {
		return nil, err
	}

	writer, err := sqlite.Open(cfg.Database, sqlite.OpenReadWrite|sqlite.OpenCreate|cfg.Mode.flags(), "", sqlite.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "could not open writer connection")
	}
	defer writer.Release()

	if err := populate(writer, cfg.Emails[:cfg.Rows]); err != nil {
		return nil, err
	}
	logger.WithField("rows", cfg.Rows).Info("populated customer table")

	var want []uint64
	if cfg.VerifyHashes {
		if want, err = contentHashes(writer); err != nil {
			return nil, err
		}
	}

	// Unsynchronized readers must not start before the writer is gone.
	var shared *sqlite.Connection
	if cfg.Mode == ModeShared {
		shared = writer
	} else if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "could not close writer connection")
	}

	report := &Report{
		Mode:          cfg.Mode,
		ThreadingMode: cfg.Mode.flags().ThreadingMode(),
		Workers:       make([]WorkerReport, cfg.Workers),
		Rows:          cfg.Rows,
	}

	var g errgroup.Group
	start := time.Now()
	for i := 0; i < cfg.Workers; i++ {
		w := &worker{
			id:     i,
			cfg:    &cfg,
			shared: shared,
			want:   want,
			report: &report.Workers[i],
			logger: logger.WithField("worker", i),
		}
		g.Go(func() error { return w.run(ctx) })
	}
	err = g.Wait()
	report.Elapsed = time.Since(start)
	report.summarize()

	if err != nil {
		return report, errors.Wrapf(err, "%d of %d workers failed", report.FailedWorkers, cfg.Workers)
	}
	return report, nil
}

func removeStore(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "could not remove %s", p)
		}
	}
	return nil
}

func populate(c *sqlite.Connection, emails []string) error {
	if _, err := c.Exec(Schema); err != nil {
		return errors.Wrap(err, "could not create schema")
	}

	insert, err := c.Prepare(InsertQuery)
	if err != nil {
		return err
	}
	defer insert.Release()

	for _, v := range []struct {
		index int
		text  string
	}{{1, FirstName}, {2, LastName}, {4, Phone}, {5, Address}} {
		if err := insert.BindText(v.index, v.text); err != nil {
			return err
		}
	}
	for i, email := range emails {
		if err := insert.BindText(3, email); err != nil {
			return err
		}
		if _, err := insert.Execute(); err != nil {
			return errors.Wrapf(err, "could not insert row %d", i+1)
		}
	}
	return nil
}

func contentHashes(c *sqlite.Connection) ([]uint64, error) {
	rs, err := c.Exec(SelectQuery)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(rs.Rows))
	for i, row := range rs.Rows {
		if out[i], err = row.Hash(); err != nil {
			return nil, errors.Wrapf(err, "could not hash row %d", i)
		}
	}
	return out, nil
}

type worker struct {
	id     int
	cfg    *Config
	shared *sqlite.Connection
	want   []uint64
	report *WorkerReport
	logger logrus.FieldLogger
}

func (w *worker) run(ctx context.Context) error {
	w.report.ID = w.id
	err := w.read(ctx)
	if err != nil {
		w.report.Error = err.Error()
		if ex, ok := sqlite.AsException(err); ok {
			w.logger.WithFields(ex.Fields()).Error(ex.String())
		} else {
			w.logger.WithError(err).Error("worker stopped")
		}
	}
	return err
}

func (w *worker) read(ctx context.Context) error {
	conn := w.shared
	if conn == nil {
		c, err := sqlite.Open(w.cfg.Database, sqlite.OpenReadWrite|w.cfg.Mode.flags(), "", sqlite.WithLogger(w.logger))
		if err != nil {
			return err
		}
		defer c.Release()
		conn = c
	}

	stmt, err := conn.Prepare(SelectQuery)
	if err != nil {
		return err
	}
	defer stmt.Release()

	execute := stmt.Execute
	if w.cfg.Timed {
		execute = stmt.ExecuteTimed
	}
	var limiter *rate.Limiter
	if w.cfg.QueriesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(w.cfg.QueriesPerSecond), 1)
	}

	for i := 0; i < w.cfg.Queries; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return errors.Wrap(err, "stopped waiting for rate limiter")
			}
		} else if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "stopped")
		}

		rs, err := execute()
		if err != nil {
			metrics.CounterForWorkload(string(w.cfg.Mode), metrics.Failed).Inc()
			return err
		}
		metrics.CounterForWorkload(string(w.cfg.Mode), metrics.Succeeded).Inc()
		w.report.Queries++
		w.report.RowsRead += rs.Len()

		if err := w.verify(rs); err != nil {
			return errors.Wrapf(err, "query %d", i)
		}
	}
	w.logger.WithField("queries", w.report.Queries).Debug("worker finished")
	return nil
}

func (w *worker) verify(rs *sqlite.ResultSet) error {
	if rs.Len() != w.cfg.Rows {
		return errors.Errorf("read %d rows, want %d", rs.Len(), w.cfg.Rows)
	}
	if w.want == nil {
		return nil
	}
	for i, row := range rs.Rows {
		h, err := row.Hash()
		if err != nil {
			return errors.Wrapf(err, "could not hash row %d", i)
		}
		if h != w.want[i] {
			return errors.Errorf("row %d changed between reads", i)
		}
	}
	return nil
}
