package workload

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/operator-framework/sqlguard/pkg/lib/log"
	"github.com/operator-framework/sqlguard/pkg/metrics"
	"github.com/operator-framework/sqlguard/pkg/sqlite"
)

func emails(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("customer%03d@example.com", i)
	}
	return out
}

func nullLogger() logrus.FieldLogger {
	return log.Null()
}

func TestRun(t *testing.T) {
	for _, mode := range []Mode{ModeShared, ModePerWorker} {
		t.Run(string(mode), func(t *testing.T) {
			before := sqlite.CurrentStats()
			succeeded := testutil.ToFloat64(metrics.CounterForWorkload(string(mode), metrics.Succeeded))

			report, err := Run(context.Background(), Config{
				Database:     filepath.Join(t.TempDir(), "test.db"),
				Emails:       emails(50),
				Workers:      4,
				Queries:      10,
				Mode:         mode,
				VerifyHashes: true,
				Logger:       nullLogger(),
			})
			require.NoError(t, err)

			require.Equal(t, mode, report.Mode)
			require.Equal(t, 50, report.Rows)
			require.Equal(t, 40, report.TotalQueries)
			require.Zero(t, report.FailedWorkers)
			require.Len(t, report.Workers, 4)
			for i, w := range report.Workers {
				require.Equal(t, i, w.ID)
				require.Equal(t, 10, w.Queries)
				require.Equal(t, 500, w.RowsRead)
				require.Empty(t, w.Error)
			}
			require.Equal(t, succeeded+40, testutil.ToFloat64(metrics.CounterForWorkload(string(mode), metrics.Succeeded)))
			require.Equal(t, before, sqlite.CurrentStats())
		})
	}
}

func TestRunRecreatesStore(t *testing.T) {
	cfg := Config{
		Database: filepath.Join(t.TempDir(), "test.db"),
		Emails:   emails(10),
		Workers:  1,
		Queries:  1,
		Logger:   nullLogger(),
	}
	for i := 0; i < 2; i++ {
		report, err := Run(context.Background(), cfg)
		require.NoError(t, err)
		require.Equal(t, 10, report.Workers[0].RowsRead)
	}

	c, err := sqlite.Open(cfg.Database, sqlite.OpenReadWrite, "", sqlite.WithLogger(nullLogger()))
	require.NoError(t, err)
	defer c.Release()
	rs, err := c.Exec("SELECT first_name, last_name, email, phone, address FROM customer WHERE customer_id = ?", 10)
	require.NoError(t, err)
	require.Equal(t, []sqlite.Row{{
		sqlite.Text(FirstName), sqlite.Text(LastName), sqlite.Text("customer009@example.com"), sqlite.Text(Phone), sqlite.Text(Address),
	}}, rs.Rows)
}

func TestRunRowLimitAndPacing(t *testing.T) {
	report, err := Run(context.Background(), Config{
		Database:         filepath.Join(t.TempDir(), "test.db"),
		Emails:           emails(30),
		Rows:             5,
		Workers:          2,
		Queries:          3,
		Mode:             ModePerWorker,
		QueriesPerSecond: 1000,
		Timed:            true,
		Logger:           nullLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, 5, report.Rows)
	require.Equal(t, 6, report.TotalQueries)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, Config{
		Database: filepath.Join(t.TempDir(), "test.db"),
		Emails:   emails(5),
		Workers:  3,
		Queries:  10,
		Logger:   nullLogger(),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "3 of 3 workers failed")
	require.Equal(t, 3, report.FailedWorkers)
	require.Zero(t, report.TotalQueries)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		err  string
	}{
		{name: "no database", cfg: Config{Emails: emails(1)}, err: "database path must be set"},
		{name: "memory", cfg: Config{Database: ":memory:", Emails: emails(1)}, err: "database must be file backed so workers can share it"},
		{name: "mode", cfg: Config{Database: "x.db", Emails: emails(1), Mode: "pool"}, err: `unknown mode "pool", expected "shared" or "per-worker"`},
		{name: "negative workers", cfg: Config{Database: "x.db", Emails: emails(1), Workers: -1}, err: "workers must be positive, got -1"},
		{name: "no emails", cfg: Config{Database: "x.db"}, err: "at least one email is required"},
		{name: "too many rows", cfg: Config{Database: "x.db", Emails: emails(2), Rows: 3}, err: "3 rows requested but only 2 emails loaded"},
		{name: "negative rate", cfg: Config{Database: "x.db", Emails: emails(2), QueriesPerSecond: -1}, err: "queries per second must not be negative, got -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Complete()
			require.EqualError(t, tt.cfg.Validate(), tt.err)
		})
	}
}

func TestConfigComplete(t *testing.T) {
	cfg := Config{Emails: emails(7)}
	cfg.Complete()
	require.Equal(t, DefaultWorkers, cfg.Workers)
	require.Equal(t, DefaultQueries, cfg.Queries)
	require.Equal(t, ModeShared, cfg.Mode)
	require.Equal(t, 7, cfg.Rows)
	require.NotNil(t, cfg.Logger)
}

func TestFailingWorkerDoesNotStopSiblings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cfg := &Config{Database: path, Emails: emails(10), Rows: 10, Queries: 5, Mode: ModeShared}

	good, err := sqlite.Open(path, sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenFullMutex, "", sqlite.WithLogger(nullLogger()))
	require.NoError(t, err)
	defer good.Release()
	require.NoError(t, populate(good, cfg.Emails))

	closed, err := sqlite.Open(path, sqlite.OpenReadWrite|sqlite.OpenFullMutex, "", sqlite.WithLogger(nullLogger()))
	require.NoError(t, err)
	require.NoError(t, closed.Close())

	logger, hook := test.NewNullLogger()
	reports := make([]WorkerReport, 2)
	workers := []*worker{
		{id: 0, cfg: cfg, shared: closed, report: &reports[0], logger: logger.WithField("worker", 0)},
		{id: 1, cfg: cfg, shared: good, report: &reports[1], logger: logger.WithField("worker", 1)},
	}

	var g errgroup.Group
	for _, w := range workers {
		g.Go(func() error { return w.run(context.Background()) })
	}
	err = g.Wait()
	require.True(t, sqlite.IsCode(err, sqlite3.ErrMisuse), "%v", err)

	require.NotEmpty(t, reports[0].Error)
	require.Zero(t, reports[0].Queries)
	require.Empty(t, reports[1].Error)
	require.Equal(t, 5, reports[1].Queries)

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	require.Equal(t, logrus.ErrorLevel, entries[0].Level)
	require.True(t, strings.HasPrefix(entries[0].Message, `sqlite.Exception{"line": `), entries[0].Message)
	require.Equal(t, "SQLITE_MISUSE", entries[0].Data["resultCode"])
}
