package sqlite

import (
	"sync/atomic"

	"github.com/operator-framework/sqlguard/pkg/metrics"
)

// Stats counts engine handles held by this process.
type Stats struct {
	OpenConnections int64
	OpenStatements  int64
}

var (
	liveConnections atomic.Int64
	liveStatements  atomic.Int64
)

// CurrentStats returns the number of connections and statements that have
// been acquired and not yet released.
func CurrentStats() Stats {
	return Stats{
		OpenConnections: liveConnections.Load(),
		OpenStatements:  liveStatements.Load(),
	}
}

func acquiredConnection() {
	liveConnections.Add(1)
	metrics.EmitConnectionOpened()
}

func releasedConnection() {
	liveConnections.Add(-1)
	metrics.EmitConnectionClosed()
}

func acquiredStatement() {
	liveStatements.Add(1)
	metrics.EmitStatementPrepared()
}

func releasedStatement() {
	liveStatements.Add(-1)
	metrics.EmitStatementFinalized()
}
