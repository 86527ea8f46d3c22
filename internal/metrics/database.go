package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	// DBConnectionsOpen is the total number of open connections to the database
	DBConnectionsOpen = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Total number of open database connections",
		},
		[]string{"backend"},
	)

	// DBConnectionsInUse is the number of database connections currently in use
	DBConnectionsInUse = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_in_use",
			Help:      "Number of database connections currently in use",
		},
		[]string{"backend"},
	)

	// DBConnectionsIdle is the number of idle database connections
	DBConnectionsIdle = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"backend"},
	)

	// DBConnectionsMaxOpen is the maximum number of open database connections
	DBConnectionsMaxOpen = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_max_open",
			Help:      "Maximum number of open database connections allowed (0 = unlimited)",
		},
		[]string{"backend"},
	)
)

// PoolStats is a backend-neutral snapshot of connection pool usage.
type PoolStats struct {
	Open    int
	InUse   int
	Idle    int
	MaxOpen int
}

// StatsSource reports the current pool usage.
type StatsSource func() PoolStats

// PgxPoolStats adapts a pgx pool.
func PgxPoolStats(pool *pgxpool.Pool) StatsSource {
	return func() PoolStats {
		stat := pool.Stat()
		return PoolStats{
			Open:    int(stat.TotalConns()),
			InUse:   int(stat.AcquiredConns()),
			Idle:    int(stat.IdleConns()),
			MaxOpen: int(stat.MaxConns()),
		}
	}
}

// SQLDBStats adapts a database/sql handle.
func SQLDBStats(db *sql.DB) StatsSource {
	return func() PoolStats {
		stat := db.Stats()
		return PoolStats{
			Open:    stat.OpenConnections,
			InUse:   stat.InUse,
			Idle:    stat.Idle,
			MaxOpen: stat.MaxOpenConnections,
		}
	}
}

// DBCollector periodically collects database pool statistics
type DBCollector struct {
	backend  string
	source   StatsSource
	stopChan chan struct{}
}

// NewDBCollector creates a new database metrics collector. A nil source is
// allowed and makes collection a no-op.
func NewDBCollector(backend string, source StatsSource) *DBCollector {
	return &DBCollector{
		backend:  backend,
		source:   source,
		stopChan: make(chan struct{}),
	}
}

// Start collects at the given interval until ctx is done or Stop is called.
func (c *DBCollector) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector
func (c *DBCollector) Stop() {
	close(c.stopChan)
}

func (c *DBCollector) collect() {
	if c.source == nil {
		return
	}

	stat := c.source()
	DBConnectionsOpen.WithLabelValues(c.backend).Set(float64(stat.Open))
	DBConnectionsInUse.WithLabelValues(c.backend).Set(float64(stat.InUse))
	DBConnectionsIdle.WithLabelValues(c.backend).Set(float64(stat.Idle))
	DBConnectionsMaxOpen.WithLabelValues(c.backend).Set(float64(stat.MaxOpen))
}
