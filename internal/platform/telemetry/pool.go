package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PoolSnapshot is a point-in-time view of the database connection pool.
type PoolSnapshot struct {
	Total    int32
	Idle     int32
	Acquired int32
}

// RegisterPoolStats exposes connection pool gauges read from stats on every
// scrape.
func (m *Metrics) RegisterPoolStats(stats func() PoolSnapshot) {
	if m == nil || stats == nil {
		return
	}
	gauge := func(name, help string, read func(PoolSnapshot) int32) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(stats())) })
	}
	m.registry.MustRegister(
		gauge("total_connections", "Open connections in the pool", func(s PoolSnapshot) int32 { return s.Total }),
		gauge("idle_connections", "Idle connections in the pool", func(s PoolSnapshot) int32 { return s.Idle }),
		gauge("acquired_connections", "Connections checked out of the pool", func(s PoolSnapshot) int32 { return s.Acquired }),
	)
}
