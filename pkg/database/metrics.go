package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

type poolStat struct {
	desc *prometheus.Desc
	typ  prometheus.ValueType
	read func(*pgxpool.Stat) float64
}

// PoolStatsCollector exports pgxpool connection statistics on every scrape.
// Metric names are stable; alerting keys off db_pool_empty_acquire_count_total
// to spot pool exhaustion.
type PoolStatsCollector struct {
	pool    *pgxpool.Pool
	service string
	stats   []poolStat
}

func poolDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(name, help, []string{"service"}, nil)
}

// NewPoolStatsCollector builds a collector for the given pool. Register it
// once per pool; pgx updates the underlying counters internally.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	const (
		gauge   = prometheus.GaugeValue
		counter = prometheus.CounterValue
	)
	return &PoolStatsCollector{
		pool:    pool,
		service: service,
		stats: []poolStat{
			{poolDesc("db_pool_acquired_connections", "Number of currently acquired connections"), gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }},
			{poolDesc("db_pool_idle_connections", "Number of currently idle connections"), gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }},
			{poolDesc("db_pool_total_connections", "Total number of connections in the pool"), gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }},
			{poolDesc("db_pool_max_connections", "Maximum number of connections allowed"), gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }},
			{poolDesc("db_pool_constructing_connections", "Number of connections currently being constructed"), gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.ConstructingConns()) }},
			{poolDesc("db_pool_acquire_count_total", "Total number of connection acquires"), counter,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }},
			{poolDesc("db_pool_acquire_duration_seconds_total", "Total time spent acquiring connections in seconds"), counter,
				func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }},
			{poolDesc("db_pool_canceled_acquire_count_total", "Total number of canceled connection acquires"), counter,
				func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }},
			{poolDesc("db_pool_empty_acquire_count_total", "Total number of acquires that had to wait for a connection"), counter,
				func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }},
			{poolDesc("db_pool_new_connections_total", "Total number of new connections created"), counter,
				func(s *pgxpool.Stat) float64 { return float64(s.NewConnsCount()) }},
			{poolDesc("db_pool_max_lifetime_destroy_total", "Total connections destroyed due to max lifetime"), counter,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxLifetimeDestroyCount()) }},
			{poolDesc("db_pool_max_idle_destroy_total", "Total connections destroyed due to max idle time"), counter,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxIdleDestroyCount()) }},
		},
	}
}

func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.stats {
		ch <- s.desc
	}
}

func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	for _, s := range c.stats {
		ch <- prometheus.MustNewConstMetric(s.desc, s.typ, s.read(stat), c.service)
	}
}

// RegisterPoolMetrics registers a collector for the pool with the default
// Prometheus registry.
func RegisterPoolMetrics(pool *pgxpool.Pool, service string) {
	prometheus.MustRegister(NewPoolStatsCollector(pool, service))
}
