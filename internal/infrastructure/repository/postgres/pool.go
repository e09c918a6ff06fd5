package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	poolMaxConns          = 10
	poolMinConns          = 1
	poolMaxConnLifetime   = time.Hour
	poolMaxConnIdleTime   = 30 * time.Minute
	poolHealthCheckPeriod = time.Minute

	connectAttempts = 3
	connectBackoff  = time.Second
)

var (
	poolAcquiredConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "configd_postgres_pool_acquired_conns",
		Help: "Connections currently acquired from the pool",
	})
	poolIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "configd_postgres_pool_idle_conns",
		Help: "Idle connections held by the pool",
	})
	poolTotalConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "configd_postgres_pool_total_conns",
		Help: "Total connections held by the pool",
	})
)

// NewPool parses url into a tuned pgxpool and verifies connectivity with a
// few backed-off ping attempts, so a server racing its database at startup
// settles instead of crashing.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}

	poolConfig.MaxConns = poolMaxConns
	poolConfig.MinConns = poolMinConns
	poolConfig.MaxConnLifetime = poolMaxConnLifetime
	poolConfig.MaxConnIdleTime = poolMaxConnIdleTime
	poolConfig.HealthCheckPeriod = poolHealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	backoff := connectBackoff
	for attempt := 1; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if attempt >= connectAttempts {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database after %d attempts: %w", attempt, err)
		}
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	go observePool(ctx, pool)

	return pool, nil
}

// observePool samples pool statistics into the Prometheus gauges until ctx
// is cancelled; closing the pool does not stop it.
func observePool(ctx context.Context, pool *pgxpool.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := pool.Stat()
			poolAcquiredConns.Set(float64(stats.AcquiredConns()))
			poolIdleConns.Set(float64(stats.IdleConns()))
			poolTotalConns.Set(float64(stats.TotalConns()))
		}
	}
}
