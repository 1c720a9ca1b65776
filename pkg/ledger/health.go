package ledger

import (
	"context"
	"time"
)

// HealthStatus reports connection-pool health, mirroring the teacher's
// database health probe.
type HealthStatus struct {
	Status          string
	ResponseTime    time.Duration
	OpenConnections int
	InUse           int
	Idle            int
	WaitCount       int64
	WaitDuration    time.Duration
	MaxOpenConns    int
}

// Health pings the pool and reports its stats.
func (s *Store) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	err := s.db.PingContext(ctx)
	elapsed := time.Since(start)

	status := "healthy"
	if err != nil {
		status = "unhealthy"
	}

	stats := s.db.Stats()
	hs := &HealthStatus{
		Status:          status,
		ResponseTime:    elapsed,
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
		MaxOpenConns:    stats.MaxOpenConns,
	}
	if err != nil {
		return hs, err
	}
	return hs, nil
}
