// pkg/health/monitor.go

package health

import (
	"context"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	"go.uber.org/zap"
)

// SchedulerName is the registry name of the polling member.
const SchedulerName = "health"

// Pinger is anything with a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSink receives one status line per check.
type StatusSink interface {
	SetStatus(subsystem, status string)
}

// Monitor polls the storage engine and publishes the result.
type Monitor struct {
	db   Pinger
	sink StatusSink
	log  *zap.Logger

	mu       sync.Mutex
	failures int
}

func NewMonitor(db Pinger, sink StatusSink, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{db: db, sink: sink, log: log}
}

// Check pings once. Consecutive failures are counted and logged at warn;
// a recovery is logged at info.
func (m *Monitor) Check(ctx context.Context) error {
	err := m.db.Ping(ctx)

	m.mu.Lock()
	prev := m.failures
	if err != nil {
		m.failures++
	} else {
		m.failures = 0
	}
	failures := m.failures
	m.mu.Unlock()

	switch {
	case err != nil:
		m.sink.SetStatus("database", "unreachable")
		m.log.Warn("Database health check failed", zap.Int("consecutive_failures", failures), zap.Error(err))
		return err
	case prev > 0:
		m.log.Info("Database reachable again", zap.Int("after_failures", prev))
	}
	m.sink.SetStatus("database", "ok")
	return nil
}

// Failures returns the current run of consecutive failed checks.
func (m *Monitor) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// Start registers the polling member, checking immediately and then every
// interval.
func (m *Monitor) Start(reg *scheduler.Registry, interval time.Duration) error {
	return reg.EveryNow(SchedulerName, interval, m.Check)
}
