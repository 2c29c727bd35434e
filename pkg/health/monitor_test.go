package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type scriptedPinger struct {
	results []error
	calls   atomic.Int32
}

func (p *scriptedPinger) Ping(context.Context) error {
	i := int(p.calls.Add(1)) - 1
	if i < len(p.results) {
		return p.results[i]
	}
	return nil
}

type sink struct {
	mu     sync.Mutex
	status map[string]string
}

func (s *sink) SetStatus(k, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		s.status = map[string]string{}
	}
	s.status[k] = v
}

func (s *sink) get(k string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[k]
}

func TestCheckCountsConsecutiveFailures(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")
	p := &scriptedPinger{results: []error{down, down, nil}}
	s := &sink{}
	m := NewMonitor(p, s, zaptest.NewLogger(t))

	assert.Error(t, m.Check(context.Background()))
	assert.Error(t, m.Check(context.Background()))
	assert.Equal(t, 2, m.Failures())
	assert.Equal(t, "unreachable", s.get("database"))

	require.NoError(t, m.Check(context.Background()))
	assert.Zero(t, m.Failures())
	assert.Equal(t, "ok", s.get("database"))
}

func TestStartChecksImmediately(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := scheduler.NewRegistry(ctx, zaptest.NewLogger(t), nil)

	p := &scriptedPinger{}
	m := NewMonitor(p, &sink{}, nil)
	require.NoError(t, m.Start(reg, time.Hour))

	assert.Eventually(t, func() bool { return p.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	h, ok := reg.Lookup(SchedulerName)
	require.True(t, ok)
	assert.Equal(t, time.Hour, h.Interval)

	cancel()
	reg.Wait()
}
