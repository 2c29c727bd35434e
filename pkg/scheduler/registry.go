// pkg/scheduler/registry.go
//
// Registry of background supervisors. Each member owns its goroutine and
// ticker and runs until the registry context ends at process exit; members
// are never stopped individually.

package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Handle describes a registered member.
type Handle struct {
	Name     string
	Interval time.Duration
	Running  bool
}

// Guard is deferred at the top of every member goroutine so a panic is
// routed to the process crash boundary.
type Guard interface {
	Recover(source string)
}

// Task is one tick of work. A returned error is logged; the member keeps
// ticking.
type Task func(ctx context.Context) error

type member struct {
	handle Handle
	order  int
	stop   func()
}

type Registry struct {
	ctx   context.Context
	log   *zap.Logger
	guard Guard

	mu      sync.Mutex
	members map[string]*member
	wg      sync.WaitGroup
}

// NewRegistry binds members to ctx. guard may be nil.
func NewRegistry(ctx context.Context, log *zap.Logger, guard Guard) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{ctx: ctx, log: log, guard: guard, members: make(map[string]*member)}
}

// Context is the context members run under.
func (r *Registry) Context() context.Context { return r.ctx }

// Every starts a member running task once per interval, first after one
// full interval. Names are unique and intervals must be positive.
func (r *Registry) Every(name string, interval time.Duration, task Task) error {
	return r.start(name, interval, false, task)
}

// EveryNow is Every with an immediate first run.
func (r *Registry) EveryNow(name string, interval time.Duration, task Task) error {
	return r.start(name, interval, true, task)
}

// Track registers a member that drives its own timers, such as a cron
// engine or a file watcher. stop, if non-nil, runs once the registry
// context ends.
func (r *Registry) Track(name string, interval time.Duration, stop func()) error {
	m, err := r.register(name, interval)
	if err != nil {
		return err
	}
	m.stop = stop

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		<-r.ctx.Done()
		r.finish(m)
	}()
	return nil
}

// Spawn starts a member whose loop drives its own timers. loop must return
// once ctx is done; interval is the nominal cadence shown in Handles.
func (r *Registry) Spawn(name string, interval time.Duration, loop func(ctx context.Context)) error {
	if loop == nil {
		return cerr.Newf("scheduler %q has no loop", name)
	}
	m, err := r.register(name, interval)
	if err != nil {
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.finish(m)
		if r.guard != nil {
			defer r.guard.Recover("scheduler:" + m.handle.Name)
		}
		loop(r.ctx)
	}()
	return nil
}

func (r *Registry) start(name string, interval time.Duration, now bool, task Task) error {
	if task == nil {
		return cerr.Newf("scheduler %q has no task", name)
	}
	m, err := r.register(name, interval)
	if err != nil {
		return err
	}

	r.wg.Add(1)
	go r.loop(m, now, task)
	return nil
}

func (r *Registry) register(name string, interval time.Duration) (*member, error) {
	if name == "" {
		return nil, cerr.New("scheduler name is empty")
	}
	if interval <= 0 {
		return nil, cerr.Newf("scheduler %q: interval must be positive, got %s", name, interval)
	}
	if err := r.ctx.Err(); err != nil {
		return nil, cerr.Wrapf(err, "scheduler %q: registry already stopped", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.members[name]; dup {
		return nil, cerr.Newf("scheduler %q already started", name)
	}
	m := &member{handle: Handle{Name: name, Interval: interval, Running: true}, order: len(r.members)}
	r.members[name] = m
	r.log.Info("Background scheduler started", zap.String("scheduler", name), zap.Duration("interval", interval))
	return m, nil
}

func (r *Registry) loop(m *member, now bool, task Task) {
	defer r.wg.Done()
	defer r.finish(m)
	if r.guard != nil {
		defer r.guard.Recover("scheduler:" + m.handle.Name)
	}

	if now {
		r.tick(m, task)
	}
	ticker := time.NewTicker(m.handle.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.tick(m, task)
		}
	}
}

func (r *Registry) tick(m *member, task Task) {
	if err := task(r.ctx); err != nil && r.ctx.Err() == nil {
		r.log.Warn("Background task failed", zap.String("scheduler", m.handle.Name), zap.Error(err))
	}
}

func (r *Registry) finish(m *member) {
	r.mu.Lock()
	m.handle.Running = false
	stop := m.stop
	m.stop = nil
	r.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Handles returns a snapshot of every member in registration order.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	ms := make([]*member, 0, len(r.members))
	for _, m := range r.members {
		ms = append(ms, m)
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].order < ms[j].order })

	out := make([]Handle, len(ms))
	for i, m := range ms {
		out[i] = m.handle
	}
	return out
}

// Lookup returns the handle for name.
func (r *Registry) Lookup(name string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[name]
	if !ok {
		return Handle{}, false
	}
	return m.handle, true
}

// Wait blocks until every member has exited. Members exit only after the
// registry context is done.
func (r *Registry) Wait() {
	r.wg.Wait()
}
