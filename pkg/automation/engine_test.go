package automation

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/messaging"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore mimics the unique (branch, name) constraint.
type memStore struct {
	mu        sync.Mutex
	rules     []storage.Rule
	templates []storage.Template
}

func (m *memStore) Rules(_ context.Context, branch string) ([]storage.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Rule
	for _, r := range m.rules {
		if r.Branch == branch {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) EnsureRules(_ context.Context, rules []storage.Rule) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
outer:
	for _, r := range rules {
		for _, have := range m.rules {
			if have.Branch == r.Branch && have.Name == r.Name {
				continue outer
			}
		}
		m.rules = append(m.rules, r)
		n++
	}
	return n, nil
}

func (m *memStore) Template(_ context.Context, branch, name string) (*storage.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.Branch == branch && t.Name == name {
			t := t
			return &t, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) EnsureTemplates(_ context.Context, templates []storage.Template) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
outer:
	for _, t := range templates {
		for _, have := range m.templates {
			if have.Branch == t.Branch && have.Name == t.Name {
				continue outer
			}
		}
		m.templates = append(m.templates, t)
		n++
	}
	return n, nil
}

type countingSweeper struct{ n atomic.Int32 }

func (c *countingSweeper) Fire(context.Context, string) (int, error) {
	c.n.Add(1)
	return 0, nil
}

type captureSender struct {
	mu   sync.Mutex
	sent []messaging.Message
}

func (c *captureSender) Send(_ context.Context, m messaging.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, m)
	return nil
}

func TestInstallDefaultsIsIdempotent(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	e := NewEngine(store, nil, nil, nil, nil)

	rules, templates, err := e.InstallDefaults(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, len(DefaultRules("main")), rules)
	assert.Equal(t, len(DefaultTemplates("main")), templates)

	rules, templates, err = e.InstallDefaults(context.Background(), "main")
	require.NoError(t, err)
	assert.Zero(t, rules)
	assert.Zero(t, templates)
}

func TestLoadSchedulesEnabledValidRules(t *testing.T) {
	t.Parallel()

	store := &memStore{rules: []storage.Rule{
		{Branch: "main", Name: "a", Schedule: "*/5 * * * *", Action: ActionSweep, Enabled: true},
		{Branch: "main", Name: "b", Schedule: "not a schedule", Action: ActionSweep, Enabled: true},
		{Branch: "main", Name: "c", Schedule: "@daily", Action: ActionSweep, Enabled: false},
		{Branch: "north", Name: "d", Schedule: "@daily", Action: ActionSweep, Enabled: true},
	}}
	e := NewEngine(store, nil, nil, nil, nil)

	n, err := e.Load(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.Load(context.Background(), "main")
	require.NoError(t, err)
	assert.Zero(t, n, "already scheduled rules are not added twice")

	names := e.Scheduled()
	sort.Strings(names)
	assert.Equal(t, []string{"a"}, names)
}

func TestRunRule(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	sweeper := &countingSweeper{}
	sender := &captureSender{}
	e := NewEngine(store, sweeper, sender, nil, nil)
	_, _, err := e.InstallDefaults(context.Background(), "main")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, e.RunRule(ctx, storage.Rule{Branch: "main", Action: ActionSweep}))
	assert.Equal(t, int32(1), sweeper.n.Load())

	require.NoError(t, e.RunRule(ctx, storage.Rule{Branch: "main", Action: "message:birthday"}))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "birthday", sender.sent[0].Template)

	assert.Error(t, e.RunRule(ctx, storage.Rule{Branch: "main", Action: "message:missing"}))
	assert.Error(t, e.RunRule(ctx, storage.Rule{Branch: "main", Action: "reboot"}))

	bare := NewEngine(store, nil, nil, nil, nil)
	assert.Error(t, bare.RunRule(ctx, storage.Rule{Branch: "main", Action: ActionSweep}))
	assert.Error(t, bare.RunRule(ctx, storage.Rule{Branch: "main", Action: "message:birthday"}))
}

func TestStartRegistersMembers(t *testing.T) {
	t.Parallel()

	sweeper := &countingSweeper{}
	e := NewEngine(&memStore{}, sweeper, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	reg := scheduler.NewRegistry(ctx, nil, nil)
	require.NoError(t, e.Start(ctx, reg, 10*time.Millisecond, func() string { return "main" }))

	assert.Eventually(t, func() bool { return sweeper.n.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	_, ok := reg.Lookup(CronName)
	assert.True(t, ok)

	cancel()
	reg.Wait()
	for _, h := range reg.Handles() {
		assert.False(t, h.Running, h.Name)
	}
}
