// pkg/automation/engine.go
//
// Automation runs per-branch rules on cron schedules and a fixed-interval
// sweep for due reminders and birthdays. Every job runs under the crash
// guard; a failing job is logged and retried at its next fire time.

package automation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/messaging"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/storage"
	cerr "github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Registry names of the automation members.
const (
	CronName          = "automation"
	AutoSchedulerName = "auto-scheduler"
)

// Store holds rules and templates.
type Store interface {
	Rules(ctx context.Context, branch string) ([]storage.Rule, error)
	EnsureRules(ctx context.Context, rules []storage.Rule) (int, error)
	Template(ctx context.Context, branch, name string) (*storage.Template, error)
	EnsureTemplates(ctx context.Context, templates []storage.Template) (int, error)
}

// Sweeper raises due reminders and birthdays.
type Sweeper interface {
	Fire(ctx context.Context, branch string) (int, error)
}

// Sender delivers outbound messages.
type Sender interface {
	Send(ctx context.Context, msg messaging.Message) error
}

type Engine struct {
	store   Store
	sweeper Sweeper
	sender  Sender
	guard   scheduler.Guard
	log     *zap.Logger

	cron *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID
}

// NewEngine wires the engine. sweeper, sender and guard may be nil; rules
// needing a missing collaborator are skipped when they fire.
func NewEngine(store Store, sweeper Sweeper, sender Sender, guard scheduler.Guard, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:   store,
		sweeper: sweeper,
		sender:  sender,
		guard:   guard,
		log:     log,
		cron:    cron.New(),
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

// InstallDefaults adds the default rules and templates of branch that do
// not exist yet. Running it again inserts nothing.
func (e *Engine) InstallDefaults(ctx context.Context, branch string) (rules, templates int, err error) {
	if rules, err = e.store.EnsureRules(ctx, DefaultRules(branch)); err != nil {
		return 0, 0, err
	}
	if templates, err = e.store.EnsureTemplates(ctx, DefaultTemplates(branch)); err != nil {
		return rules, 0, err
	}
	e.log.Info("Automation defaults installed", zap.String("branch", branch),
		zap.Int("new_rules", rules), zap.Int("new_templates", templates))
	return rules, templates, nil
}

// Load schedules every enabled rule of branch. Rules with an invalid
// schedule are logged and skipped. It returns the number scheduled.
func (e *Engine) Load(ctx context.Context, branch string) (int, error) {
	rules, err := e.store.Rules(ctx, branch)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	loaded := 0
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if _, dup := e.entries[r.Name]; dup {
			continue
		}
		sched, err := cron.ParseStandard(r.Schedule)
		if err != nil {
			e.log.Warn("Skipping rule with invalid schedule", zap.String("rule", r.Name), zap.String("schedule", r.Schedule), zap.Error(err))
			continue
		}
		rule := r
		e.entries[r.Name] = e.cron.Schedule(sched, cron.FuncJob(func() { e.fire(rule) }))
		loaded++
	}
	e.log.Info("Automation rules loaded", zap.String("branch", branch), zap.Int("scheduled", loaded))
	return loaded, nil
}

func (e *Engine) fire(rule storage.Rule) {
	if e.guard != nil {
		defer e.guard.Recover("automation:" + rule.Name)
	}
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if err := e.RunRule(ctx, rule); err != nil {
		e.log.Warn("Automation rule failed", zap.String("rule", rule.Name), zap.Error(err))
	}
}

// RunRule executes one rule now.
func (e *Engine) RunRule(ctx context.Context, rule storage.Rule) error {
	switch {
	case rule.Action == ActionSweep:
		if e.sweeper == nil {
			return cerr.New("notifications unavailable")
		}
		_, err := e.sweeper.Fire(ctx, rule.Branch)
		return err

	case strings.HasPrefix(rule.Action, ActionMessagePrefix):
		if e.sender == nil {
			return cerr.New("messaging unavailable")
		}
		name := strings.TrimPrefix(rule.Action, ActionMessagePrefix)
		tpl, err := e.store.Template(ctx, rule.Branch, name)
		if err != nil {
			return cerr.Wrapf(err, "template %q", name)
		}
		return e.sender.Send(ctx, messaging.Message{Branch: rule.Branch, Template: tpl.Name, Body: tpl.Body})

	default:
		return cerr.Newf("unknown action %q", rule.Action)
	}
}

// Scheduled returns the names of scheduled rules.
func (e *Engine) Scheduled() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.entries))
	for name := range e.entries {
		out = append(out, name)
	}
	return out
}

// Start launches the cron timers and the sweep member. Jobs run with ctx,
// which should be the registry context.
func (e *Engine) Start(ctx context.Context, reg *scheduler.Registry, sweepInterval time.Duration, branch func() string) error {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()

	if err := reg.Track(CronName, time.Minute, func() { <-e.cron.Stop().Done() }); err != nil {
		return err
	}
	e.cron.Start()

	if e.sweeper == nil {
		return nil
	}
	return reg.Every(AutoSchedulerName, sweepInterval, func(ctx context.Context) error {
		_, err := e.sweeper.Fire(ctx, branch())
		return err
	})
}
