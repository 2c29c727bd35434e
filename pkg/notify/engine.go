// pkg/notify/engine.go

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/appstate"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/storage"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Source supplies due events for one branch.
type Source interface {
	BirthdaysOn(ctx context.Context, branch string, day time.Time) ([]storage.Contact, error)
	DueReminders(ctx context.Context, branch string, now time.Time) ([]storage.Reminder, error)
	MarkReminderDone(ctx context.Context, id uint) error
}

// Sink receives raised notifications.
type Sink interface {
	Push(n appstate.Notification)
}

// Engine raises birthday and reminder alerts. A birthday is raised at most
// once per contact per day; a reminder is closed once raised.
type Engine struct {
	src  Source
	sink Sink
	log  *zap.Logger
	now  func() time.Time

	mu   sync.Mutex
	sent map[string]bool
}

func NewEngine(src Source, sink Sink, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{src: src, sink: sink, log: log, now: time.Now, sent: make(map[string]bool)}
}

// Fire raises everything due for branch and returns how many alerts went
// out. A failing source does not stop the other. Concurrent calls are
// serialized.
func (e *Engine) Fire(ctx context.Context, branch string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var result *multierror.Error
	raised := 0

	contacts, err := e.src.BirthdaysOn(ctx, branch, now)
	if err != nil {
		result = multierror.Append(result, err)
	}
	for _, c := range contacts {
		key := fmt.Sprintf("birthday:%d:%s", c.ID, now.Format("2006-01-02"))
		if e.sent[key] {
			continue
		}
		e.sent[key] = true
		e.sink.Push(appstate.Notification{
			Kind:  appstate.KindBirthday,
			Title: "Birthday today: " + c.Name,
		})
		raised++
	}

	reminders, err := e.src.DueReminders(ctx, branch, now)
	if err != nil {
		result = multierror.Append(result, err)
	}
	for _, r := range reminders {
		e.sink.Push(appstate.Notification{
			Kind:  appstate.KindReminder,
			Title: r.Title,
			Body:  "Due " + r.DueAt.Format("Mon 2 Jan 15:04"),
		})
		raised++
		if err := e.src.MarkReminderDone(ctx, r.ID); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if raised > 0 {
		e.log.Info("Notifications raised", zap.String("branch", branch), zap.Int("count", raised))
	}
	return raised, result.ErrorOrNil()
}
