// pkg/appstate/state.go

package appstate

import (
	"sort"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/login"
)

// Kind groups notifications on the interactive surface.
type Kind string

const (
	KindBirthday Kind = "birthday"
	KindReminder Kind = "reminder"
	KindUpdate   Kind = "update"
	KindSystem   Kind = "system"
)

type Notification struct {
	Kind    Kind
	Title   string
	Body    string
	Created time.Time
}

// State is the shared application state. Every method is safe for
// concurrent use by background schedulers and the event loop.
type State struct {
	mu            sync.RWMutex
	branch        string
	session       *login.Session
	status        map[string]string
	notifications []Notification
	subscribers   []chan Notification
	now           func() time.Time
}

// New returns an empty state for branch.
func New(branch string) *State {
	return &State{branch: branch, status: make(map[string]string), now: time.Now}
}

func (s *State) Branch() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.branch
}

// SetSession stores the logged-in operator and switches to its branch.
func (s *State) SetSession(sess *login.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
	if sess != nil && sess.Branch != "" {
		s.branch = sess.Branch
	}
}

func (s *State) Session() *login.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// SetStatus records a subsystem status line such as "database: ok".
func (s *State) SetStatus(subsystem, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[subsystem] = status
}

// Status returns a copy of every status line.
func (s *State) Status() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.status))
	for k, v := range s.status {
		out[k] = v
	}
	return out
}

// StatusKeys returns subsystem names in sorted order.
func (s *State) StatusKeys() []string {
	st := s.Status()
	keys := make([]string, 0, len(st))
	for k := range st {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Push records n and offers it to every subscriber. Slow subscribers miss
// notifications rather than block the caller.
func (s *State) Push(n Notification) {
	s.mu.Lock()
	if n.Created.IsZero() {
		n.Created = s.now()
	}
	s.notifications = append(s.notifications, n)
	subs := append([]chan Notification(nil), s.subscribers...)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Notifications returns every notification pushed so far, oldest first.
func (s *State) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.notifications...)
}

// Subscribe returns a buffered channel receiving future notifications.
func (s *State) Subscribe(buffer int) <-chan Notification {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Notification, buffer)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}
