// pkg/surface/model.go

package surface

import (
	"fmt"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/appstate"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/login"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxRecent = 8

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type notificationMsg appstate.Notification

type refreshMsg time.Time

// model is the dashboard shown after login.
type model struct {
	session *login.Session
	state   *appstate.State
	handles func() []scheduler.Handle
	notes   <-chan appstate.Notification
	refresh time.Duration

	recent   []appstate.Notification
	status   map[string]string
	members  []scheduler.Handle
	quitting bool
}

func newModel(sess *login.Session, state *appstate.State, handles func() []scheduler.Handle) model {
	m := model{
		session: sess,
		state:   state,
		handles: handles,
		notes:   state.Subscribe(32),
		refresh: time.Second,
	}
	m.recent = lastN(state.Notifications(), maxRecent)
	m.snapshot()
	return m
}

func (m *model) snapshot() {
	m.status = m.state.Status()
	if m.handles != nil {
		m.members = m.handles()
	}
}

func (m model) waitForNotification() tea.Cmd {
	return func() tea.Msg {
		n, ok := <-m.notes
		if !ok {
			return nil
		}
		return notificationMsg(n)
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForNotification(), m.tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case notificationMsg:
		m.recent = lastN(append(m.recent, appstate.Notification(msg)), maxRecent)
		return m, m.waitForNotification()
	case refreshMsg:
		m.snapshot()
		return m, m.tick()
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	who := "not logged in"
	if m.session != nil {
		who = fmt.Sprintf("%s (%s) - branch %s", m.session.Name, m.session.Role, m.session.Branch)
	}
	b.WriteString(titleStyle.Render("AGMS Enterprise") + "  " + labelStyle.Render(who) + "\n\n")

	b.WriteString(labelStyle.Render("Subsystems") + "\n")
	if len(m.status) == 0 {
		b.WriteString("  (no status yet)\n")
	}
	for _, k := range sortedKeys(m.status) {
		v := m.status[k]
		style := okStyle
		if v != "ok" {
			style = badStyle
		}
		b.WriteString(fmt.Sprintf("  %-12s %s\n", k, style.Render(v)))
	}

	b.WriteString("\n" + labelStyle.Render("Background") + "\n")
	for _, h := range m.members {
		state := okStyle.Render("running")
		if !h.Running {
			state = badStyle.Render("stopped")
		}
		b.WriteString(fmt.Sprintf("  %-18s every %-8s %s\n", h.Name, h.Interval, state))
	}

	b.WriteString("\n" + labelStyle.Render("Notifications") + "\n")
	if len(m.recent) == 0 {
		b.WriteString("  nothing due\n")
	}
	for _, n := range m.recent {
		line := fmt.Sprintf("  %s [%s] %s", n.Created.Format("15:04"), n.Kind, n.Title)
		if n.Body != "" {
			line += labelStyle.Render(" - " + n.Body)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + labelStyle.Render("q to quit"))
	return boxStyle.Render(b.String()) + "\n"
}

func lastN(ns []appstate.Notification, n int) []appstate.Notification {
	if len(ns) > n {
		ns = ns[len(ns)-n:]
	}
	return append([]appstate.Notification(nil), ns...)
}
