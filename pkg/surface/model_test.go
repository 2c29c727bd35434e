package surface

import (
	"bytes"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/appstate"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/login"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelRendersDashboard(t *testing.T) {
	t.Parallel()

	state := appstate.New("main")
	state.SetStatus("database", "ok")
	state.SetStatus("cloud", "unreachable")
	state.Push(appstate.Notification{Kind: appstate.KindBirthday, Title: "Birthday today: Pi"})

	handles := func() []scheduler.Handle {
		return []scheduler.Handle{{Name: "health", Interval: time.Minute, Running: true}}
	}
	m := newModel(login.NewSession("a@agms.local", "A", "admin", "main"), state, handles)

	view := m.View()
	assert.Contains(t, view, "A (admin) - branch main")
	assert.Contains(t, view, "database")
	assert.Contains(t, view, "unreachable")
	assert.Contains(t, view, "health")
	assert.Contains(t, view, "Birthday today: Pi")
}

func TestModelUpdate(t *testing.T) {
	t.Parallel()

	state := appstate.New("main")
	m := newModel(login.NewSession("a@agms.local", "A", "admin", "main"), state, nil)

	next, cmd := m.Update(notificationMsg{Kind: appstate.KindReminder, Title: "Call supplier"})
	require.NotNil(t, cmd)
	assert.Contains(t, next.View(), "Call supplier")

	for i := 0; i < maxRecent+3; i++ {
		next, _ = next.Update(notificationMsg{Kind: appstate.KindSystem, Title: "n"})
	}
	assert.Len(t, next.(model).recent, maxRecent)

	state.SetStatus("database", "ok")
	next, cmd = next.Update(refreshMsg(time.Now()))
	require.NotNil(t, cmd)
	assert.Equal(t, "ok", next.(model).status["database"])

	next, cmd = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.View())
}

func TestNewRequiresSessionAndTerminal(t *testing.T) {
	t.Parallel()

	state := appstate.New("main")
	_, err := New(nil, state, nil, nil, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New(login.NewSession("a", "A", "admin", "main"), state, nil, nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrNoTerminal)
}
