// pkg/surface/surface.go

package surface

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/appstate"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/login"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/scheduler"
	tea "github.com/charmbracelet/bubbletea"
	cerr "github.com/cockroachdb/errors"
	"golang.org/x/term"
)

// ErrNoTerminal means the process has no terminal to draw on.
var ErrNoTerminal = cerr.New("no interactive terminal")

// Surface is the main interactive screen.
type Surface struct {
	model model
	in    io.Reader
	out   io.Writer
}

// New builds the surface for sess. It fails without a session or when out
// is not a terminal.
func New(sess *login.Session, state *appstate.State, handles func() []scheduler.Handle, in io.Reader, out io.Writer) (*Surface, error) {
	if sess == nil {
		return nil, cerr.New("surface needs a logged-in session")
	}
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil, ErrNoTerminal
	}
	return &Surface{model: newModel(sess, state, handles), in: in, out: out}, nil
}

// Run shows the surface and runs its event loop until the operator quits
// or ctx ends.
func (s *Surface) Run(ctx context.Context) error {
	p := tea.NewProgram(s.model,
		tea.WithContext(ctx),
		tea.WithInput(s.in),
		tea.WithOutput(s.out),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	if err != nil && (ctx.Err() != nil || errors.Is(err, tea.ErrProgramKilled)) {
		return nil
	}
	return err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
