// pkg/crash/dialog.go

package crash

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Dialog shows a blocking operator notice. Implementations must not panic.
type Dialog interface {
	Show(title, message string) error
}

// TerminalDialog renders the notice as a bordered box.
type TerminalDialog struct {
	Out io.Writer
}

var dialogStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("9")).
	Padding(0, 2)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

func (d TerminalDialog) Show(title, message string) error {
	_, err := fmt.Fprintln(d.Out, dialogStyle.Render(titleStyle.Render(title)+"\n\n"+message))
	return err
}

// NewTerminalDialog returns a dialog on f when f is an interactive
// terminal, and nil when there is no display context.
func NewTerminalDialog(f *os.File) Dialog {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return TerminalDialog{Out: f}
}
