// pkg/interaction/reader.go

package interaction

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// ReadLine prompts with label on rc.Out and returns one trimmed line from
// rc.In. Input is consumed a byte at a time so consecutive prompts sharing
// a reader never lose buffered lines. io.EOF is returned when input ends
// before any character was read.
func ReadLine(rc *agms_io.RuntimeContext, label string) (string, error) {
	rc.Log.Debug("Prompting user for input", zap.String("label", label))
	_, _ = fmt.Fprint(rc.Out, label)

	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := rc.In.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if err == io.EOF {
			if sb.Len() == 0 {
				return "", io.EOF
			}
			break
		}
		if err != nil {
			rc.Log.Error("Failed to read user input", zap.Error(err))
			return "", err
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// IsInteractive reports whether rc.In is an attached terminal.
func IsInteractive(rc *agms_io.RuntimeContext) bool {
	f, ok := rc.In.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
