// pkg/interaction/prompt.go

package interaction

import (
	"fmt"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// PromptYesNo asks a yes/no question. An empty answer selects defaultYes.
// Unrecognized answers are asked again; end of input is returned as an error
// and callers treat it as "no".
func PromptYesNo(rc *agms_io.RuntimeContext, question string, defaultYes bool) (bool, error) {
	hint := DefaultNoPrompt
	if defaultYes {
		hint = DefaultYesPrompt
	}

	for {
		answer, err := ReadLine(rc, fmt.Sprintf("%s [%s]: ", question, hint))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return defaultYes, nil
		case YesShort, YesLong:
			rc.Log.Debug("User confirmed", zap.String("question", question))
			return true, nil
		case NoShort, NoLong:
			rc.Log.Debug("User declined", zap.String("question", question))
			return false, nil
		}
		_, _ = fmt.Fprintln(rc.Out, "Please answer y or n.")
	}
}

// PromptInput reads a line, returning defaultVal for an empty answer.
func PromptInput(rc *agms_io.RuntimeContext, label, defaultVal string) (string, error) {
	prompt := label + ": "
	if defaultVal != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, defaultVal)
	}
	value, err := ReadLine(rc, prompt)
	if err != nil {
		return "", err
	}
	if value == "" {
		return defaultVal, nil
	}
	return value, nil
}

// PromptSecret asks for a hidden input. On a terminal echo is disabled;
// otherwise a plain line is read so piped input still works.
func PromptSecret(rc *agms_io.RuntimeContext, label string) (string, error) {
	f, ok := rc.In.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return ReadLine(rc, label+": ")
	}

	_, _ = fmt.Fprint(rc.Out, label+": ")
	secret, err := term.ReadPassword(int(f.Fd()))
	_, _ = fmt.Fprintln(rc.Out)
	if err != nil {
		rc.Log.Error("Failed to read secret input", zap.Error(err))
		return "", err
	}
	value := strings.TrimSpace(string(secret))
	if value == "" {
		rc.Log.Warn("No input received for secret", zap.String("prompt", label))
	}
	return value, nil
}
