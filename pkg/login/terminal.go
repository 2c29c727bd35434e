// pkg/login/terminal.go

package login

import (
	"errors"
	"io"
	"strings"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/interaction"
)

// TerminalChallenger prompts for email and password on the console. End of
// input at the email prompt reports ErrNoInput; a blank email, typing
// "cancel", or end of input at the password prompt cancels the login.
type TerminalChallenger struct{}

func (TerminalChallenger) Challenge(rc *agms_io.RuntimeContext, attempt int) (Credentials, error) {
	if attempt == 1 {
		rc.Log.Info("terminal prompt: Sign in to continue (type 'cancel' to quit).")
	}

	identity, err := interaction.PromptInput(rc, "Email", "")
	if errors.Is(err, io.EOF) {
		return Credentials{}, ErrNoInput
	}
	if err != nil {
		return Credentials{}, err
	}
	identity = strings.TrimSpace(identity)
	if identity == "" || strings.EqualFold(identity, "cancel") {
		return Credentials{}, ErrCancelled
	}

	secret, err := interaction.PromptSecret(rc, "Password")
	if errors.Is(err, io.EOF) {
		return Credentials{}, ErrCancelled
	}
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Identity: identity, Secret: secret}, nil
}
