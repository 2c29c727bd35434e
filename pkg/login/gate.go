// pkg/login/gate.go

package login

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var (
	// ErrCancelled is returned by a Challenger when the operator backs out.
	ErrCancelled = cerr.New("login cancelled by operator")
	// ErrInvalidCredentials is returned by an Authenticator for a wrong
	// identity or secret; the gate asks again.
	ErrInvalidCredentials = cerr.New("invalid credentials")
	// ErrUnavailable means no credential exchange is possible.
	ErrUnavailable = cerr.New("authentication unavailable")
	// ErrNoInput is a cancellation where the operator could not enter an
	// identity at all, such as end of input with no terminal attached.
	ErrNoInput = cerr.Mark(cerr.New("no credentials entered"), ErrCancelled)
)

// Credentials is one login attempt.
type Credentials struct {
	Identity string
	Secret   string
}

// Authenticator verifies credentials and returns the resulting session.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*Session, error)
}

// Challenger collects credentials from the operator. attempt starts at 1.
type Challenger interface {
	Challenge(rc *agms_io.RuntimeContext, attempt int) (Credentials, error)
}

// Gate blocks until a session exists or the operator cancels.
type Gate struct {
	Auth       Authenticator
	Challenger Challenger
	// Fallback is used when the exchange cannot produce an identity:
	// no authenticator or challenger, or ErrNoInput from the challenger.
	// It is set for non-production developer logins and nil otherwise.
	Fallback *Session
	// MaxAttempts bounds wrong-credential retries; zero means unlimited.
	MaxAttempts int
}

// Await returns a live session, or an error. Cancellation is reported as a
// login-cancelled error (exit 0); anything else is a failure of the gate.
// Await has no timeout; it returns early only when rc.Ctx ends.
func (g *Gate) Await(rc *agms_io.RuntimeContext) (*Session, error) {
	if g.Auth == nil || g.Challenger == nil {
		if g.Fallback != nil {
			return g.fallback(rc), nil
		}
		return nil, ErrUnavailable
	}

	for attempt := 1; g.MaxAttempts <= 0 || attempt <= g.MaxAttempts; attempt++ {
		creds, err := g.challenge(rc, attempt)
		if g.Fallback != nil && cerr.Is(err, ErrNoInput) {
			return g.fallback(rc), nil
		}
		if cerr.Is(err, ErrCancelled) {
			rc.Log.Info("Login cancelled")
			return nil, agms_err.NewLoginCancelled(err)
		}
		if err != nil {
			return nil, err
		}

		session, err := g.Auth.Authenticate(rc.Ctx, creds)
		if cerr.Is(err, ErrInvalidCredentials) {
			rc.Log.Warn("Login rejected", zap.String("identity", creds.Identity), zap.Int("attempt", attempt))
			rc.Log.Info("terminal prompt: Invalid email or password, try again.")
			continue
		}
		if err != nil {
			return nil, cerr.Wrap(err, "authenticate")
		}
		if session == nil {
			return nil, cerr.AssertionFailedf("authenticator returned neither session nor error")
		}

		rc.Log.Info("Login succeeded",
			zap.String("identity", session.Identity),
			zap.String("role", session.Role),
			zap.String("branch", session.Branch))
		return session, nil
	}

	return nil, agms_err.NewLoginCancelled(cerr.Newf("gave up after %d failed attempts", g.MaxAttempts))
}

func (g *Gate) fallback(rc *agms_io.RuntimeContext) *Session {
	rc.Log.Warn("Using developer login", zap.String("identity", g.Fallback.Identity))
	return g.Fallback
}

// challenge runs the prompt off the caller's goroutine so a cancelled
// context unblocks the gate even while the prompt waits on input.
func (g *Gate) challenge(rc *agms_io.RuntimeContext, attempt int) (Credentials, error) {
	type result struct {
		creds Credentials
		err   error
	}
	done := make(chan result, 1)
	go func() {
		c, err := g.Challenger.Challenge(rc, attempt)
		done <- result{c, err}
	}()

	select {
	case r := <-done:
		return r.creds, r.err
	case <-rc.Ctx.Done():
		return Credentials{}, cerr.Wrap(context.Cause(rc.Ctx), "login interrupted")
	}
}
