// pkg/login/session.go

package login

import (
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	"github.com/google/uuid"
)

// Session is the authenticated operator. A nil *Session means nobody is
// logged in.
type Session struct {
	ID       string
	Identity string
	Name     string
	Role     string
	Branch   string
	IssuedAt time.Time
}

// NewSession stamps a fresh session id.
func NewSession(identity, name, role, branch string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Identity: identity,
		Name:     name,
		Role:     role,
		Branch:   branch,
		IssuedAt: time.Now(),
	}
}

// DevSession is the deterministic identity used when developer login is
// enabled and no credential exchange is possible.
func DevSession(branch string) *Session {
	return &Session{
		ID:       "dev-session",
		Identity: shared.DefaultAdminEmail,
		Name:     shared.DefaultAdminName,
		Role:     shared.DefaultAdminRole,
		Branch:   branch,
		IssuedAt: time.Now(),
	}
}
