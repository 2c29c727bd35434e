// pkg/auth/manager.go

package auth

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/login"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/storage"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to passwords set through HashPassword.
const MinPasswordLength = 8

// UserStore looks up active users.
type UserStore interface {
	UserByEmail(ctx context.Context, email string) (*storage.User, error)
}

// Manager verifies operator credentials against stored bcrypt hashes.
type Manager struct {
	users UserStore
	log   *zap.Logger
}

func NewManager(users UserStore, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{users: users, log: log}
}

// Authenticate implements login.Authenticator. Unknown users and wrong
// passwords both return login.ErrInvalidCredentials; a manager without a
// user store returns login.ErrUnavailable.
func (m *Manager) Authenticate(ctx context.Context, creds login.Credentials) (*login.Session, error) {
	if m.users == nil {
		return nil, login.ErrUnavailable
	}
	email := strings.ToLower(strings.TrimSpace(creds.Identity))
	u, err := m.users.UserByEmail(ctx, email)
	if cerr.Is(err, storage.ErrNotFound) {
		m.log.Info("Login rejected", zap.String("identity", email), zap.String("reason", "unknown user"))
		return nil, login.ErrInvalidCredentials
	}
	if err != nil {
		return nil, cerr.Wrap(err, "look up user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Secret)); err != nil {
		m.log.Info("Login rejected", zap.String("identity", email), zap.String("reason", "bad password"))
		return nil, login.ErrInvalidCredentials
	}

	m.log.Info("Login accepted", zap.String("identity", email), zap.String("role", u.Role), zap.String("branch", u.Branch))
	return login.NewSession(u.Email, u.Name, u.Role, u.Branch), nil
}

// HashPassword validates and hashes a new password.
func HashPassword(password string) (string, error) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return "", cerr.Newf("password must be at least %d characters", MinPasswordLength)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", cerr.Wrap(err, "hash password")
	}
	return string(h), nil
}
