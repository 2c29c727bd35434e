package login

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAuth struct {
	users map[string]*Session
	err   error
	calls int
}

func (f *fakeAuth) Authenticate(_ context.Context, c Credentials) (*Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.users[c.Identity+":"+c.Secret]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return s, nil
}

type scripted struct {
	answers []Credentials
	errs    []error
	block   bool
}

func (s *scripted) Challenge(rc *agms_io.RuntimeContext, attempt int) (Credentials, error) {
	if s.block {
		<-rc.Ctx.Done()
		return Credentials{}, context.Cause(rc.Ctx)
	}
	i := attempt - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return Credentials{}, s.errs[i]
	}
	if i >= len(s.answers) {
		return Credentials{}, ErrCancelled
	}
	return s.answers[i], nil
}

func newRC(input string) *agms_io.RuntimeContext {
	rc := agms_io.NewContext(context.Background(), "test")
	rc.Log = zap.NewNop()
	rc.In = strings.NewReader(input)
	rc.Out = &bytes.Buffer{}
	return rc
}

func TestAwaitSuccess(t *testing.T) {
	t.Parallel()

	auth := &fakeAuth{users: map[string]*Session{"A:pw": {Identity: "A", Role: "admin", Branch: "main"}}}
	g := &Gate{Auth: auth, Challenger: &scripted{answers: []Credentials{{"A", "wrong"}, {"A", "pw"}}}}

	s, err := g.Await(newRC(""))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "A", s.Identity)
	assert.Equal(t, "admin", s.Role)
	assert.Equal(t, 2, auth.calls)
}

func TestAwaitCancelled(t *testing.T) {
	t.Parallel()

	g := &Gate{Auth: &fakeAuth{}, Challenger: &scripted{errs: []error{ErrCancelled}}}

	s, err := g.Await(newRC(""))
	assert.Nil(t, s)
	require.Error(t, err)
	assert.True(t, agms_err.IsCategory(err, agms_err.CategoryLoginCancelled))
	assert.Equal(t, agms_err.ExitOK, agms_err.GetExitCode(err))
}

func TestAwaitMaxAttempts(t *testing.T) {
	t.Parallel()

	g := &Gate{
		Auth:        &fakeAuth{},
		Challenger:  &scripted{answers: []Credentials{{"a", "1"}, {"a", "2"}, {"a", "3"}}},
		MaxAttempts: 2,
	}
	s, err := g.Await(newRC(""))
	assert.Nil(t, s)
	assert.True(t, agms_err.IsCategory(err, agms_err.CategoryLoginCancelled))
}

func TestAwaitAuthBackendFailure(t *testing.T) {
	t.Parallel()

	g := &Gate{Auth: &fakeAuth{err: errors.New("db down")}, Challenger: &scripted{answers: []Credentials{{"a", "b"}}}}
	s, err := g.Await(newRC(""))
	assert.Nil(t, s)
	require.Error(t, err)
	assert.False(t, agms_err.IsCategory(err, agms_err.CategoryLoginCancelled))
	assert.Contains(t, err.Error(), "db down")
}

func TestAwaitFallback(t *testing.T) {
	t.Parallel()

	dev := DevSession("main")
	s, err := (&Gate{Fallback: dev}).Await(newRC(""))
	require.NoError(t, err)
	assert.Same(t, dev, s)

	s, err = (&Gate{}).Await(newRC(""))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAwaitFallbackWhenNothingEntered(t *testing.T) {
	t.Parallel()

	dev := DevSession("main")
	tests := []struct {
		name     string
		fallback *Session
		input    string
		wantDev  bool
	}{
		{name: "end of input uses developer login", fallback: dev, input: "", wantDev: true},
		{name: "typed cancel still cancels", fallback: dev, input: "cancel\n"},
		{name: "end of input without fallback cancels", input: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			auth := &fakeAuth{}
			g := &Gate{Auth: auth, Challenger: TerminalChallenger{}, Fallback: tt.fallback}
			s, err := g.Await(newRC(tt.input))
			assert.Zero(t, auth.calls)
			if tt.wantDev {
				require.NoError(t, err)
				assert.Same(t, dev, s)
				return
			}
			assert.Nil(t, s)
			assert.True(t, agms_err.IsCategory(err, agms_err.CategoryLoginCancelled))
		})
	}
}

func TestAwaitRetriesWithoutLimit(t *testing.T) {
	t.Parallel()

	var answers []Credentials
	for i := 0; i < 12; i++ {
		answers = append(answers, Credentials{"A", "wrong"})
	}
	answers = append(answers, Credentials{"A", "pw"})
	auth := &fakeAuth{users: map[string]*Session{"A:pw": {Identity: "A"}}}

	s, err := (&Gate{Auth: auth, Challenger: &scripted{answers: answers}}).Await(newRC(""))
	require.NoError(t, err)
	assert.Equal(t, "A", s.Identity)
	assert.Equal(t, 13, auth.calls)
}

func TestAwaitUnblocksOnContextEnd(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancelCause(context.Background())
	rc := newRC("").WithContext(ctx)
	g := &Gate{Auth: &fakeAuth{}, Challenger: &scripted{block: true}}

	cancel(agms_err.ErrInterrupted)
	s, err := g.Await(rc)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, agms_err.ErrInterrupted)
}

func TestTerminalChallenger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Credentials
		wantErr error
	}{
		{name: "credentials", input: "a@b.c\nsecret\n", want: Credentials{"a@b.c", "secret"}},
		{name: "eof", input: "", wantErr: ErrNoInput},
		{name: "typed cancel", input: "cancel\n", wantErr: ErrCancelled},
		{name: "blank email", input: "\n", wantErr: ErrCancelled},
		{name: "eof at password", input: "a@b.c\n", wantErr: ErrCancelled},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := TerminalChallenger{}.Challenge(newRC(tt.input), 1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
