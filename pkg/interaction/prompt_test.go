package interaction

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRC(input string) (*agms_io.RuntimeContext, *bytes.Buffer) {
	rc := agms_io.NewContext(context.Background(), "test")
	rc.Log = zap.NewNop()
	out := &bytes.Buffer{}
	rc.In = strings.NewReader(input)
	rc.Out = out
	return rc, out
}

func TestPromptYesNo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		defaultYes bool
		want       bool
		wantErr    error
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "long no", input: "NO\n", defaultYes: true, want: false},
		{name: "empty takes default no", input: "\n", want: false},
		{name: "empty takes default yes", input: "\n", defaultYes: true, want: true},
		{name: "retries on garbage", input: "maybe\nyes\n", want: true},
		{name: "eof declines", input: "", wantErr: io.EOF},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rc, out := newRC(tt.input)
			got, err := PromptYesNo(rc, "Continue anyway?", tt.defaultYes)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Continue anyway? [")
		})
	}
}

func TestConsecutivePromptsShareInput(t *testing.T) {
	t.Parallel()

	rc, _ := newRC("alice\n\nhunter2")

	name, err := PromptInput(rc, "Name", "")
	require.NoError(t, err)
	branch, err := PromptInput(rc, "Branch", "main")
	require.NoError(t, err)
	secret, err := PromptSecret(rc, "Password")
	require.NoError(t, err)

	assert.Equal(t, "alice", name)
	assert.Equal(t, "main", branch)
	assert.Equal(t, "hunter2", secret)
	assert.False(t, IsInteractive(rc))
}
