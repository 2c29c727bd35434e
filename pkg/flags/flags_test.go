package flags

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource map[string]string

func (m mapSource) Settings(context.Context, string) (map[string]string, error) {
	if m == nil {
		return nil, errors.New("db down")
	}
	return m, nil
}

func TestFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings map[string]string
		feature  string
		want     bool
	}{
		{name: "absent", settings: map[string]string{}, feature: Messaging, want: true},
		{name: "on", settings: map[string]string{"feature.messaging": "true"}, feature: Messaging, want: true},
		{name: "off", settings: map[string]string{"feature.messaging": "false"}, feature: Messaging, want: false},
		{name: "zero", settings: map[string]string{"feature.automation": "0"}, feature: Automation, want: false},
		{name: "garbage", settings: map[string]string{"feature.cloud_sync": "maybe"}, feature: CloudSync, want: true},
		{name: "unrelated key", settings: map[string]string{"messaging": "false"}, feature: Messaging, want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := Load(context.Background(), mapSource(tt.settings), "main")
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Enabled(tt.feature))
		})
	}
}

func TestRequireAndNil(t *testing.T) {
	t.Parallel()

	var none *Flags
	assert.NoError(t, none.Require(Automation))
	assert.Empty(t, none.Disabled())

	f := FromSettings(map[string]string{"feature.automation": "false", "feature.messaging": "off"})
	err := f.Require(Automation)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Equal(t, []string{"automation"}, f.Disabled())

	_, err = Load(context.Background(), mapSource(nil), "main")
	assert.Error(t, err)
}
