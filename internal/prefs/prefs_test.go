package prefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	initial, err := st.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Preferences{}, initial, "unknown user gets defaults")

	want := Preferences{SidebarCollapsed: true, ActiveModule: "crm"}
	require.NoError(t, st.Set(ctx, "u1", want))

	got, err := st.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMemoryStoreIsolatesUsers(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "u1", Preferences{SidebarCollapsed: true}))

	other, err := st.Get(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, other.SidebarCollapsed)
}

func TestMemoryStoreOverwrite(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "u1", Preferences{SidebarCollapsed: true, ActiveModule: "crm"}))
	require.NoError(t, st.Set(ctx, "u1", Preferences{SidebarCollapsed: false}))

	got, err := st.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.SidebarCollapsed)
	assert.Empty(t, got.ActiveModule)
}
