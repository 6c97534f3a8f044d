package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginAndGet(t *testing.T) {
	store := NewStore(10 * time.Minute)

	w := store.Begin(1, WizardCreateTask)
	require.NotNil(t, w.CreateTask)
	assert.Nil(t, w.CreateCode)

	got, ok := store.Get(1)
	require.True(t, ok)
	assert.Same(t, w, got)

	_, ok = store.Get(2)
	assert.False(t, ok)
}

func TestBeginReplacesInProgressWizard(t *testing.T) {
	store := NewStore(10 * time.Minute)

	store.Begin(1, WizardCreateTask)
	w := store.Begin(1, WizardCreateCode)

	got, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, WizardCreateCode, got.Kind)
	require.NotNil(t, got.CreateCode)
	assert.Same(t, w, got)
}

func TestGetDropsExpiredWizard(t *testing.T) {
	store := NewStore(10 * time.Minute)

	w := store.Begin(1, WizardCreateTask)
	w.StartedAt = time.Now().Add(-11 * time.Minute)

	_, ok := store.Get(1)
	assert.False(t, ok)
}

func TestEnd(t *testing.T) {
	store := NewStore(10 * time.Minute)

	store.Begin(1, WizardCreateCode)
	store.End(1)

	_, ok := store.Get(1)
	assert.False(t, ok)

	// Ending an absent wizard is harmless.
	store.End(1)
}
