package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResults_RecordPreservesCompletionOrder(t *testing.T) {
	r := NewResults()
	require.NoError(t, r.Record("subtask-1", "first"))
	require.NoError(t, r.Record("subtask-2", "second"))
	require.NoError(t, r.Record("subtask-3", "third"))

	assert.Equal(t, []string{"subtask-1", "subtask-2", "subtask-3"}, r.Keys())
	assert.Equal(t, 3, r.Len())

	out, ok := r.Get("subtask-2")
	assert.True(t, ok)
	assert.Equal(t, "second", out)
}

func TestResults_RecordRejectsDuplicateKey(t *testing.T) {
	r := NewResults()
	require.NoError(t, r.Record("subtask-1", "first"))

	err := r.Record("subtask-1", "overwrite")
	assert.Error(t, err)

	// The original output must survive the rejected write.
	out, _ := r.Get("subtask-1")
	assert.Equal(t, "first", out)
	assert.Equal(t, 1, r.Len())
}

func TestResults_CloneIsIndependent(t *testing.T) {
	r := NewResults()
	require.NoError(t, r.Record("subtask-1", "first"))

	clone := r.Clone()
	require.NoError(t, r.Record("subtask-2", "second"))

	assert.Equal(t, 1, clone.Len())
	_, ok := clone.Get("subtask-2")
	assert.False(t, ok)
}

func TestResults_KeysReturnsCopy(t *testing.T) {
	r := NewResults()
	require.NoError(t, r.Record("subtask-1", "first"))

	keys := r.Keys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"subtask-1"}, r.Keys())
}
