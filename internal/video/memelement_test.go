package video

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpHookSupersedesHistory(t *testing.T) {
	m := NewMemoryElement()

	var mu sync.Mutex
	var got []Op
	m.SetOnOp(func(op Op) {
		mu.Lock()
		got = append(got, op)
		mu.Unlock()
	})

	m.MarkReady(120)
	require.NoError(t, m.Play())
	m.SetCurrentTime(12)
	m.SetVolume(0.5)
	m.Pause()

	mu.Lock()
	require.Len(t, got, 4)
	assert.Equal(t, OpPlay, got[0].Kind)
	assert.Equal(t, OpSeek, got[1].Kind)
	assert.Equal(t, OpVolume, got[2].Kind)
	assert.Equal(t, OpPause, got[3].Kind)
	mu.Unlock()

	assert.Empty(t, m.Ops(), "a consumed op must not pile up in the history")
}

func TestOpsKeptWithoutHook(t *testing.T) {
	m := NewMemoryElement()

	require.NoError(t, m.Play())
	m.SetCurrentTime(3)

	ops := m.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, OpPlay, ops[0].Kind)
	assert.Equal(t, OpSeek, ops[1].Kind)
}
