package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFsm_NodeExists(t *testing.T) {
	machine := New(1, []Transition[int, string]{
		{"a", 1, 2},
	})

	assert.Equal(t, machine.NodeExists(1), true)
	assert.Equal(t, machine.NodeExists(2), true)
	assert.Equal(t, machine.NodeExists(3), false)
}

func TestFsm_NewInstance(t *testing.T) {
	machine := New(1, []Transition[int, string]{
		{"a", 1, 2},
	})

	i1 := machine.NewInstance()
	assert.Equal(t, i1.Current(), 1)

	i2 := machine.NewInstance(2)
	assert.Equal(t, i2.Current(), 2)
}

func TestFsm_InvalidInitial(t *testing.T) {
	assert.Panics(t, func() {
		New(5, []Transition[int, string]{
			{"a", 1, 2},
		})
	})
}

func TestFsmInstance_Evaluate(t *testing.T) {
	machine := New("idle", []Transition[string, string]{
		{"start", "idle", "running"},
		{"stop", "running", "idle"},
	})
	i := machine.NewInstance()

	state, err := i.Evaluate("start")
	require.NoError(t, err)
	assert.Equal(t, "running", state)

	state, err = i.Evaluate("start")
	var terr *TransitionError
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, "running", state)

	state, err = i.Evaluate("stop")
	require.NoError(t, err)
	assert.Equal(t, "idle", state)
	assert.Equal(t, "idle", i.Current())
}
