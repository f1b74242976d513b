package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func userTurns(n int) []Turn {
	turns := []Turn{{Role: RoleAssistant, Text: "What should change?"}}
	for i := 0; i < n; i++ {
		turns = append(turns, Turn{Role: RoleUser, Text: "anything"}, Turn{Role: RoleAssistant, Text: "ok"})
	}
	return turns
}

func TestReadiness_Steps(t *testing.T) {
	tr := Tracker{ReadyTurns: DefaultReadyTurns}
	cases := map[int]int{0: 10, 1: 33, 2: 66, 3: 100, 4: 100, 10: 100}
	for u, want := range cases {
		assert.Equal(t, want, tr.Readiness(userTurns(u), true), "u=%d", u)
	}
}

func TestReadiness_NoSeed(t *testing.T) {
	tr := Tracker{ReadyTurns: DefaultReadyTurns}
	assert.Equal(t, 0, tr.Readiness(userTurns(5), false))
	assert.Equal(t, 0, tr.Readiness(nil, false))
}

func TestReadiness_IgnoresContent(t *testing.T) {
	tr := Tracker{}
	turns := []Turn{{Role: RoleUser, Text: ""}, {Role: RoleUser, Text: "x"}}
	assert.Equal(t, 66, tr.Readiness(turns, true))
}

func TestReadiness_Configurable(t *testing.T) {
	tr := Tracker{ReadyTurns: 5}
	assert.Equal(t, 40, tr.Readiness(userTurns(2), true))
	assert.False(t, tr.Ready(userTurns(4), true))
	assert.True(t, tr.Ready(userTurns(5), true))
}

func TestReadiness_Monotonic(t *testing.T) {
	tr := Tracker{ReadyTurns: DefaultReadyTurns}
	prev := 0
	for u := 0; u < 8; u++ {
		got := tr.Readiness(userTurns(u), true)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}
