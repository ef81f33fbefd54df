package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionKind_Valid(t *testing.T) {
	for _, kind := range ActionKinds {
		assert.True(t, kind.Valid(), kind)
	}

	assert.False(t, ActionKind("navigate").Valid())
	assert.False(t, ActionKind("").Valid())
	assert.True(t, ActionClick.Targeted())
	assert.True(t, ActionType.Targeted())
	assert.False(t, ActionScroll.Targeted())
}

func TestPlan_ValueOrEmpty(t *testing.T) {
	value := "hello"

	assert.Equal(t, "", (&Plan{Action: ActionType}).ValueOrEmpty())
	assert.Equal(t, "hello", (&Plan{Action: ActionType, Value: &value}).ValueOrEmpty())
}

func TestHistoryEntry_String(t *testing.T) {
	idx := 4

	assert.Equal(t, `click("Log In")`, HistoryEntry{Action: ActionClick, Target: "Log In"}.String())
	assert.Equal(t, `type("shoes" into "Search")`, HistoryEntry{Action: ActionType, Target: "Search", Value: "shoes"}.String())
	assert.Equal(t, "click(#4)", HistoryEntry{Action: ActionClick, TargetIndex: &idx}.String())
	assert.Equal(t, "scroll", HistoryEntry{Action: ActionScroll}.String())
}

func TestSession_Lifecycle(t *testing.T) {
	s := NewSession("find shoes", 2, RunOptions{})

	assert.True(t, s.Running())
	assert.True(t, s.BudgetLeft())

	s.StepCount = 2
	assert.False(t, s.BudgetLeft())

	s.Stop()
	assert.False(t, s.Running())
}

func TestRunState_Terminal(t *testing.T) {
	assert.False(t, RunStateIdle.Terminal())
	assert.False(t, RunStateRunning.Terminal())
	assert.True(t, RunStateBudgetExhausted.Terminal())
	assert.True(t, RunStateCancelled.Terminal())
}
