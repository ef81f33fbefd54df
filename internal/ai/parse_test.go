package ai

import (
	"testing"

	"nano-agent/internal/entity"
	"nano-agent/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlan_StripsCodeFence(t *testing.T) {
	plan, err := parsePlan("```json\n{\"action\":\"finish\",\"reasoning\":\"done\"}\n```")

	require.NoError(t, err)
	assert.Equal(t, entity.ActionFinish, plan.Action)
	assert.Equal(t, "done", plan.Reasoning)
	assert.Nil(t, plan.TargetIndex)
	assert.Nil(t, plan.Value)
}

func TestParsePlan_Fields(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		index  *int
		value  *string
		action entity.ActionKind
	}{
		{
			name:   "integer index",
			input:  `{"action":"click","target_index":3,"reasoning":"login"}`,
			index:  intPtr(3),
			action: entity.ActionClick,
		},
		{
			name:   "string index",
			input:  `{"action":"type","target_index":" 2 ","value":"shoes"}`,
			index:  intPtr(2),
			value:  strPtr("shoes"),
			action: entity.ActionType,
		},
		{
			name:   "null value",
			input:  `{"action":"type","target_index":0,"value":null}`,
			index:  intPtr(0),
			action: entity.ActionType,
		},
		{
			name:   "numeric value",
			input:  `{"action":"type","target_index":1,"value":42}`,
			index:  intPtr(1),
			value:  strPtr("42"),
			action: entity.ActionType,
		},
		{
			name:   "upper-case action and surrounding prose",
			input:  "Sure! {\"action\":\"SCROLL\"} hope that helps",
			action: entity.ActionScroll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := parsePlan(tt.input)

			require.NoError(t, err)
			assert.Equal(t, tt.action, plan.Action)
			assert.Equal(t, tt.index, plan.TargetIndex)
			assert.Equal(t, tt.value, plan.Value)
		})
	}
}

func TestParsePlan_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  string
	}{
		{name: "not json", input: "I think you should click login", code: apperr.CodeMalformedPlan},
		{name: "truncated", input: `{"action":"click"`, code: apperr.CodeMalformedPlan},
		{name: "array", input: `[{"action":"click"}]`, code: apperr.CodeInvalidPlan},
		{name: "missing action", input: `{"reasoning":"hmm"}`, code: apperr.CodeInvalidPlan},
		{name: "unknown action", input: `{"action":"hover"}`, code: apperr.CodeInvalidPlan},
		{name: "fractional index", input: `{"action":"click","target_index":1.5}`, code: apperr.CodeInvalidPlan},
		{name: "object index", input: `{"action":"click","target_index":{}}`, code: apperr.CodeInvalidPlan},
		{name: "non-numeric index", input: `{"action":"click","target_index":"first"}`, code: apperr.CodeInvalidPlan},
		{name: "huge index", input: `{"action":"click","target_index":1e300}`, code: apperr.CodeInvalidPlan},
		{name: "index past int32", input: `{"action":"click","target_index":2147483648}`, code: apperr.CodeInvalidPlan},
		{name: "huge string index", input: `{"action":"click","target_index":"99999999999"}`, code: apperr.CodeInvalidPlan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePlan(tt.input)

			require.Error(t, err)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}
