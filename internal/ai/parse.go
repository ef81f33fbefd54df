package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"nano-agent/internal/entity"
	"nano-agent/pkg/apperr"
)

const parseOp = "ParsePlan"

// stripFences removes markdown code fences and, when what remains is not JSON,
// any prose around the outermost object.
func stripFences(text string) string {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}

		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	if !json.Valid([]byte(s)) {
		start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}

	return s
}

func parsePlan(text string) (*entity.Plan, error) {
	payload := stripFences(text)

	if !json.Valid([]byte(payload)) {
		return nil, apperr.Wrap(parseOp, apperr.CodeMalformedPlan, errors.New("plan payload is not valid JSON"), map[string]any{
			apperr.MetaReason: "invalid_json",
			apperr.MetaStage:  apperr.StagePlanning,
		})
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil || raw == nil {
		return nil, invalidPlan("", errors.New("plan payload is not a JSON object"))
	}

	plan := &entity.Plan{}

	action, ok := raw["action"].(string)
	if !ok {
		return nil, invalidPlan("action", errors.New("action is missing"))
	}

	plan.Action = entity.ActionKind(strings.ToLower(strings.TrimSpace(action)))
	if !plan.Action.Valid() {
		return nil, invalidPlan("action", fmt.Errorf("unknown action %q", action))
	}

	switch reasoning := raw["reasoning"].(type) {
	case nil:
	case string:
		plan.Reasoning = reasoning
	default:
		return nil, invalidPlan("reasoning", fmt.Errorf("reasoning must be a string, got %T", reasoning))
	}

	idx, err := targetIndex(raw["target_index"])
	if err != nil {
		return nil, invalidPlan("target_index", err)
	}

	plan.TargetIndex = idx

	switch value := raw["value"].(type) {
	case nil:
	case string:
		plan.Value = &value
	case float64:
		s := strconv.FormatFloat(value, 'f', -1, 64)
		plan.Value = &s
	default:
		return nil, invalidPlan("value", fmt.Errorf("value must be a string, got %T", value))
	}

	return plan, nil
}

func targetIndex(v any) (*int, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("target_index %v is not an integer", t)
		}

		if t < math.MinInt32 || t > math.MaxInt32 {
			return nil, fmt.Errorf("target_index %v is out of range", t)
		}

		i := int(t)

		return &i, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}

		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("target_index %q is not an integer in range", t)
		}

		i := int(n)

		return &i, nil
	default:
		return nil, fmt.Errorf("target_index must be an integer, got %T", v)
	}
}

func invalidPlan(field string, err error) error {
	meta := map[string]any{
		apperr.MetaReason: "schema_violation",
		apperr.MetaStage:  apperr.StagePlanning,
	}

	if field != "" {
		meta[apperr.MetaField] = field
	}

	return apperr.Wrap(parseOp, apperr.CodeInvalidPlan, err, meta)
}
