package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"nano-agent/internal/entity"
)

// compactElement is what the reasoning service sees of a descriptor.
// Selectors stay on this side of the boundary.
type compactElement struct {
	Index     int    `json:"i"`
	Tag       string `json:"t"`
	Text      string `json:"txt"`
	Sensitive bool   `json:"sensitive"`
}

const promptTemplate = `You are NanoAgent, a browser automation agent.
GOAL: %q
URL: %q
HISTORY: %s
UI ELEMENTS:
%s

INSTRUCTIONS:
1. Select the single best next action for the goal.
2. Use "click" or "type" with the "i" of an element listed above as target_index.
3. Use "extract" if the user wants data read from the page.
4. Use "scroll" if the target is not among the elements.
5. Use "finish" if the goal is done.

RESPONSE FORMAT (JSON ONLY):
{
	"reasoning": "thought process",
	"action": "click" | "type" | "scroll" | "extract" | "finish",
	"target_index": number,
	"value": "string"
}`

func buildPrompt(req entity.PlanRequest) (string, error) {
	compact := make([]compactElement, len(req.Elements))
	for i, el := range req.Elements {
		compact[i] = compactElement{Index: el.Index, Tag: el.Tag, Text: el.Text, Sensitive: el.Sensitive}
	}

	elements, err := json.Marshal(compact)
	if err != nil {
		return "", fmt.Errorf("marshal elements: %w", err)
	}

	history := make([]string, len(req.History))
	for i, h := range req.History {
		history[i] = h.String()
	}

	return fmt.Sprintf(promptTemplate, req.Goal, req.URL, strings.Join(history, " -> "), elements), nil
}
