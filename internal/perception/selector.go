package perception

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	childCombinator  = " > "
	shadowCombinator = " >>> "
)

var simpleIdent = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// PathSegment is one ancestor level of an element, captured in the page.
// Position is 1-based among all element children of the parent.
type PathSegment struct {
	Tag      string `json:"tag"`
	ID       string `json:"id,omitempty"`
	IDUnique bool   `json:"idUnique,omitempty"`
	Position int    `json:"position"`
	Siblings int    `json:"siblings"`
}

// NodePath holds one root-to-leaf segment list per document scope: the
// document first, then each shadow root crossed on the way to the element.
type NodePath struct {
	Scopes [][]PathSegment `json:"scopes"`
}

// Synthesize derives a selector that re-locates the element described by
// path. It is pure: the same path always yields the same selector.
func Synthesize(path NodePath) string {
	parts := make([]string, 0, len(path.Scopes))

	for _, scope := range path.Scopes {
		if sel := scopeSelector(scope); sel != "" {
			parts = append(parts, sel)
		}
	}

	return strings.Join(parts, shadowCombinator)
}

func scopeSelector(scope []PathSegment) string {
	if len(scope) == 0 {
		return ""
	}

	leaf := scope[len(scope)-1]
	if leaf.ID != "" && leaf.IDUnique {
		return idSelector(leaf.ID)
	}

	levels := make([]string, 0, len(scope))

	for _, seg := range scope {
		level := strings.ToLower(seg.Tag)
		if seg.Siblings > 1 && seg.Position > 0 {
			level += fmt.Sprintf(":nth-child(%d)", seg.Position)
		}

		levels = append(levels, level)
	}

	return strings.Join(levels, childCombinator)
}

func idSelector(id string) string {
	if simpleIdent.MatchString(id) {
		return "#" + id
	}

	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(id)

	return `[id="` + escaped + `"]`
}
