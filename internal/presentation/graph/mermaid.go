package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/fsmtask/pkg/definition"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedStates []string
	CurrentState  string
}

// GenerateMermaid produces a Mermaid state diagram for a machine definition.
// Guards are appended to the edge label in brackets, actions after a slash.
// The initial state hangs off [*] and final states lead back to it.
func GenerateMermaid(def *definition.Definition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")

	// Alias states whose names are not valid Mermaid identifiers
	for _, s := range def.States() {
		safe := sanitizeMermaidID(s)
		desc := def.Describe(s)
		switch {
		case desc != "":
			fmt.Fprintf(&sb, "    state \"%s: %s\" as %s\n", escapeLabel(s), escapeLabel(desc), safe)
		case safe != s:
			fmt.Fprintf(&sb, "    state \"%s\" as %s\n", escapeLabel(s), safe)
		}
	}

	fmt.Fprintf(&sb, "    [*] --> %s\n", sanitizeMermaidID(def.InitialState()))

	for _, t := range def.Transitions() {
		label := t.Event
		var guards []string
		for _, g := range t.Guards {
			guards = append(guards, g.Label())
		}
		if len(guards) > 0 {
			label += " [" + strings.Join(guards, ", ") + "]"
		}
		var actions []string
		for _, a := range t.Actions {
			actions = append(actions, a.Label())
		}
		if len(actions) > 0 {
			label += " / " + strings.Join(actions, ", ")
		}
		fmt.Fprintf(&sb, "    %s --> %s: %s\n", sanitizeMermaidID(t.From), sanitizeMermaidID(t.To), escapeLabel(label))
	}

	for _, f := range def.FinalStates() {
		fmt.Fprintf(&sb, "    %s --> [*]\n", sanitizeMermaidID(f))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" && safeID != sanitizeMermaidID(overlay.CurrentState) {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited\n", safeID)
			}
		}

		if overlay.CurrentState != "" {
			fmt.Fprintf(&sb, "    class %s current\n", sanitizeMermaidID(overlay.CurrentState))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(
		".", "_",
		"-", "_",
		"/", "_",
		"\\", "_",
		" ", "_",
		":", "_",
	).Replace(id)
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}
