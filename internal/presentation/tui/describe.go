package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/fsmtask/pkg/definition"
	"github.com/aretw0/fsmtask/pkg/domain"
)

// DescribeDefinition renders a machine definition as Markdown.
// description, when set, is placed under the title.
func DescribeDefinition(def *definition.Definition, description string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", def.Name())
	if description != "" {
		sb.WriteString(description)
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "- **Initial state:** `%s`\n", def.InitialState())
	fmt.Fprintf(&sb, "- **State field:** `%s`\n", def.ObjectStateFieldName())
	if finals := def.FinalStates(); len(finals) > 0 {
		fmt.Fprintf(&sb, "- **Final states:** %s\n", codeList(finals))
	}
	if unreachable := def.Unreachable(); len(unreachable) > 0 {
		fmt.Fprintf(&sb, "- **Unreachable:** %s\n", codeList(unreachable))
	}

	sb.WriteString("\n## States\n\n| State | Events | Description |\n|---|---|---|\n")
	for _, s := range def.States() {
		events := def.Events(s)
		cell := "-"
		if len(events) > 0 {
			cell = codeList(events)
		}
		if def.IsFinalState(s) {
			cell = "_final_"
		}
		fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", s, cell, def.Describe(s))
	}

	sb.WriteString("\n## Transitions\n\n| From | Event | To | Guards | Actions |\n|---|---|---|---|---|\n")
	for _, t := range def.Transitions() {
		fmt.Fprintf(&sb, "| `%s` | `%s` | `%s` | %s | %s |\n",
			t.From, t.Event, t.To, hookList(t.Guards), hookList(t.Actions))
	}

	return sb.String()
}

func codeList(items []string) string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = "`" + s + "`"
	}
	return strings.Join(out, ", ")
}

func hookList(hooks []domain.HookSpec) string {
	if len(hooks) == 0 {
		return "-"
	}
	out := make([]string, len(hooks))
	for i, h := range hooks {
		label := h.Label()
		if len(h.Params) > 0 {
			var ps []string
			for _, p := range h.Params {
				ps = append(ps, fmt.Sprintf("%s=%v", p.Name, p.Value))
			}
			label += "(" + strings.Join(ps, ", ") + ")"
		}
		out[i] = "`" + strings.ReplaceAll(label, "|", "\\|") + "`"
	}
	return strings.Join(out, ", ")
}
