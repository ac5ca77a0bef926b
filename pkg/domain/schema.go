package domain

import "gopkg.in/yaml.v3"

// Schema is the declarative description of a state machine.
// Field names match the JSON/YAML format produced by the definition editor.
type Schema struct {
	Name                 string           `json:"name" yaml:"name" mapstructure:"name"`
	InitialState         string           `json:"initialState" yaml:"initialState" mapstructure:"initialState"`
	FinalStates          []string         `json:"finalStates" yaml:"finalStates" mapstructure:"finalStates"`
	ObjectStateFieldName string           `json:"objectStateFieldName,omitempty" yaml:"objectStateFieldName,omitempty" mapstructure:"objectStateFieldName"`
	States               []StateSpec      `json:"states,omitempty" yaml:"states,omitempty" mapstructure:"states"`
	Transitions          []TransitionSpec `json:"transitions" yaml:"transitions" mapstructure:"transitions"`
}

// StateSpec declares a state explicitly.
// When a schema lists states, every transition must stay within them.
type StateSpec struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// TransitionSpec is a single rule as written in a schema.
// Guard/Action is the single-hook form; Guards/Actions is the list form. Both may be combined,
// the single hook runs first.
type TransitionSpec struct {
	From    string     `json:"from" yaml:"from" mapstructure:"from"`
	Event   string     `json:"event" yaml:"event" mapstructure:"event"`
	To      string     `json:"to" yaml:"to" mapstructure:"to"`
	Guard   *HookSpec  `json:"guard,omitempty" yaml:"guard,omitempty" mapstructure:"guard"`
	Action  *HookSpec  `json:"action,omitempty" yaml:"action,omitempty" mapstructure:"action"`
	Guards  []HookSpec `json:"guards,omitempty" yaml:"guards,omitempty" mapstructure:"guards"`
	Actions []HookSpec `json:"actions,omitempty" yaml:"actions,omitempty" mapstructure:"actions"`
}

// HookSpec references a guard or action by registry name.
// A guard may instead carry an inline Expression, evaluated by a caller-supplied evaluator.
type HookSpec struct {
	Name       string  `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Params     []Param `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
	Expression string  `json:"expression,omitempty" yaml:"expression,omitempty" mapstructure:"expression"`
}

// UnmarshalYAML accepts a bare name as shorthand for {name: <name>}.
func (h *HookSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*h = HookSpec{Name: node.Value}
		return nil
	}
	type plain HookSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*h = HookSpec(p)
	return nil
}

// Param is a named argument passed to a guard or action.
type Param struct {
	Name  string `json:"name" yaml:"name" mapstructure:"name"`
	Value any    `json:"value" yaml:"value" mapstructure:"value"`
}

// Label returns a printable identifier for the hook.
func (h HookSpec) Label() string {
	if h.Name != "" {
		return h.Name
	}
	return h.Expression
}

// ParamMap flattens Params into a map. Later duplicates win.
func (h HookSpec) ParamMap() map[string]any {
	out := make(map[string]any, len(h.Params))
	for _, p := range h.Params {
		out[p.Name] = p.Value
	}
	return out
}

// GuardSpecs returns every guard of the transition in evaluation order.
func (t TransitionSpec) GuardSpecs() []HookSpec {
	return joinHooks(t.Guard, t.Guards)
}

// ActionSpecs returns every action of the transition in execution order.
func (t TransitionSpec) ActionSpecs() []HookSpec {
	return joinHooks(t.Action, t.Actions)
}

func joinHooks(single *HookSpec, list []HookSpec) []HookSpec {
	out := make([]HookSpec, 0, len(list)+1)
	if single != nil {
		out = append(out, *single)
	}
	return append(out, list...)
}
