package domain

// Transition is a resolved rule: objects in From move to To on Event,
// provided every guard accepts. Actions run after the new object is computed.
type Transition struct {
	From    string     `json:"from"`
	Event   string     `json:"event"`
	To      string     `json:"to"`
	Guards  []HookSpec `json:"guards,omitempty"`
	Actions []HookSpec `json:"actions,omitempty"`
}

// NewTransition builds a Transition from its schema form.
func NewTransition(spec TransitionSpec) Transition {
	return Transition{
		From:    spec.From,
		Event:   spec.Event,
		To:      spec.To,
		Guards:  spec.GuardSpecs(),
		Actions: spec.ActionSpecs(),
	}
}
