package loam

import (
	"github.com/aretw0/fsmtask/pkg/domain"
)

// MachineMetadata is the front matter of a machine document.
// It uses "mapstructure" tags to match the camelCase keys of the schema format.
// The Markdown body is kept as the machine's description.
type MachineMetadata struct {
	Name                 string                  `json:"name" mapstructure:"name"`
	InitialState         string                  `json:"initialState" mapstructure:"initialState"`
	FinalStates          []string                `json:"finalStates" mapstructure:"finalStates"`
	ObjectStateFieldName string                  `json:"objectStateFieldName" mapstructure:"objectStateFieldName"`
	States               []domain.StateSpec      `json:"states" mapstructure:"states"`
	Transitions          []domain.TransitionSpec `json:"transitions" mapstructure:"transitions"`
}

// Schema converts the front matter into a domain schema.
// fallbackName is used when the document does not set a name.
func (m MachineMetadata) Schema(fallbackName string) domain.Schema {
	name := m.Name
	if name == "" {
		name = fallbackName
	}
	return domain.Schema{
		Name:                 name,
		InitialState:         m.InitialState,
		FinalStates:          m.FinalStates,
		ObjectStateFieldName: m.ObjectStateFieldName,
		States:               m.States,
		Transitions:          m.Transitions,
	}
}
