package definition

import (
	"errors"
	"fmt"

	"github.com/aretw0/fsmtask/pkg/domain"
)

// validate returns every structural problem of schema joined into one error, or nil.
func validate(s domain.Schema) error {
	var errs []error

	if s.Name == "" {
		errs = append(errs, domain.ErrNameRequired)
	}
	if s.InitialState == "" {
		errs = append(errs, domain.ErrInitialStateRequired)
	}
	if s.Transitions == nil {
		errs = append(errs, domain.ErrTransitionsRequired)
	}

	declared := make(map[string]bool, len(s.States))
	for i, st := range s.States {
		switch {
		case st.Name == "":
			errs = append(errs, fmt.Errorf("state %d: %w", i, domain.ErrUnknownState))
		case declared[st.Name]:
			errs = append(errs, fmt.Errorf("state %d: duplicate state %q", i, st.Name))
		}
		declared[st.Name] = true
	}

	// Without an explicit states list every referenced name forms the state set,
	// so membership only needs checking when states were declared.
	member := func(state string) bool {
		return len(s.States) == 0 || declared[state]
	}

	if s.InitialState != "" && !member(s.InitialState) {
		errs = append(errs, fmt.Errorf("initialState: %w: %s", domain.ErrUnknownState, s.InitialState))
	}

	final := make(map[string]bool, len(s.FinalStates))
	for _, f := range s.FinalStates {
		if f == "" || !member(f) {
			errs = append(errs, fmt.Errorf("finalStates: %w: %q", domain.ErrUnknownState, f))
		}
		final[f] = true
	}

	seen := make(map[transitionKey]int, len(s.Transitions))
	for i, t := range s.Transitions {
		if t.From == "" || t.Event == "" || t.To == "" {
			errs = append(errs, fmt.Errorf("transition %d: %w", i, domain.ErrInvalidTransition))
			continue
		}
		if !member(t.From) {
			errs = append(errs, fmt.Errorf("transition %d: %w: %s", i, domain.ErrUnknownState, t.From))
		}
		if !member(t.To) {
			errs = append(errs, fmt.Errorf("transition %d: %w: %s", i, domain.ErrUnknownState, t.To))
		}
		if final[t.From] {
			errs = append(errs, fmt.Errorf("transition %d: %w: %s", i, domain.ErrFinalStateHasTransitions, t.From))
		}

		key := transitionKey{t.From, t.Event}
		if first, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("transition %d: %w: (%s, %s) already declared by transition %d",
				i, domain.ErrDuplicateTransition, t.From, t.Event, first))
		} else {
			seen[key] = i
		}

		for j, g := range t.GuardSpecs() {
			if g.Name == "" && g.Expression == "" {
				errs = append(errs, fmt.Errorf("transition %d guard %d: %w", i, j, domain.ErrUnknownGuard))
			}
		}
		for j, a := range t.ActionSpecs() {
			if a.Name == "" {
				errs = append(errs, fmt.Errorf("transition %d action %d: %w", i, j, domain.ErrUnknownAction))
			}
		}
	}

	return errors.Join(errs...)
}
