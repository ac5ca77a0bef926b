package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestDefinitionError_UnwrapsJoinedCauses(t *testing.T) {
	err := &domain.DefinitionError{
		Machine: "order",
		Err:     errors.Join(domain.ErrNameRequired, fmt.Errorf("transition 2: %w", domain.ErrDuplicateTransition)),
	}

	assert.ErrorIs(t, err, domain.ErrNameRequired)
	assert.ErrorIs(t, err, domain.ErrDuplicateTransition)
	assert.NotErrorIs(t, err, domain.ErrUnknownState)
	assert.True(t, domain.IsDefinitionError(fmt.Errorf("load: %w", err)))
	assert.Contains(t, err.Error(), `"order"`)
}

func TestTypedErrorHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"already started", &domain.AlreadyStartedError{State: "init"}, domain.IsAlreadyStartedError},
		{"illegal transition", &domain.IllegalTransitionError{State: "finished", Event: "finish"}, domain.IsIllegalTransitionError},
		{"guard rejected", &domain.GuardRejectedError{State: "init", Event: "finish", Guard: "ready"}, domain.IsGuardRejectedError},
		{"hook", &domain.HookError{Kind: domain.HookAction, Name: "notify", Err: errors.New("boom")}, domain.IsHookError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.False(t, tt.check(errors.New("unrelated")))
		})
	}
}

func TestIllegalTransitionError_Message(t *testing.T) {
	err := &domain.IllegalTransitionError{State: "finished", Event: "finish"}
	assert.Equal(t, `illegal transition: no "finish" event from state "finished"`, err.Error())
}

func TestHookError_Unwrap(t *testing.T) {
	cause := errors.New("smtp down")
	err := &domain.HookError{Kind: domain.HookAction, Name: "notify", State: "init", Event: "finish", Err: cause}
	assert.ErrorIs(t, err, cause)
}
