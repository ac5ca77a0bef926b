package definition_test

import (
	"testing"

	"github.com/aretw0/fsmtask/pkg/definition"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() domain.Schema {
	return domain.Schema{
		Name:                 "test",
		InitialState:         "init",
		FinalStates:          []string{"finished"},
		ObjectStateFieldName: "status",
		Transitions: []domain.TransitionSpec{
			{From: "init", Event: "finish", To: "finished"},
		},
	}
}

func orderSchema() domain.Schema {
	return domain.Schema{
		Name:         "order",
		InitialState: "new",
		FinalStates:  []string{"delivered", "cancelled"},
		Transitions: []domain.TransitionSpec{
			{From: "new", Event: "pay", To: "paid", Guard: &domain.HookSpec{Name: "hasFunds"}},
			{From: "new", Event: "cancel", To: "cancelled"},
			{From: "paid", Event: "ship", To: "shipped", Action: &domain.HookSpec{Name: "notify"}},
			{From: "shipped", Event: "deliver", To: "delivered"},
		},
	}
}

func TestNew_Accessors(t *testing.T) {
	def, err := definition.New(testSchema())
	require.NoError(t, err)

	assert.Equal(t, "test", def.Name())
	assert.Equal(t, "init", def.InitialState())
	assert.Equal(t, "status", def.ObjectStateFieldName())
	assert.True(t, def.IsFinalState("finished"))
	assert.False(t, def.IsFinalState("init"))
	assert.False(t, def.IsFinalState(""))
	assert.ElementsMatch(t, []string{"init", "finished"}, def.States())
}

func TestNew_DefaultStateField(t *testing.T) {
	s := testSchema()
	s.ObjectStateFieldName = ""

	def, err := definition.New(s)
	require.NoError(t, err)
	assert.Equal(t, definition.DefaultObjectStateFieldName, def.ObjectStateFieldName())
	assert.Equal(t, "status", definition.DefaultObjectStateFieldName)
	assert.Equal(t, "status", def.Schema().ObjectStateFieldName)
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Schema)
		want   error
	}{
		{"missing name", func(s *domain.Schema) { s.Name = "" }, domain.ErrNameRequired},
		{"missing initial state", func(s *domain.Schema) { s.InitialState = "" }, domain.ErrInitialStateRequired},
		{"missing transitions", func(s *domain.Schema) { s.Transitions = nil }, domain.ErrTransitionsRequired},
		{"incomplete transition", func(s *domain.Schema) {
			s.Transitions = append(s.Transitions, domain.TransitionSpec{From: "init", To: "finished"})
		}, domain.ErrInvalidTransition},
		{"duplicate pair", func(s *domain.Schema) {
			s.Transitions = append(s.Transitions, domain.TransitionSpec{From: "init", Event: "finish", To: "init"})
		}, domain.ErrDuplicateTransition},
		{"final state with exit", func(s *domain.Schema) {
			s.Transitions = append(s.Transitions, domain.TransitionSpec{From: "finished", Event: "reopen", To: "init"})
		}, domain.ErrFinalStateHasTransitions},
		{"undeclared target", func(s *domain.Schema) {
			s.States = []domain.StateSpec{{Name: "init"}, {Name: "finished"}}
			s.Transitions = append(s.Transitions, domain.TransitionSpec{From: "init", Event: "park", To: "parked"})
		}, domain.ErrUnknownState},
		{"final state outside declared set", func(s *domain.Schema) {
			s.States = []domain.StateSpec{{Name: "init"}, {Name: "finished"}}
			s.FinalStates = append(s.FinalStates, "archived")
		}, domain.ErrUnknownState},
		{"guard without name or expression", func(s *domain.Schema) {
			s.Transitions[0].Guard = &domain.HookSpec{}
		}, domain.ErrUnknownGuard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSchema()
			tt.mutate(&s)

			def, err := definition.New(s)
			assert.Nil(t, def)
			require.Error(t, err)
			assert.True(t, domain.IsDefinitionError(err))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNew_ReportsAllProblems(t *testing.T) {
	_, err := definition.New(domain.Schema{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNameRequired)
	assert.ErrorIs(t, err, domain.ErrInitialStateRequired)
	assert.ErrorIs(t, err, domain.ErrTransitionsRequired)
}

func TestNew_EmptyTransitionListIsAllowed(t *testing.T) {
	s := testSchema()
	s.Transitions = []domain.TransitionSpec{}
	_, err := definition.New(s)
	assert.NoError(t, err)
}

func TestFindTransition(t *testing.T) {
	def, err := definition.New(orderSchema())
	require.NoError(t, err)

	tr, ok := def.FindTransition("new", "pay")
	require.True(t, ok)
	assert.Equal(t, "paid", tr.To)
	require.Len(t, tr.Guards, 1)
	assert.Equal(t, "hasFunds", tr.Guards[0].Name)

	_, ok = def.FindTransition("new", "ship")
	assert.False(t, ok)
	_, ok = def.FindTransition("delivered", "pay")
	assert.False(t, ok)

	assert.Equal(t, []string{"pay", "cancel"}, def.Events("new"))
	assert.Empty(t, def.Events("delivered"))
}

func TestObjectState(t *testing.T) {
	def, err := definition.New(testSchema())
	require.NoError(t, err)

	obj := domain.Object{"id": "t-1", "title": "write docs"}
	assert.Equal(t, "", def.GetObjectState(obj))

	next := def.SetObjectState(obj, "init")
	assert.Equal(t, "init", def.GetObjectState(next))
	assert.Equal(t, "write docs", next["title"])
	_, touched := obj["status"]
	assert.False(t, touched, "SetObjectState must not mutate its input")

	_, ok := def.CurrentState(obj)
	assert.False(t, ok)
	numeric := domain.Object{"status": 7}
	assert.Equal(t, "", def.GetObjectState(numeric))
	current, ok := def.CurrentState(numeric)
	assert.True(t, ok)
	assert.Equal(t, "7", current)
}

func TestReachable(t *testing.T) {
	s := orderSchema()
	s.States = []domain.StateSpec{
		{Name: "new"}, {Name: "paid"}, {Name: "shipped"}, {Name: "delivered"}, {Name: "cancelled"},
		{Name: "lost", Description: "never entered"},
	}
	def, err := definition.New(s)
	require.NoError(t, err)

	assert.Equal(t, []string{"new", "paid", "cancelled", "shipped", "delivered"}, def.Reachable())
	assert.Equal(t, []string{"lost"}, def.Unreachable())
	assert.Equal(t, "never entered", def.Describe("lost"))
}

func TestDefinition_IsImmutable(t *testing.T) {
	s := orderSchema()
	def, err := definition.New(s)
	require.NoError(t, err)

	s.Transitions[0].To = "hacked"
	s.FinalStates[0] = "hacked"

	tr, _ := def.FindTransition("new", "pay")
	assert.Equal(t, "paid", tr.To)
	assert.True(t, def.IsFinalState("delivered"))

	finals := def.FinalStates()
	finals[0] = "mutated"
	assert.Equal(t, []string{"delivered", "cancelled"}, def.FinalStates())
}
