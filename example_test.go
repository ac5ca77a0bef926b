package fsmtask_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/fsmtask"
	"github.com/aretw0/fsmtask/pkg/adapters/memory"
	"github.com/aretw0/fsmtask/pkg/domain"
)

// ExampleNew_memory builds an engine from an in-memory schema and walks one task to completion.
func ExampleNew_memory() {
	loader, err := memory.NewFromSchemas(domain.Schema{
		Name:         "ticket",
		InitialState: "open",
		FinalStates:  []string{"closed"},
		Transitions: []domain.TransitionSpec{
			{From: "open", Event: "resolve", To: "resolved"},
			{From: "resolved", Event: "close", To: "closed"},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	engine, err := fsmtask.New("ticket", fsmtask.WithLoader(loader))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	task, err := engine.Create(ctx, domain.Object{"id": "T-1"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(task["status"])

	for _, event := range []string{"resolve", "close"} {
		task, err = engine.SendEvent(ctx, task, event, nil)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(task["status"])
	}

	_, err = engine.SendEvent(ctx, task, "resolve", nil)
	fmt.Println(domain.IsIllegalTransitionError(err))

	// Output:
	// open
	// resolved
	// closed
	// true
}
