/*
Package fsmtask drives persistent business objects ("tasks") through a declarative finite state machine.

A machine is described by a schema: an initial state, final states, the name of the object field
that holds the current state, and a list of transitions. Transitions may carry guards, which decide
whether the transition is allowed, and actions, which run once it is accepted. Guards and actions are
referenced by name and resolved through a registry when the machine is built.

# Layers

  - pkg/definition validates a schema and answers structural queries.
  - pkg/machine applies events to plain objects and never touches storage.
  - pkg/taskmanager couples a machine with a search and an update function.
  - pkg/adapters holds the task stores (memory, file, Redis, MongoDB, PostgreSQL), the Loam definition
    repository, external process hooks and the HTTP and MCP surfaces.

The Engine in this package wires those layers together.

# Usage

	engine, err := fsmtask.New("./order.yaml", fsmtask.WithStore(file.New(".fsmtask/tasks")))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	// Create starts the object and saves it. Start alone never persists.
	task, err := engine.Create(ctx, domain.Object{"id": "order-1"})
	if err != nil {
		log.Fatal(err)
	}

	task, err = engine.SendEvent(ctx, task, "pay", nil)
	if domain.IsGuardRejectedError(err) {
		log.Println("payment refused")
	}

# Concurrency

The task manager does not lock by default: two concurrent events on the same task both read the same
state and the last write wins. taskmanager.WithEntityLock and taskmanager.WithDistributedLocker opt in
to per-task serialization.
*/
package fsmtask
