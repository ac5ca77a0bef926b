package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventStart      EventType = "start"
	EventTransition EventType = "transition"
	EventReject     EventType = "reject"
)

// TransitionEvent describes something the machine did (or refused to do) to an object.
type TransitionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Machine   string    `json:"machine"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Event     string    `json:"event,omitempty"`
	Err       error     `json:"-"`
}

// LifecycleHooks defines callbacks for machine observability.
// Any of them may be nil.
type LifecycleHooks struct {
	OnStart      func(context.Context, *TransitionEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnReject     func(context.Context, *TransitionEvent)
}

// CombineHooks fans every callback out to all the given hooks, in order.
func CombineHooks(hooks ...LifecycleHooks) LifecycleHooks {
	fan := func(pick func(LifecycleHooks) func(context.Context, *TransitionEvent)) func(context.Context, *TransitionEvent) {
		var fns []func(context.Context, *TransitionEvent)
		for _, h := range hooks {
			if fn := pick(h); fn != nil {
				fns = append(fns, fn)
			}
		}
		if len(fns) == 0 {
			return nil
		}
		return func(ctx context.Context, ev *TransitionEvent) {
			for _, fn := range fns {
				fn(ctx, ev)
			}
		}
	}

	return LifecycleHooks{
		OnStart:      fan(func(h LifecycleHooks) func(context.Context, *TransitionEvent) { return h.OnStart }),
		OnTransition: fan(func(h LifecycleHooks) func(context.Context, *TransitionEvent) { return h.OnTransition }),
		OnReject:     fan(func(h LifecycleHooks) func(context.Context, *TransitionEvent) { return h.OnReject }),
	}
}
