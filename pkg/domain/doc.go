/*
Package domain contains the core types shared by every fsmtask package.

It is kept free of I/O and persistence concerns. Adapters and the engine packages
depend on it, never the other way around.

# Key Entities

  - Schema: The declarative machine description (the authorable wire format).
  - Transition: A resolved (from, event) -> to rule with its guards and actions.
  - Object: A caller-owned record whose state lives in a single designated field.
  - SearchRequest / UpdateResult: The envelopes exchanged with an external task store.
  - LifecycleHooks: Callbacks fired on start, transition and rejection.
*/
package domain
