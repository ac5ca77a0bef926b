/*
Package ports defines the driven ports (interfaces) of fsmtask.

These interfaces decouple the engine from storage and infrastructure, so the same machine can
run against an in-memory map, a JSON directory, Redis, MongoDB or PostgreSQL.

# Key Interfaces

  - TaskStore: The search/update pair a TaskManager persists objects through.
  - SearchFunc / UpdateFunc: The same operations as plain functions, for callers that own storage.
  - DefinitionLoader: Where machine schemas come from (Loam directory, memory).
  - DistributedLocker: Cross-replica locking for the optional per-entity serialization point.
*/
package ports
