/*
Package taskmanager binds a Machine to an external object store.

A Manager is given two functions, search and update, and uses them to persist every
successful transition. It keeps the store's own result as the source of truth: SendEvent
returns whatever update returned, not the locally transitioned copy.

Start only computes the initial state and never persists it. Callers that want the
started object stored must call update themselves.

No locking happens by default. Concurrent SendEvent calls on the same object race and
the last write wins. WithEntityLock and WithDistributedLocker opt into serialization.
*/
package taskmanager
