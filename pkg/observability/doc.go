/*
Package observability provides Prometheus metrics and structured logging for machines and stores.

Metrics and LoggingHooks both produce domain.LifecycleHooks, so they plug into a Machine
through machine.WithLifecycleHooks and can be combined with domain.CombineHooks.
*/
package observability
