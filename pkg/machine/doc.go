/*
Package machine applies a machine definition to caller-owned objects.

A Machine is stateless: every call receives the object it works on and returns a new one.
The input object is never modified, so a Machine can be shared between goroutines and
called concurrently on different (or the same) objects.

Guards and actions named in the definition are resolved against a registry when the
Machine is built. A name that cannot be resolved is a definition error, not a runtime one.
*/
package machine
