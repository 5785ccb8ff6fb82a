// Package runner drives the watch, rebuild and reload cycle for one
// package's dynamic library.
//
// It keeps the previously loaded copy alive until the replacement is
// mapped, so callers holding the old handle are never invalidated by a
// rebuild. A marker file guards against two runners racing over the same
// working directory.
package runner
