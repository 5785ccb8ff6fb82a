// Package builder resolves a watched package's dynamic-library target from
// the build tool's metadata and invokes builds of it.
//
// A Package describes the dylib target discovered via `cargo metadata`; its
// Build method runs `cargo build` and returns an immutable Result stamped
// with the completion time. Results for different builds of the same library
// may coexist and are loaded independently by the loader package.
package builder
