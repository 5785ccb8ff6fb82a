// Package loader makes built dynamic libraries concurrently loadable
// across rebuilds.
//
// Load copies an artifact into a dedicated temp directory under a name
// derived from the library name and the build timestamp, so distinct
// builds never collide and an older loaded copy stays valid while a newer
// build overwrites the original artifact location. The returned
// TempLibrary unloads the mapping and removes its backing file exactly
// once, in that order.
//
// The dynamic-loader primitive itself is abstracted behind the Loader
// interface; the default implementation uses the platform loader.
package loader
