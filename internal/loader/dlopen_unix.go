//go:build darwin || linux || freebsd

package loader

import "github.com/ebitengine/purego"

// systemHandle wraps a dlopen reference.
type systemHandle struct {
	ref uintptr
}

// Open maps the library with dlopen, resolving symbols eagerly so a
// malformed binary fails here rather than at first call.
func (systemLoader) Open(path string) (Handle, error) {
	ref, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, err
	}

	return &systemHandle{ref: ref}, nil
}

// Lookup resolves an exported symbol via dlsym.
func (h *systemHandle) Lookup(symbol string) (uintptr, error) {
	return purego.Dlsym(h.ref, symbol)
}

// Close unmaps the library via dlclose.
func (h *systemHandle) Close() error {
	return purego.Dlclose(h.ref)
}
