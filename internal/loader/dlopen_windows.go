//go:build windows

package loader

import "golang.org/x/sys/windows"

// systemHandle wraps a LoadLibrary module handle.
type systemHandle struct {
	module windows.Handle
}

// Open maps the library with LoadLibrary.
func (systemLoader) Open(path string) (Handle, error) {
	module, err := windows.LoadLibrary(path)
	if err != nil {
		return nil, err
	}

	return &systemHandle{module: module}, nil
}

// Lookup resolves an exported symbol via GetProcAddress.
func (h *systemHandle) Lookup(symbol string) (uintptr, error) {
	return windows.GetProcAddress(h.module, symbol)
}

// Close unmaps the library via FreeLibrary.
func (h *systemHandle) Close() error {
	return windows.FreeLibrary(h.module)
}
