//go:build !darwin && !linux && !freebsd && !windows

package loader

import "errors"

// Open reports that the platform has no dynamic loader backend.
func (systemLoader) Open(string) (Handle, error) {
	return nil, errors.New("dynamic loading is not supported on this platform")
}
