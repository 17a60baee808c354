//go:build !windows

package firebird

import (
	"errors"

	"github.com/ebitengine/purego"
)

// loadDynamicLibrary opens the client library with the system loader.
// Bare sonames are resolved through the usual search paths.
func loadDynamicLibrary(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

// closeLibrary releases a library handle.
func closeLibrary(handle uintptr) {
	if handle != 0 {
		purego.Dlclose(handle)
	}
}

// getSymbol resolves an entry point address by name.
func getSymbol(handle uintptr, name string) (uintptr, error) {
	if handle == 0 {
		return 0, errors.New("invalid library handle")
	}
	return purego.Dlsym(handle, name)
}

// callNative invokes a resolved entry point.
func callNative(fn uintptr, args ...uintptr) (uintptr, uintptr, uintptr) {
	return purego.SyscallN(fn, args...)
}
