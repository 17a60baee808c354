//go:build windows

package firebird

import (
	"errors"
	"syscall"
)

// loadDynamicLibrary opens the client library with the system loader.
func loadDynamicLibrary(path string) (uintptr, error) {
	handle, err := syscall.LoadLibrary(path)
	if err != nil {
		return 0, err
	}
	return uintptr(handle), nil
}

// closeLibrary releases a library handle.
func closeLibrary(handle uintptr) {
	if handle != 0 {
		syscall.FreeLibrary(syscall.Handle(handle))
	}
}

// getSymbol resolves an entry point address by name.
func getSymbol(handle uintptr, name string) (uintptr, error) {
	if handle == 0 {
		return 0, errors.New("invalid library handle")
	}
	proc, err := syscall.GetProcAddress(syscall.Handle(handle), name)
	if err != nil {
		return 0, err
	}
	return uintptr(proc), nil
}

// callNative invokes a resolved entry point.
func callNative(fn uintptr, args ...uintptr) (uintptr, uintptr, uintptr) {
	r1, r2, err := syscall.SyscallN(fn, args...)
	return r1, r2, uintptr(err)
}
