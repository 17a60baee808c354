package firebird

import (
	"fmt"
	"runtime"
)

// ClientInfo describes the state of the native client library binding.
type ClientInfo struct {
	Available    bool   // whether the client library was loaded
	Architecture string // runtime architecture
	Platform     string // runtime platform
	Path         string // the library that was loaded, when available
	Version      string // the client library's own version string
	Error        string // load error, when not available
}

// GetClientInfo reports how the client library binding went, triggering
// the load if it has not happened yet.
func GetClientInfo() ClientInfo {
	eng, err := loadNativeEngine()

	info := ClientInfo{
		Available:    err == nil,
		Architecture: runtime.GOARCH,
		Platform:     runtime.GOOS,
		Path:         nativeLibPath,
	}

	if err != nil {
		info.Error = err.Error()
	} else {
		info.Version = eng.clientVersion()
	}

	return info
}

// String returns a human-readable summary of the binding state.
func (i ClientInfo) String() string {
	if i.Available {
		return fmt.Sprintf("Firebird client: %s\nPlatform: %s/%s\nLibrary: %s",
			i.Version, i.Platform, i.Architecture, i.Path)
	}

	return fmt.Sprintf("Firebird client: not available\nPlatform: %s/%s\nError: %s",
		i.Platform, i.Architecture, i.Error)
}

// VersionInfo aggregates the library and runtime versions.
type VersionInfo struct {
	LibraryVersion string // version of this library
	ClientVersion  string // version of the native client library
	GoVersion      string // Go runtime version
}

// GetVersionInfo returns version information about the library and the
// native client it binds.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		LibraryVersion: LibVersionString(),
		GoVersion:      runtime.Version(),
	}

	if eng, err := loadNativeEngine(); err == nil {
		info.ClientVersion = eng.clientVersion()
	}

	return info
}

// String returns a human-readable summary of version information.
func (v VersionInfo) String() string {
	client := v.ClientVersion
	if client == "" {
		client = "not available"
	}

	return fmt.Sprintf("Library version: %s\nClient version: %s\nGo version: %s",
		v.LibraryVersion, client, v.GoVersion)
}
