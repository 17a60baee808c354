package firebird

const (
	libVersion       = 600
	libVersionString = "0.6.0"
)

// LibVersion returns the library version as an integer, with two digits
// per part: 600 is 0.6.0.
func LibVersion() int {
	return libVersion
}

// LibVersionString returns the library version as a string.
func LibVersionString() string {
	return libVersionString
}

// ClientVersion identifies the native client library loaded at runtime.
func (c *Conn) ClientVersion() string {
	if c == nil || c.eng == nil {
		return ""
	}
	return c.eng.clientVersion()
}

// SupportsBoolean reports whether the attached server understands the
// BOOLEAN type (Firebird 3.0 and later).
func (c *Conn) SupportsBoolean() bool {
	return c.ServerVersion() >= 30000
}

// SupportsInt128 reports whether the attached server understands the
// INT128 type (Firebird 4.0 and later).
func (c *Conn) SupportsInt128() bool {
	return c.ServerVersion() >= 40000
}

// SupportsTimeZones reports whether the attached server understands the
// TIME ZONE flavors of TIME and TIMESTAMP (Firebird 4.0 and later).
func (c *Conn) SupportsTimeZones() bool {
	return c.ServerVersion() >= 40000
}
