package firebird

import (
	"strings"
	"testing"
)

// newTestConn attaches a connection to a fresh scripted engine with the
// standard probe statements in place.
func newTestConn(t *testing.T) (*Conn, *scriptEngine) {
	t.Helper()

	e := newScriptEngine()
	scriptProbes(e, "3.0.7")

	c, err := connectParams(e, map[string]string{
		paramDBPath:   "localhost:/data/test.fdb",
		paramUser:     "SYSDBA",
		paramPassword: "masterkey",
	})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	return c, e
}

func TestConnectMissingPath(t *testing.T) {
	_, err := connectParams(newScriptEngine(), map[string]string{
		paramUser: "SYSDBA",
	})
	if err == nil {
		t.Fatal("Expected connect without db_path to fail")
	}
	if !IsError(err, ErrConnection) {
		t.Errorf("Expected ErrConnection, got %v", err)
	}
}

func TestConnectAttachFailure(t *testing.T) {
	e := newScriptEngine()
	e.attachFailure = []string{
		"I/O error during \"open\" operation",
		"Error while trying to open file",
	}

	_, err := connectParams(e, map[string]string{paramDBPath: "nowhere.fdb"})
	if err == nil {
		t.Fatal("Expected attach to fail")
	}
	if !strings.Contains(err.Error(), "I/O error") {
		t.Errorf("Expected interpreted engine diagnostics in error, got %q", err.Error())
	}
}

func TestServerVersionProbe(t *testing.T) {
	c, _ := newTestConn(t)
	defer c.Close()

	if got := c.ServerVersion(); got != 30007 {
		t.Errorf("Expected server version 30007, got %d", got)
	}
	if got := c.ServerVersionString(); got != "3.0.7" {
		t.Errorf("Expected version string 3.0.7, got %q", got)
	}

	if c.SupportsBoolean() != true {
		t.Error("Expected a 3.0 server to support BOOLEAN")
	}
	if c.SupportsInt128() != false {
		t.Error("Expected a 3.0 server not to support INT128")
	}
}

func TestClientEncodingProbe(t *testing.T) {
	c, _ := newTestConn(t)
	defer c.Close()

	if got := c.ClientEncoding(); got != "UTF8" {
		t.Errorf("Expected client encoding UTF8, got %q", got)
	}
	if got := c.ClientEncodingID(); got != encodingUTF8 {
		t.Errorf("Expected client encoding id %d, got %d", encodingUTF8, got)
	}
}

func TestParameterStatus(t *testing.T) {
	c, _ := newTestConn(t)
	defer c.Close()

	cases := []struct {
		name     string
		expected string
	}{
		{"client_encoding", "UTF8"},
		{"server_version", "3.0.7"},
		{"time_zone_names", "disabled"},
		{"client_min_messages", "DEBUG1"},
		{"no_such_parameter", ""},
	}

	for _, tc := range cases {
		if got := c.ParameterStatus(tc.name); got != tc.expected {
			t.Errorf("ParameterStatus(%q): expected %q, got %q", tc.name, tc.expected, got)
		}
	}
}

func TestStatusProbesServer(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	if got := c.Status(); got != ConnectionOK {
		t.Errorf("Expected CONNECTION_OK, got %s", got)
	}
	if err := c.Ping(); err != nil {
		t.Errorf("Expected ping to succeed, got %v", err)
	}

	// Status must detect a server-side failure, not report a cached flag.
	e.infoFailure = true
	if got := c.Status(); got != ConnectionBad {
		t.Errorf("Expected CONNECTION_BAD after server loss, got %s", got)
	}
	if err := c.Ping(); err == nil {
		t.Error("Expected ping to fail after server loss")
	}
}

func TestCloseConnection(t *testing.T) {
	c, _ := newTestConn(t)

	if err := c.Close(); err != nil {
		t.Fatalf("Failed to close connection: %v", err)
	}

	// Closing twice is a no-op.
	if err := c.Close(); err != nil {
		t.Errorf("Expected second close to be a no-op, got %v", err)
	}

	res := c.Exec("SELECT 1 FROM rdb$database")
	if res.Status() != StatusFatalError {
		t.Errorf("Expected fatal result on closed connection, got %s", res.Status())
	}
	if res.ErrorMessage() == "" {
		t.Error("Expected an error message on closed connection result")
	}
}

func TestCloseRollsBackOpenTransaction(t *testing.T) {
	c, e := newTestConn(t)

	if err := c.StartTransaction(); err != nil {
		t.Fatalf("Failed to start transaction: %v", err)
	}

	rollbacks := e.rollbacks
	if err := c.Close(); err != nil {
		t.Fatalf("Failed to close connection: %v", err)
	}
	if e.rollbacks != rollbacks+1 {
		t.Errorf("Expected close to roll back the open transaction, rollbacks %d -> %d", rollbacks, e.rollbacks)
	}
}

func TestReconnect(t *testing.T) {
	c, _ := newTestConn(t)

	c2, err := c.Reconnect()
	if err != nil {
		t.Fatalf("Failed to reconnect: %v", err)
	}
	defer c2.Close()

	if c2.DBPath() != c.DBPath() {
		t.Errorf("Expected reconnect to keep db path %q, got %q", c.DBPath(), c2.DBPath())
	}
	if c2.Username() != "SYSDBA" {
		t.Errorf("Expected reconnect to keep username, got %q", c2.Username())
	}
	c.Close()
}

func TestConnectOptions(t *testing.T) {
	e := newScriptEngine()
	scriptProbes(e, "3.0.7")

	c, err := connectParams(e, map[string]string{
		paramDBPath:            "localhost:/data/test.fdb",
		paramClientMinMessages: "WARNING",
		paramTimeZoneNames:     "true",
	})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer c.Close()

	if c.clientMinMessages != LogWarning {
		t.Errorf("Expected client_min_messages WARNING, got %d", c.clientMinMessages)
	}
	if !c.timeZoneNames {
		t.Error("Expected time_zone_names to be enabled")
	}
}

func TestSetClientMinMessagesString(t *testing.T) {
	c, _ := newTestConn(t)
	defer c.Close()

	if err := c.SetClientMinMessagesString("error"); err != nil {
		t.Fatalf("Failed to set log level by name: %v", err)
	}
	if c.clientMinMessages != LogError {
		t.Errorf("Expected level %d, got %d", LogError, c.clientMinMessages)
	}

	if err := c.SetClientMinMessagesString("NO_SUCH_LEVEL"); err == nil {
		t.Error("Expected unknown level name to be rejected")
	}
}

func TestAppendDpbString(t *testing.T) {
	dpb := appendDpbString([]byte{iscDpbVersion1}, iscDpbUserName, "SYSDBA")
	expected := []byte{iscDpbVersion1, iscDpbUserName, 6, 'S', 'Y', 'S', 'D', 'B', 'A'}

	if string(dpb) != string(expected) {
		t.Errorf("Expected dpb % x, got % x", expected, dpb)
	}

	// Over-long values are cut to the one-byte length field's range.
	long := strings.Repeat("x", 300)
	dpb = appendDpbString(nil, iscDpbPassword, long)
	if len(dpb) != 2+255 {
		t.Errorf("Expected truncated dpb entry of 257 bytes, got %d", len(dpb))
	}
}
