package firebird

import (
	"fmt"
	"strings"
)

// ErrorType represents different types of Firebird errors.
type ErrorType int

const (
	// ErrGeneric is a generic error.
	ErrGeneric ErrorType = iota
	// ErrConnection is a connection error.
	ErrConnection
	// ErrPrepare is a statement preparation error.
	ErrPrepare
	// ErrExec is a statement execution error.
	ErrExec
	// ErrQuery is a query error.
	ErrQuery
	// ErrType is a type conversion error.
	ErrType
	// ErrBind is a parameter binding error.
	ErrBind
	// ErrTransaction is a transaction error.
	ErrTransaction
	// ErrBlob is a blob transfer error.
	ErrBlob
	// ErrClosed reports use of a closed connection or statement.
	ErrClosed
)

// Error is a Firebird-specific error type. Code carries the engine
// SQLCODE when one was reported, otherwise zero.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

// Error returns the error message.
func (e *Error) Error() string {
	return fmt.Sprintf("firebird: %s", e.Message)
}

// NewError creates a new Error.
func NewError(typ ErrorType, message string) *Error {
	return &Error{
		Type:    typ,
		Message: message,
	}
}

// IsError checks if an error is of a specific type.
func IsError(err error, typ ErrorType) bool {
	fbErr, ok := err.(*Error)
	if !ok {
		return false
	}
	return fbErr.Type == typ
}

// DiagField classifies one line of an engine diagnostic report.
type DiagField int

const (
	// DiagOther is a diagnostic line with no more specific classification.
	DiagOther DiagField = iota
	// DiagMessageType is the leading line naming the report type.
	DiagMessageType
	// DiagMessagePrimary is the principal human-readable error text.
	DiagMessagePrimary
	// DiagMessageDetail is supplementary error text.
	DiagMessageDetail
	// DiagDebug carries internal diagnostics not shown to users.
	DiagDebug
)

// messageField is one classified diagnostic line attached to a result.
// Fields are kept in discovery order; the engine emits oldest first.
type messageField struct {
	code  DiagField
	value string
}

// saveMessageField stores one field of an error or notice message.
func (res *Result) saveMessageField(code DiagField, format string, args ...any) {
	res.errFields = append(res.errFields, messageField{
		code:  code,
		value: fmt.Sprintf(format, args...),
	})
}

// ErrorField returns the most recently stored diagnostic field with the
// given classification, or "" if none was recorded.
func (res *Result) ErrorField(code DiagField) string {
	for i := len(res.errFields) - 1; i >= 0; i-- {
		if res.errFields[i].code == code {
			return res.errFields[i].value
		}
	}
	return ""
}

// ErrorFields returns every stored diagnostic field in discovery order,
// one per line, each prefixed with the supplied string.
func (res *Result) ErrorFields(prefix string) string {
	if len(res.errFields) == 0 {
		return ""
	}

	buf := bufferPool.Checkout()
	defer buf.Release()

	for i, field := range res.errFields {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(prefix)
		buf.WriteString(field.value)
	}
	return buf.MustString()
}

// collectError drains the connection's status vector into the result:
// the SQLCODE, each interpreted diagnostic line classified by position,
// any embedded error coordinates, and a composite message. The composite
// is also kept on the connection as its last error.
func (c *Conn) collectError(res *Result) {
	res.sqlCode = int(c.eng.sqlCode(c.sv))
	c.sv.rewind()

	line := 0
	var messageType, primary, detail string
	var havePrimary, haveDetail bool

	for i := 0; ; i++ {
		msg, ok := c.eng.interpret(c.sv)
		if !ok {
			break
		}

		switch i {
		case 0:
			// Leading line names the overall message type.
			messageType = msg
			res.saveMessageField(DiagMessageType, "%s", msg)
		case 1:
			// Second line repeats the SQLCODE; not stored.
		default:
			switch line {
			case 0:
				text, errLine, errCol, found := splitErrorLocation(msg)
				if found {
					res.errLine = errLine
					res.errColumn = errCol
					msg = text
				}
				primary = msg
				havePrimary = true
				res.saveMessageField(DiagMessagePrimary, "%s", msg)
			case 1:
				detail = msg
				haveDetail = true
				res.saveMessageField(DiagMessageDetail, "%s", msg)
			default:
				var errLine, errCol int
				if n, _ := fmt.Sscanf(msg, "At line %d, column %d", &errLine, &errCol); n == 2 {
					res.errLine = errLine
					res.errColumn = errCol
				} else {
					res.saveMessageField(DiagOther, "%s", msg)
				}
			}
			line++
		}
	}

	// A bare report with no content lines: promote the type line so the
	// primary field is never empty.
	if line == 0 && messageType != "" {
		primary = messageType
		havePrimary = true
		res.saveMessageField(DiagMessagePrimary, "%s", messageType)
	}

	buf := bufferPool.Checkout()
	defer buf.Release()

	if line > 0 {
		buf.WriteString(messageType)
		buf.WriteByte('\n')
	}
	if havePrimary {
		buf.WriteString("ERROR: ")
		buf.WriteString(primary)
		buf.WriteByte('\n')
		if haveDetail {
			buf.WriteString("DETAIL: ")
			buf.WriteString(detail)
			if res.errLine > 0 {
				buf.WriteString(fmt.Sprintf(" at line %d, column %d", res.errLine, res.errColumn))
			}
		}
	}

	res.errMsg = buf.MustString()
	c.errMsg = res.errMsg
}

// splitErrorLocation extracts an embedded "- line N, column M" suffix
// from a diagnostic line, returning the text before the dash and the
// coordinates. Only the first dash is considered and it must not open
// the line. found is false when the line carries no such suffix.
func splitErrorLocation(msg string) (text string, errLine, errCol int, found bool) {
	idx := strings.IndexByte(msg, '-')
	if idx <= 0 {
		return msg, 0, 0, false
	}
	if n, _ := fmt.Sscanf(msg[idx:], "- line %d, column %d", &errLine, &errCol); n == 2 {
		return msg[:idx], errLine, errCol, true
	}
	return msg, 0, 0, false
}

// nonFatalError reports a warning attached to a statement without
// failing it. Mimics libpq, where a non-fatal error is dumped to the
// client by default; here it goes to the structured log, bypassing the
// connection's severity gate.
func (c *Conn) nonFatalError(level int, msg string) {
	logLevel(level, "firebird").String("severity", logLevelName(level)).String("message", msg).Log()
}
