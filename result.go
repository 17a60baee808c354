package firebird

// ExecStatus reports the outcome of a statement execution, following
// the libpq result-status convention.
type ExecStatus int

const (
	// StatusNoAction means no statement has been executed.
	StatusNoAction ExecStatus = iota
	// StatusEmptyQuery means the statement was recognized but deliberately
	// not executed, such as a COMMIT outside a transaction.
	StatusEmptyQuery
	// StatusCommandOK means a statement returning no rows completed.
	StatusCommandOK
	// StatusTuplesOK means a query completed and its rows are available.
	StatusTuplesOK
	// StatusTransactionStart means a SET TRANSACTION statement opened a
	// user transaction.
	StatusTransactionStart
	// StatusTransactionCommit means a COMMIT statement closed the user
	// transaction.
	StatusTransactionCommit
	// StatusTransactionRollback means a ROLLBACK statement closed the
	// user transaction.
	StatusTransactionRollback
	// StatusBadResponse means the server sent an unintelligible response.
	StatusBadResponse
	// StatusNonFatalError means a notice or warning was raised.
	StatusNonFatalError
	// StatusFatalError means the statement failed.
	StatusFatalError
)

var execStatusNames = []string{
	"FBRES_NO_ACTION",
	"FBRES_EMPTY_QUERY",
	"FBRES_COMMAND_OK",
	"FBRES_TUPLES_OK",
	"FBRES_TRANSACTION_START",
	"FBRES_TRANSACTION_COMMIT",
	"FBRES_TRANSACTION_ROLLBACK",
	"FBRES_BAD_RESPONSE",
	"FBRES_NONFATAL_ERROR",
	"FBRES_FATAL_ERROR",
}

// String converts an execution status into its string constant.
func (s ExecStatus) String() string {
	if s < 0 || int(s) >= len(execStatusNames) {
		return "invalid ExecStatus code"
	}
	return execStatusNames[s]
}

// ConnStatus reports whether a connection is usable.
type ConnStatus int

const (
	// ConnectionOK means the connection responded to a probe.
	ConnectionOK ConnStatus = iota
	// ConnectionBad means the connection was never established or has
	// stopped responding.
	ConnectionBad
)

// String converts a connection status into its string constant.
func (s ConnStatus) String() string {
	if s == ConnectionOK {
		return "CONNECTION_OK"
	}
	return "CONNECTION_BAD"
}

// columnDesc describes one output column of an executed query: its
// name, optional alias and source table, its type, and running width
// maxima collected while rows are stored.
type columnDesc struct {
	name        string
	nameDsplen  int
	alias       string // set only when it differs from name
	aliasDsplen int
	relname     string
	sqlType     SQLType

	// maxLen and maxLineLen track the widest stored datum, in display
	// characters, overall and per line.
	maxLen     int
	maxLineLen int

	hasNull bool
}

// tupleAtt is one materialized datum: its text rendering plus the
// length and width metadata column formatting needs.
type tupleAtt struct {
	value      string
	length     int // byte length of value
	dsplen     int // display width in single characters
	dsplenLine int // display width of the widest line
	lines      int
	isNull     bool
}

// resultTuple is one materialized row.
type resultTuple struct {
	values   []tupleAtt
	maxLines int
}

// Result holds the complete materialized outcome of one statement
// execution: status, column metadata, row data and any error report.
// All row contents are fetched eagerly; a Result is independent of the
// connection that produced it.
type Result struct {
	status ExecStatus

	ntups int
	ncols int

	header []columnDesc
	tuples []resultTuple

	errMsg    string
	errFields []messageField
	sqlCode   int
	errLine   int
	errColumn int

	// Execution scratch state, released once rows are materialized.
	stmtHandle    uintptr
	statementType int
	sqldaIn       *sqlda
	sqldaOut      *sqlda
}

// newResult returns a Result with its sentinels set and an output
// descriptor block preallocated. The input block is only allocated for
// parameterized executions.
func newResult(initIn bool) *Result {
	res := &Result{
		status:    StatusNoAction,
		ntups:     -1,
		ncols:     -1,
		sqlCode:   -1,
		errLine:   -1,
		errColumn: -1,
	}
	res.initDescriptors(initIn)
	return res
}

func (res *Result) initDescriptors(initIn bool) {
	res.sqldaOut = newSqlda(initialDescriptorSlots)
	if initIn {
		res.sqldaIn = newSqlda(initialDescriptorSlots)
	}
}

// storeRow materializes the current contents of the output descriptor
// block as one row. The column header is built from the descriptors
// when the first row is stored; subsequent rows update the per-column
// width maxima and null tracking.
func (c *Conn) storeRow(res *Result, trans *uintptr) {
	if len(res.header) == 0 {
		res.header = make([]columnDesc, res.ncols)

		for i := 0; i < res.ncols; i++ {
			v := &res.sqldaOut.vars[i]
			desc := &res.header[i]

			desc.name = v.name
			desc.nameDsplen = DisplayStrLen(desc.name, c.ClientEncodingID())

			// The alias is only kept when it differs from the column name.
			if v.alias != v.name {
				desc.alias = v.alias
				desc.aliasDsplen = DisplayStrLen(desc.alias, c.ClientEncodingID())
			}

			desc.relname = v.relname

			// The engine reports RDB$DB_KEY columns under the name DB_KEY.
			if desc.name == "DB_KEY" {
				desc.sqlType = TypeDBKey
			} else {
				desc.sqlType = v.baseType()
			}
		}
	}

	tuple := resultTuple{
		values:   make([]tupleAtt, res.ncols),
		maxLines: 1,
	}

	for i := 0; i < res.ncols; i++ {
		desc := &res.header[i]
		att := c.formatDatum(desc, &res.sqldaOut.vars[i], trans)

		if att.lines > tuple.maxLines {
			tuple.maxLines = att.lines
		}

		if att.isNull {
			desc.hasNull = true
		} else {
			if att.dsplen > desc.maxLen {
				desc.maxLen = att.dsplen
			}
			if att.dsplenLine > desc.maxLineLen {
				desc.maxLineLen = att.dsplenLine
			}
		}

		tuple.values[i] = att
	}

	res.tuples = append(res.tuples, tuple)
}

// Status returns the execution status of the result.
func (res *Result) Status() ExecStatus {
	if res == nil {
		return StatusFatalError
	}
	return res.status
}

// SQLCode returns the Firebird SQLCODE associated with the result.
// -1 means the statement succeeded, -2 that there is no result.
func (res *Result) SQLCode() int {
	if res == nil {
		return -2
	}
	return res.sqlCode
}

// RowCount returns the number of rows in the result, or -1 if no query
// has been executed.
func (res *Result) RowCount() int {
	if res == nil {
		return -1
	}
	return res.ntups
}

// ColumnCount returns the number of columns in the result, or -1 if no
// query has been executed.
func (res *Result) ColumnCount() int {
	if res == nil {
		return -1
	}
	return res.ncols
}

// checkTupleField reports whether row and column address a stored datum.
func (res *Result) checkTupleField(row, column int) bool {
	if res == nil {
		return false
	}
	if row < 0 || row >= res.ntups {
		return false
	}
	if column < 0 || column >= res.ncols {
		return false
	}
	return true
}

// Value returns a single field of the result as text. Row and column
// numbers start at 0. The empty string is returned both for NULL and
// for invalid coordinates; use IsNull to tell the cases apart.
func (res *Result) Value(row, column int) string {
	if !res.checkTupleField(row, column) {
		return ""
	}
	return res.tuples[row].values[column].value
}

// IsNull tests a field for NULL. Invalid coordinates report true.
func (res *Result) IsNull(row, column int) bool {
	if !res.checkTupleField(row, column) {
		return true
	}
	return res.tuples[row].values[column].isNull
}

// Length returns the byte length of a field's text value, or -1 for
// invalid coordinates.
func (res *Result) Length(row, column int) int {
	if !res.checkTupleField(row, column) {
		return -1
	}
	return res.tuples[row].values[column].length
}

// DisplayLength returns the display width of a field in single
// characters, or -1 for invalid coordinates. Widths are only computed
// when the connection has display-length calculation enabled.
func (res *Result) DisplayLength(row, column int) int {
	if !res.checkTupleField(row, column) {
		return -1
	}
	return res.tuples[row].values[column].dsplen
}

// Lines returns the number of lines in a field's text value, or -1 for
// invalid coordinates.
func (res *Result) Lines(row, column int) int {
	if !res.checkTupleField(row, column) {
		return -1
	}
	return res.tuples[row].values[column].lines
}

// RowLines returns the maximum line count across a row's fields, or -1
// for an invalid row number.
func (res *Result) RowLines(row int) int {
	if res == nil {
		return -1
	}
	if row < 0 || row >= res.ntups {
		return -1
	}
	return res.tuples[row].maxLines
}

// FieldHasNull reports whether the column contains at least one NULL
// in the result set. Not to be confused with IsNull, which tests one
// field of one row.
func (res *Result) FieldHasNull(column int) bool {
	if res == nil {
		return false
	}
	if column < 0 || column >= res.ncols {
		return false
	}
	if len(res.header) == 0 {
		return false
	}
	return res.header[column].hasNull
}

// FieldMaxWidth returns the maximum width of a column in single
// characters, considering both the stored data and the column heading.
func (res *Result) FieldMaxWidth(column int) int {
	if res == nil {
		return -1
	}
	if column < 0 || column >= res.ncols {
		return -1
	}
	if len(res.header) == 0 {
		return -1
	}

	desc := &res.header[column]

	if desc.alias != "" {
		if desc.maxLen > desc.aliasDsplen {
			return desc.maxLineLen
		}
		return desc.aliasDsplen
	}

	if desc.maxLen > desc.nameDsplen {
		return desc.maxLineLen
	}
	return desc.nameDsplen
}

// FieldName returns the name of a column, preferring its alias when one
// was set. Column numbers start at 0.
func (res *Result) FieldName(column int) string {
	if res == nil {
		return ""
	}
	if column < 0 || column >= res.ncols {
		return ""
	}
	if len(res.header) == 0 {
		return ""
	}

	if res.header[column].alias != "" {
		return res.header[column].alias
	}
	return res.header[column].name
}

// FieldTable returns the name of the table a column belongs to, or ""
// when the column has no table, such as a computed expression.
func (res *Result) FieldTable(column int) string {
	if res == nil {
		return ""
	}
	if column < 0 || column >= res.ncols {
		return ""
	}
	if len(res.header) == 0 {
		return ""
	}
	return res.header[column].relname
}

// FieldType returns the data type of a column. TypeInvalid is returned
// for an invalid column number, and TypeDBKey for RDB$DB_KEY columns.
func (res *Result) FieldType(column int) SQLType {
	if res == nil {
		return TypeInvalid
	}
	if column < 0 || column >= res.ncols {
		return TypeInvalid
	}
	if len(res.header) == 0 {
		return TypeInvalid
	}
	return res.header[column].sqlType
}

// FieldFormat returns the format code of a column: 0 for text, 1 for
// binary and -1 for an invalid column number. Blob columns are the only
// binary ones.
func (res *Result) FieldFormat(column int) int16 {
	if res == nil {
		return -1
	}
	if column < 0 || column >= res.ncols {
		return -1
	}

	if res.FieldType(column) == TypeBlob {
		return 1
	}
	return 0
}

// FormatDBKey renders a field holding a raw RDB$DB_KEY value in its
// 16-digit hexadecimal form, or "" for NULL or invalid coordinates.
func (res *Result) FormatDBKey(row, column int) string {
	if !res.checkTupleField(row, column) {
		return ""
	}
	if res.IsNull(row, column) {
		return ""
	}

	value := res.Value(row, column)
	if value == "" {
		return ""
	}
	return ParseDBKey(value)
}

// ErrorMessage returns the error message associated with the result,
// or an empty string.
func (res *Result) ErrorMessage() string {
	if res == nil {
		return ""
	}
	return res.errMsg
}

// ErrorLine returns the statement line number an error was reported
// at, or -1 when no position is known.
func (res *Result) ErrorLine() int {
	if res == nil {
		return -1
	}
	return res.errLine
}

// ErrorColumn returns the statement column number an error was
// reported at, or -1 when no position is known.
func (res *Result) ErrorColumn() int {
	if res == nil {
		return -1
	}
	return res.errColumn
}

// Clear releases the result's contents. The result reverts to its
// freshly initialized state and can be inspected safely afterwards.
func (res *Result) Clear() {
	if res == nil {
		return
	}

	res.status = StatusNoAction
	res.ntups = -1
	res.ncols = -1
	res.header = nil
	res.tuples = nil
	res.errMsg = ""
	res.errFields = nil
	res.sqlCode = -1
	res.errLine = -1
	res.errColumn = -1
	res.stmtHandle = 0
	res.statementType = 0
	res.sqldaIn = nil
	res.sqldaOut = nil
}
