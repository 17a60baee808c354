package firebird

import (
	"fmt"
	"sync/atomic"
)

// Exec executes a query on the connection's default transaction handle.
// It never returns a nil Result for a live connection; callers inspect
// Status to find out what happened. When autocommit is on and no user
// transaction is open, DML is committed (or rolled back) internally.
func (c *Conn) Exec(query string) *Result {
	if c == nil {
		return nil
	}
	if c.isClosed() {
		return closedResult()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.exec(&c.trans, query)
}

// ExecParams executes a parameterized query. Parameter markers ('?') are
// bound positionally from values; a nil entry binds NULL. formats selects
// the wire form per parameter: 0 for text, -1 for the raw db-key form.
// A nil formats slice treats every parameter as text.
func (c *Conn) ExecParams(query string, values []*string, formats []int) *Result {
	if c == nil {
		return nil
	}
	if c.isClosed() {
		return closedResult()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res := c.prepareResult(query)
	if res.status != StatusNoAction {
		return res
	}

	return c.execParams(&c.trans, res, true, values, formats)
}

// ExecTransaction executes a query in its own transaction on the internal
// handle, committing on success and rolling back on failure. The
// connection's default transaction and autocommit state are untouched.
func (c *Conn) ExecTransaction(query string) *Result {
	if c == nil {
		return nil
	}
	if c.isClosed() {
		return closedResult()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.startTransaction(&c.transInternal); err != nil {
		res := newResult(false)
		res.status = StatusFatalError
		res.saveMessageField(DiagDebug, "transaction error")
		c.collectError(res)
		return res
	}

	res := c.exec(&c.transInternal, query)

	switch res.status {
	case StatusFatalError:
		res.saveMessageField(DiagDebug, "query execution error")
		c.rollbackTransaction(&c.transInternal)
	case StatusCommandOK:
		if err := c.commitTransaction(&c.transInternal); err != nil {
			res.saveMessageField(DiagDebug, "transaction commit error")
			c.rollbackTransaction(&c.transInternal)
		}
	case StatusTuplesOK:
		c.commitTransaction(&c.transInternal)
	}

	return res
}

// Prepare parses and describes a DML statement for repeated execution.
// Only INSERT, UPDATE, DELETE, SELECT and EXECUTE PROCEDURE statements
// can be prepared. The returned Statement must be closed when no longer
// needed; closing the connection drops it as well.
func (c *Conn) Prepare(query string) (*Statement, error) {
	if c == nil {
		return nil, NewError(ErrConnection, "invalid connection")
	}
	if c.isClosed() {
		return nil, NewError(ErrClosed, "connection is closed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res := c.prepareResult(query)
	if res.status != StatusNoAction {
		return nil, resultError(ErrPrepare, res, "unable to prepare statement")
	}

	return &Statement{
		conn:          c,
		handle:        res.stmtHandle,
		statementType: res.statementType,
	}, nil
}

// Explain returns the server's execution plan for a statement without
// running it.
func (c *Conn) Explain(query string) (string, error) {
	if c == nil {
		return "", NewError(ErrConnection, "invalid connection")
	}
	if c.isClosed() {
		return "", NewError(ErrClosed, "connection is closed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res := newResult(false)

	if st := c.eng.allocateStatement(c.sv, &c.db, &res.stmtHandle); !st.ok() {
		res.saveMessageField(DiagDebug, "error - isc_dsql_allocate_statement")
		c.collectError(res)
		return "", resultError(ErrExec, res, "unable to allocate statement")
	}

	tempTrans := false
	if c.trans == 0 {
		c.startTransaction(&c.trans)
		tempTrans = true
	}

	if st := c.eng.prepare(c.sv, &c.trans, &res.stmtHandle, query, res.sqldaOut); !st.ok() {
		res.saveMessageField(DiagDebug, "error - isc_dsql_prepare")
		c.collectError(res)
		c.rollbackTransaction(&c.trans)
		c.clearExecResult(res)
		return "", resultError(ErrPrepare, res, "unable to prepare statement")
	}

	if tempTrans {
		c.rollbackTransaction(&c.trans)
	}

	items := []byte{iscInfoSQLGetPlan}
	buf := make([]byte, planBufferLen)
	if st := c.eng.statementInfo(c.sv, &res.stmtHandle, items, buf); !st.ok() {
		res.saveMessageField(DiagDebug, "error - isc_dsql_sql_info")
		c.collectError(res)
		c.clearExecResult(res)
		return "", resultError(ErrExec, res, "unable to retrieve query plan")
	}

	plan := ""
	if length := int(c.eng.vaxInteger(buf[1:3])); length > 0 {
		plan = string(buf[3 : 3+length])
	}

	c.clearExecResult(res)
	return plan, nil
}

// exec runs a query against the transaction handle pointed to by trans.
// It owns the whole statement lifecycle: allocate, prepare, classify,
// execute, fetch, and drop. Pseudo-statements (SET TRANSACTION, COMMIT,
// ROLLBACK) are intercepted and mapped onto API transaction calls rather
// than being handed to the server's DSQL layer.
func (c *Conn) exec(trans *uintptr, query string) *Result {
	res := newResult(false)

	if st := c.eng.allocateStatement(c.sv, &c.db, &res.stmtHandle); !st.ok() {
		res.status = StatusFatalError
		res.saveMessageField(DiagDebug, "error - isc_dsql_allocate_statement")
		c.collectError(res)
		c.clearExecResult(res)
		return res
	}

	// A statement can be prepared only inside a transaction. If none is
	// open, start a throwaway one and discard it after the prepare.
	tempTrans := false
	if *trans == 0 {
		c.startTransaction(trans)
		tempTrans = true
	}

	if st := c.eng.prepare(c.sv, trans, &res.stmtHandle, query, res.sqldaOut); !st.ok() {
		res.saveMessageField(DiagDebug, "error - isc_dsql_prepare")
		c.collectError(res)
		c.rollbackTransaction(trans)
		res.status = StatusFatalError
		c.clearExecResult(res)
		return res
	}

	if tempTrans {
		c.rollbackTransaction(trans)
		tempTrans = false
	}

	statementType, err := c.statementType(&res.stmtHandle)
	if err != nil {
		res.saveMessageField(DiagDebug, "error - isc_dsql_sql_info")
		c.collectError(res)
		c.rollbackTransaction(trans)
		res.status = StatusFatalError
		c.clearExecResult(res)
		return res
	}
	res.statementType = statementType

	if res.sqldaOut.sqld == 0 {
		switch statementType {
		case stmtStartTrans:
			if *trans != 0 {
				c.nonFatalError(LogWarning, "Currently in transaction")
				res.status = StatusEmptyQuery
			} else {
				c.startTransaction(trans)
				c.inUserTransaction = true
				res.status = StatusTransactionStart
			}
			c.clearExecResult(res)
			return res

		case stmtCommit:
			if *trans == 0 {
				c.nonFatalError(LogWarning, "Not currently in transaction")
				res.status = StatusEmptyQuery
			} else {
				c.commitTransaction(trans)
				res.status = StatusTransactionCommit
			}
			c.inUserTransaction = false
			c.clearExecResult(res)
			return res

		case stmtRollback:
			if *trans == 0 {
				c.nonFatalError(LogWarning, "Not currently in transaction")
				res.status = StatusEmptyQuery
			} else {
				c.rollbackTransaction(trans)
				res.status = StatusTransactionRollback
			}
			c.inUserTransaction = false
			c.clearExecResult(res)
			return res

		case stmtDDL:
			c.log(LogDebug1, "statement_type is DDL")
			if *trans == 0 {
				c.startTransaction(trans)
				tempTrans = true
			}
			if st := c.eng.execute(c.sv, trans, &res.stmtHandle, nil); !st.ok() {
				c.rollbackTransaction(trans)
				res.saveMessageField(DiagDebug, "error executing DDL")
				c.collectError(res)
				res.status = StatusFatalError
				c.clearExecResult(res)
				return res
			}
			if (c.autocommit && !c.inUserTransaction) || tempTrans {
				c.commitTransaction(trans)
			}
			res.status = StatusCommandOK
			c.clearExecResult(res)
			return res
		}

		// Non-SELECT DML with no output columns.
		if *trans == 0 {
			c.startTransaction(trans)
			if !c.autocommit {
				c.inUserTransaction = true
			}
		}
		if st := c.eng.execute(c.sv, trans, &res.stmtHandle, nil); !st.ok() {
			c.log(LogDebug1, "error executing non-SELECT")
			res.saveMessageField(DiagDebug, "error executing non-SELECT")
			c.collectError(res)
			res.status = StatusFatalError
			c.clearExecResult(res)
			return res
		}
		if c.autocommit && !c.inUserTransaction {
			c.commitTransaction(trans)
		}
		res.status = StatusCommandOK
		c.clearExecResult(res)
		return res
	}

	// Statement returns rows.
	if *trans == 0 {
		c.startTransaction(trans)
		if !c.autocommit {
			c.inUserTransaction = true
		}
	}

	if st := c.eng.describe(c.sv, &res.stmtHandle, res.sqldaOut); !st.ok() {
		c.collectError(res)
		res.saveMessageField(DiagDebug, "isc_dsql_describe")
		res.status = StatusFatalError
		c.clearExecResult(res)
		return res
	}

	res.ncols = res.sqldaOut.sqld

	if res.sqldaOut.sqln < res.ncols {
		res.sqldaOut.grow(res.ncols)
		if st := c.eng.describe(c.sv, &res.stmtHandle, res.sqldaOut); !st.ok() {
			c.collectError(res)
			res.saveMessageField(DiagDebug, "isc_dsql_describe")
			res.status = StatusFatalError
			c.clearExecResult(res)
			return res
		}
		res.ncols = res.sqldaOut.sqld
	}

	if err := res.sqldaOut.allocOutputSlots(); err != nil {
		res.saveMessageField(DiagDebug, "%s", err.Error())
		res.status = StatusFatalError
		c.clearExecResult(res)
		return res
	}

	if st := c.eng.execute(c.sv, trans, &res.stmtHandle, nil); !st.ok() {
		res.saveMessageField(DiagDebug, "isc_dsql_execute error")
		res.status = StatusFatalError
		c.collectError(res)
		if c.autocommit && !c.inUserTransaction {
			c.rollbackTransaction(trans)
		}
		c.clearExecResult(res)
		return res
	}

	numRows := 0
	var retcode iscStatus
	for {
		retcode = c.eng.fetch(c.sv, &res.stmtHandle, res.sqldaOut)
		if retcode != 0 {
			break
		}
		c.storeRow(res, trans)
		numRows++
	}

	if retcode != fetchNoMoreRows {
		res.saveMessageField(DiagDebug, "isc_dsql_fetch() error")
		res.status = StatusFatalError
		c.collectError(res)
		if c.autocommit && !c.inUserTransaction {
			c.rollbackTransaction(trans)
		}
		c.clearExecResult(res)
		return res
	}

	res.status = StatusTuplesOK
	res.ntups = numRows

	if c.autocommit && !c.inUserTransaction {
		c.commitTransaction(trans)
	}

	c.clearExecResult(res)
	return res
}

// prepareResult allocates and prepares a statement, verifying it is DML.
// On success the returned result carries the live statement handle and
// its type, with status StatusNoAction; any other status means failure.
func (c *Conn) prepareResult(query string) *Result {
	res := newResult(true)
	trans := &c.trans

	if st := c.eng.allocateStatement(c.sv, &c.db, &res.stmtHandle); !st.ok() {
		res.status = StatusFatalError
		res.saveMessageField(DiagDebug, "error - isc_dsql_allocate_statement")
		c.collectError(res)
		c.clearExecResult(res)
		return res
	}

	tempTrans := false
	if *trans == 0 {
		c.startTransaction(trans)
		tempTrans = true
	}

	if st := c.eng.prepare(c.sv, trans, &res.stmtHandle, query, nil); !st.ok() {
		res.saveMessageField(DiagDebug, "error - isc_dsql_prepare")
		c.collectError(res)
		c.rollbackTransaction(trans)
		res.status = StatusFatalError
		c.clearExecResult(res)
		return res
	}

	if tempTrans {
		c.rollbackTransaction(trans)
	}

	statementType, err := c.statementType(&res.stmtHandle)
	if err != nil {
		res.saveMessageField(DiagDebug, "error - isc_dsql_sql_info")
		c.collectError(res)
		c.rollbackTransaction(trans)
		res.status = StatusFatalError
		c.clearExecResult(res)
		return res
	}
	res.statementType = statementType
	c.log(LogDebug1, "statement_type: %d", statementType)

	switch statementType {
	case stmtInsert, stmtUpdate, stmtDelete, stmtSelect, stmtExecProcedure:
	default:
		res.saveMessageField(DiagDebug, "error - stmt type is not DML")
		c.collectError(res)
		c.rollbackTransaction(trans)
		res.status = StatusFatalError
		c.clearExecResult(res)
		return res
	}

	return res
}

// execParams binds values to a prepared statement's parameters and runs
// it. res must come from prepareResult (or carry a prepared statement's
// handle and type). freeStmt drops the statement handle once the result
// is complete; prepared statements pass false so the handle survives for
// the next execution.
func (c *Conn) execParams(trans *uintptr, res *Result, freeStmt bool, values []*string, formats []int) *Result {
	if st := c.eng.describeBind(c.sv, &res.stmtHandle, res.sqldaIn); !st.ok() {
		res.saveMessageField(DiagDebug, "error - isc_dsql_describe_bind")
		c.collectError(res)
		res.status = StatusFatalError
		c.rollbackTransaction(trans)
		c.clearExecResultParams(res, freeStmt)
		return res
	}

	if *trans == 0 {
		c.log(LogDebug1, "execParams: starting transaction...")
		c.startTransaction(trans)
		if !c.autocommit {
			c.inUserTransaction = true
		}
	}

	if res.sqldaIn.sqld > res.sqldaIn.sqln {
		res.sqldaIn.grow(res.sqldaIn.sqld)
		c.eng.describeBind(c.sv, &res.stmtHandle, res.sqldaIn)
		c.log(LogDebug1, "input descriptors regrown to %d", res.sqldaIn.sqld)
	}

	nparams := res.sqldaIn.sqld
	if len(values) < nparams {
		msg := fmt.Sprintf("statement requires %d parameters, %d supplied", nparams, len(values))
		res.saveMessageField(DiagMessagePrimary, "%s", msg)
		res.errMsg = msg
		c.errMsg = msg
		res.status = StatusFatalError
		c.clearExecResultParams(res, freeStmt)
		return res
	}

	for i := 0; i < nparams; i++ {
		format := 0
		if i < len(formats) {
			format = formats[i]
		}
		if err := c.bindParam(&res.sqldaIn.vars[i], values[i], format, trans); err != nil {
			res.saveMessageField(DiagDebug, "%s", err.Error())
			if c.sv.hasError() {
				c.collectError(res)
			} else {
				res.errMsg = err.Error()
				c.errMsg = err.Error()
			}
			res.status = StatusFatalError
			c.clearExecResultParams(res, freeStmt)
			return res
		}
	}

	if st := c.eng.describe(c.sv, &res.stmtHandle, res.sqldaOut); !st.ok() {
		c.collectError(res)
		res.saveMessageField(DiagDebug, "isc_dsql_describe")
		res.status = StatusFatalError
		c.clearExecResultParams(res, freeStmt)
		return res
	}

	res.ncols = res.sqldaOut.sqld
	c.log(LogDebug2, "execParams: ncols is %d", res.ncols)

	if res.ncols == 0 {
		if st := c.eng.execute(c.sv, trans, &res.stmtHandle, res.sqldaIn); !st.ok() {
			c.log(LogDebug1, "isc_dsql_execute(): error")
			res.saveMessageField(DiagDebug, "isc_dsql_execute() error")
			c.collectError(res)
			res.status = StatusFatalError
			if c.autocommit && !c.inUserTransaction {
				c.rollbackTransaction(trans)
			}
			c.clearExecResultParams(res, freeStmt)
			return res
		}

		c.log(LogDebug1, "execParams: finished non-SELECT with no rows to return")
		res.status = StatusCommandOK

		if c.autocommit && !c.inUserTransaction {
			c.log(LogDebug1, "committing...")
			c.commitTransaction(trans)
		}

		c.clearExecResultParams(res, freeStmt)
		return res
	}

	if res.sqldaOut.sqln < res.ncols {
		res.sqldaOut.grow(res.ncols)
		c.eng.describe(c.sv, &res.stmtHandle, res.sqldaOut)
		res.ncols = res.sqldaOut.sqld
	}

	if err := res.sqldaOut.allocOutputSlots(); err != nil {
		res.saveMessageField(DiagDebug, "%s", err.Error())
		res.status = StatusFatalError
		c.clearExecResultParams(res, freeStmt)
		return res
	}

	// EXECUTE PROCEDURE returns its single row through the output
	// descriptors of the execute call itself; everything else is fetched.
	var st iscStatus
	if res.statementType == stmtExecProcedure {
		st = c.eng.execute2(c.sv, trans, &res.stmtHandle, res.sqldaIn, res.sqldaOut)
	} else {
		st = c.eng.execute(c.sv, trans, &res.stmtHandle, res.sqldaIn)
	}
	if !st.ok() {
		res.saveMessageField(DiagDebug, "isc_dsql_execute2() error")
		res.status = StatusFatalError
		c.collectError(res)
		if c.autocommit && !c.inUserTransaction {
			c.rollbackTransaction(trans)
		}
		c.clearExecResultParams(res, freeStmt)
		return res
	}

	if res.statementType == stmtExecProcedure {
		c.storeRow(res, trans)
		res.ntups = 1
	} else {
		numRows := 0
		var retcode iscStatus
		for {
			retcode = c.eng.fetch(c.sv, &res.stmtHandle, res.sqldaOut)
			if retcode != 0 {
				break
			}
			c.storeRow(res, trans)
			numRows++
		}

		if retcode != fetchNoMoreRows {
			res.saveMessageField(DiagDebug, "isc_dsql_fetch() error")
			res.status = StatusFatalError
			c.collectError(res)
			if c.autocommit && !c.inUserTransaction {
				c.rollbackTransaction(trans)
			}
			c.clearExecResultParams(res, freeStmt)
			return res
		}
		res.ntups = numRows
	}

	if freeStmt {
		if st := c.eng.freeStatement(c.sv, &res.stmtHandle, dsqlDrop); !st.ok() {
			res.saveMessageField(DiagDebug, "error - isc_dsql_free_statement")
			c.collectError(res)
			c.rollbackTransaction(trans)
			res.status = StatusFatalError
			res.stmtHandle = 0
			res.sqldaIn, res.sqldaOut = nil, nil
			return res
		}
		res.stmtHandle = 0
	}

	res.status = StatusTuplesOK

	if c.autocommit && !c.inUserTransaction {
		c.commitTransaction(trans)
	}

	res.sqldaIn, res.sqldaOut = nil, nil
	return res
}

// statementType asks the server what kind of statement a handle holds.
func (c *Conn) statementType(stmt *uintptr) (int, error) {
	items := []byte{iscInfoSQLStmtType}
	buf := make([]byte, 20)
	if st := c.eng.statementInfo(c.sv, stmt, items, buf); !st.ok() {
		return 0, NewError(ErrExec, "unable to determine statement type")
	}
	length := int(c.eng.vaxInteger(buf[1:3]))
	return int(c.eng.vaxInteger(buf[3 : 3+length])), nil
}

// clearExecResult releases a one-shot result's descriptor scratch space
// and drops its statement handle.
func (c *Conn) clearExecResult(res *Result) {
	c.clearExecResultParams(res, true)
}

// clearExecResultParams releases a result's descriptor scratch space.
// The statement handle is dropped only for one-shot executions; prepared
// statements keep theirs until Statement.Close.
func (c *Conn) clearExecResultParams(res *Result, freeStmt bool) {
	res.sqldaIn = nil
	res.sqldaOut = nil
	if freeStmt && res.stmtHandle != 0 {
		c.eng.freeStatement(c.sv, &res.stmtHandle, dsqlDrop)
		res.stmtHandle = 0
	}
}

// closedResult builds the fatal result returned for operations on a
// closed connection.
func closedResult() *Result {
	res := newResult(false)
	res.status = StatusFatalError
	res.errMsg = "connection is closed"
	res.saveMessageField(DiagMessagePrimary, "connection is closed")
	return res
}

// resultError converts a failed result into an error, preferring the
// primary diagnostic line over the composite message.
func resultError(typ ErrorType, res *Result, fallback string) error {
	msg := res.ErrorField(DiagMessagePrimary)
	if msg == "" {
		msg = res.errMsg
	}
	if msg == "" {
		msg = fallback
	}
	err := NewError(typ, msg)
	err.Code = res.sqlCode
	return err
}

// Statement is a prepared DML statement. It holds a server-side
// statement handle; each Exec binds fresh parameter values and produces
// an independent Result. A Statement is bound to the connection that
// prepared it and is not safe for concurrent use.
type Statement struct {
	conn          *Conn
	handle        uintptr
	statementType int
	closed        int32
}

// Exec runs the prepared statement with the given parameter values.
// values and formats follow the same rules as Conn.ExecParams.
func (s *Statement) Exec(values []*string, formats []int) *Result {
	if s == nil || s.conn == nil {
		return nil
	}
	if atomic.LoadInt32(&s.closed) != 0 {
		res := newResult(false)
		res.status = StatusFatalError
		res.errMsg = "statement is closed"
		res.saveMessageField(DiagMessagePrimary, "statement is closed")
		return res
	}
	if s.conn.isClosed() {
		return closedResult()
	}

	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	res := newResult(true)
	res.stmtHandle = s.handle
	res.statementType = s.statementType

	return c.execParams(&c.trans, res, false, values, formats)
}

// Close drops the server-side statement handle. Closing an already
// closed Statement is a no-op.
func (s *Statement) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	if s.conn.isClosed() {
		return nil
	}

	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if st := c.eng.freeStatement(c.sv, &s.handle, dsqlDrop); !st.ok() {
		return NewError(ErrExec, "unable to free statement")
	}
	s.handle = 0
	return nil
}
