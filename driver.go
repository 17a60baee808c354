package firebird

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Driver implements database/sql/driver.Driver. It is registered under
// the name "firebird".
type Driver struct{}

// Open opens a connection. The data source name is a space-separated
// list of key=value pairs using the same keys as ConnectParams:
//
//	db_path=localhost:/data/employee.fdb user=SYSDBA password=masterkey
func (d *Driver) Open(name string) (driver.Conn, error) {
	params, err := parseDSN(name)
	if err != nil {
		return nil, err
	}

	conn, err := ConnectParams(params)
	if err != nil {
		return nil, err
	}

	return &drvConn{conn: conn}, nil
}

// parseDSN splits a conninfo-style data source name into parameters.
// Values containing spaces must be wrapped in single quotes.
func parseDSN(name string) (map[string]string, error) {
	params := make(map[string]string)

	s := strings.TrimSpace(name)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return nil, NewError(ErrConnection, fmt.Sprintf("malformed connection string near %q", s))
		}
		key := strings.TrimSpace(s[:eq])
		s = strings.TrimLeft(s[eq+1:], " \t")

		var value string
		if len(s) > 0 && s[0] == '\'' {
			end := strings.IndexByte(s[1:], '\'')
			if end < 0 {
				return nil, NewError(ErrConnection, "unterminated quoted value in connection string")
			}
			value = s[1 : 1+end]
			s = s[end+2:]
		} else if sp := strings.IndexAny(s, " \t"); sp >= 0 {
			value, s = s[:sp], s[sp:]
		} else {
			value, s = s, ""
		}

		params[key] = value
		s = strings.TrimSpace(s)
	}

	return params, nil
}

// drvConn adapts a Conn to the driver contract.
type drvConn struct {
	conn *Conn
}

// Prepare prepares a statement. The '?' parameter markers match the
// database/sql placeholder convention directly.
func (dc *drvConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := dc.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &drvStmt{stmt: stmt}, nil
}

// Close closes the underlying connection.
func (dc *drvConn) Close() error {
	return dc.conn.Close()
}

// Begin opens a user transaction by executing SET TRANSACTION, which
// suspends autocommit until the matching COMMIT or ROLLBACK runs.
func (dc *drvConn) Begin() (driver.Tx, error) {
	res := dc.conn.Exec("SET TRANSACTION")
	switch res.Status() {
	case StatusTransactionStart:
		return &drvTx{conn: dc.conn}, nil
	case StatusEmptyQuery:
		return nil, NewError(ErrTransaction, "already in transaction")
	}
	return nil, resultError(ErrTransaction, res, "unable to start transaction")
}

// Exec executes a query without preparing it separately.
func (dc *drvConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	values, err := convertDriverValues(args)
	if err != nil {
		return nil, err
	}

	var res *Result
	if len(values) == 0 {
		res = dc.conn.Exec(query)
	} else {
		res = dc.conn.ExecParams(query, values, nil)
	}
	if err := execError(res); err != nil {
		return nil, err
	}

	return drvResult{}, nil
}

// Query executes a row-returning query without preparing it separately.
func (dc *drvConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	values, err := convertDriverValues(args)
	if err != nil {
		return nil, err
	}

	var res *Result
	if len(values) == 0 {
		res = dc.conn.Exec(query)
	} else {
		res = dc.conn.ExecParams(query, values, nil)
	}
	if err := execError(res); err != nil {
		return nil, err
	}

	return newRows(res), nil
}

// drvTx finishes the user transaction opened by Begin. Commit and
// Rollback go through the executor's pseudo-statements so the
// autocommit bookkeeping stays consistent.
type drvTx struct {
	conn *Conn
}

func (tx *drvTx) Commit() error {
	res := tx.conn.Exec("COMMIT")
	if res.Status() == StatusTransactionCommit {
		return nil
	}
	return resultError(ErrTransaction, res, "unable to commit transaction")
}

func (tx *drvTx) Rollback() error {
	res := tx.conn.Exec("ROLLBACK")
	if res.Status() == StatusTransactionRollback {
		return nil
	}
	return resultError(ErrTransaction, res, "unable to roll back transaction")
}

// drvStmt adapts a prepared Statement to the driver contract.
type drvStmt struct {
	stmt *Statement
}

func (ds *drvStmt) Close() error {
	return ds.stmt.Close()
}

// NumInput returns -1: the parameter count is known only to the server,
// and the executor validates it on each run.
func (ds *drvStmt) NumInput() int {
	return -1
}

func (ds *drvStmt) Exec(args []driver.Value) (driver.Result, error) {
	values, err := convertDriverValues(args)
	if err != nil {
		return nil, err
	}

	res := ds.stmt.Exec(values, nil)
	if err := execError(res); err != nil {
		return nil, err
	}

	return drvResult{}, nil
}

func (ds *drvStmt) Query(args []driver.Value) (driver.Rows, error) {
	values, err := convertDriverValues(args)
	if err != nil {
		return nil, err
	}

	res := ds.stmt.Exec(values, nil)
	if err := execError(res); err != nil {
		return nil, err
	}

	return newRows(res), nil
}

// drvResult is the driver result for execute statements. The remote API
// used here does not report affected row counts or generated ids.
type drvResult struct{}

func (drvResult) LastInsertId() (int64, error) {
	return 0, NewError(ErrGeneric, "LastInsertId is not supported")
}

func (drvResult) RowsAffected() (int64, error) {
	return 0, NewError(ErrGeneric, "RowsAffected is not supported")
}

// execError maps a failed result to a driver error, nil otherwise.
func execError(res *Result) error {
	switch res.Status() {
	case StatusBadResponse, StatusNonFatalError, StatusFatalError:
		return resultError(ErrExec, res, "query failed")
	}
	return nil
}

// convertDriverValues renders driver values in the text forms the
// parameter codec expects. nil stays nil and binds NULL.
func convertDriverValues(args []driver.Value) ([]*string, error) {
	if len(args) == 0 {
		return nil, nil
	}

	values := make([]*string, len(args))
	for i, arg := range args {
		if arg == nil {
			continue
		}

		var s string
		switch v := arg.(type) {
		case string:
			s = v
		case []byte:
			s = string(v)
		case int64:
			s = strconv.FormatInt(v, 10)
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			if v {
				s = "true"
			} else {
				s = "false"
			}
		case time.Time:
			s = v.Format("2006-01-02 15:04:05.0000")
		default:
			return nil, NewError(ErrBind, fmt.Sprintf("unsupported parameter type %T", arg))
		}
		values[i] = &s
	}

	return values, nil
}
