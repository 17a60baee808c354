package firebird

import (
	"encoding/binary"
	"fmt"
	"strings"
	"testing"
)

func strptr(s string) *string {
	return &s
}

// TestExecSelect runs a query through the whole pipeline: prepare,
// describe, execute, fetch and materialize. Column 0 is a NUMERIC(10,2)
// backed by a scaled integer, column 1 a nullable VARCHAR that is NULL
// on the middle row.
func TestExecSelect(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("SELECT num, txt FROM t", &scriptStmt{
		stmtType: stmtSelect,
		cols: []scriptCol{
			{sqltype: int16(TypeLong), scale: -2, length: 4, name: "NUM", relname: "T"},
			nullableCol("TXT", TypeVarying, 20),
		},
		rows: [][][]byte{
			{int32Slot(-5), varyingSlot("first")},
			{int32Slot(150), nil},
			{int32Slot(0), varyingSlot("third")},
		},
	})

	res := c.Exec("SELECT num, txt FROM t")
	defer res.Clear()

	if res.Status() != StatusTuplesOK {
		t.Fatalf("Expected FBRES_TUPLES_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}
	if res.RowCount() != 3 {
		t.Fatalf("Expected 3 rows, got %d", res.RowCount())
	}
	if res.ColumnCount() != 2 {
		t.Fatalf("Expected 2 columns, got %d", res.ColumnCount())
	}

	for row, expected := range []string{"-0.05", "1.50", "0.00"} {
		if got := res.Value(row, 0); got != expected {
			t.Errorf("Row %d: expected %q, got %q", row, expected, got)
		}
	}
	for row, expected := range []string{"first", "", "third"} {
		if got := res.Value(row, 1); got != expected {
			t.Errorf("Row %d: expected %q, got %q", row, expected, got)
		}
	}

	if res.IsNull(0, 1) || res.IsNull(2, 1) {
		t.Error("Expected non-NULL text on rows 0 and 2")
	}
	if !res.IsNull(1, 1) {
		t.Error("Expected NULL text on row 1")
	}
	if res.FieldHasNull(0) {
		t.Error("Expected no NULLs in the numeric column")
	}
	if !res.FieldHasNull(1) {
		t.Error("Expected the text column to be marked as holding a NULL")
	}

	// The query committed under autocommit; nothing should be open.
	if c.trans != 0 {
		t.Error("Expected the default transaction handle to be resolved")
	}
	if len(e.active) != 0 {
		t.Errorf("Expected no open transactions, found %d", len(e.active))
	}
}

func TestExecInsertAutocommit(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("INSERT INTO t VALUES (1)", &scriptStmt{stmtType: stmtInsert})

	commits := e.commits

	res := c.Exec("INSERT INTO t VALUES (1)")
	if res.Status() != StatusCommandOK {
		t.Fatalf("Expected FBRES_COMMAND_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}
	if res.RowCount() != -1 {
		t.Errorf("Expected no row count for DML, got %d", res.RowCount())
	}

	if e.commits != commits+1 {
		t.Errorf("Expected one commit, got %d", e.commits-commits)
	}
	if c.trans != 0 {
		t.Error("Expected the transaction handle to be resolved")
	}
	if c.InTransaction() {
		t.Error("Expected no user transaction after autocommitted DML")
	}
	if len(e.active) != 0 {
		t.Errorf("Expected no open transactions, found %d", len(e.active))
	}
}

// TestExecInsertAutocommitOff verifies that with autocommit disabled a
// plain statement opens a transaction and leaves it running until an
// explicit COMMIT.
func TestExecInsertAutocommitOff(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("INSERT INTO t VALUES (1)", &scriptStmt{stmtType: stmtInsert})
	e.script("COMMIT", &scriptStmt{stmtType: stmtCommit})

	c.SetAutocommit(false)
	commits := e.commits

	res := c.Exec("INSERT INTO t VALUES (1)")
	if res.Status() != StatusCommandOK {
		t.Fatalf("Expected FBRES_COMMAND_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}

	if e.commits != commits {
		t.Error("Expected no commit with autocommit off")
	}
	if c.trans == 0 {
		t.Fatal("Expected the transaction to stay open")
	}
	if !c.InTransaction() {
		t.Error("Expected the connection to be in a user transaction")
	}

	res = c.Exec("COMMIT")
	if res.Status() != StatusTransactionCommit {
		t.Fatalf("Expected FBRES_TRANSACTION_COMMIT, got %s", res.Status())
	}
	if e.commits != commits+1 {
		t.Errorf("Expected one commit, got %d", e.commits-commits)
	}
	if c.trans != 0 || c.InTransaction() {
		t.Error("Expected the user transaction to be closed")
	}
}

// TestUserTransactionSuppressesAutocommit checks that a SET TRANSACTION
// statement turns off per-statement resolution even while autocommit
// stays enabled.
func TestUserTransactionSuppressesAutocommit(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("SET TRANSACTION", &scriptStmt{stmtType: stmtStartTrans})
	e.script("INSERT INTO t VALUES (1)", &scriptStmt{stmtType: stmtInsert})
	e.script("SELECT x FROM t", &scriptStmt{
		stmtType: stmtSelect,
		cols:     []scriptCol{nullableCol("X", TypeLong, 4)},
		rows:     [][][]byte{{int32Slot(1)}},
	})
	e.script("ROLLBACK", &scriptStmt{stmtType: stmtRollback})

	res := c.Exec("SET TRANSACTION")
	if res.Status() != StatusTransactionStart {
		t.Fatalf("Expected FBRES_TRANSACTION_START, got %s: %s", res.Status(), res.ErrorMessage())
	}
	if !c.InTransaction() {
		t.Fatal("Expected the connection to be in a user transaction")
	}

	commits := e.commits
	rollbacks := e.rollbacks

	if res := c.Exec("INSERT INTO t VALUES (1)"); res.Status() != StatusCommandOK {
		t.Fatalf("Expected FBRES_COMMAND_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}
	if res := c.Exec("SELECT x FROM t"); res.Status() != StatusTuplesOK {
		t.Fatalf("Expected FBRES_TUPLES_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}

	if e.commits != commits || e.rollbacks != rollbacks {
		t.Error("Expected no transaction resolution inside a user transaction")
	}
	if c.trans == 0 {
		t.Fatal("Expected the user transaction to stay open")
	}

	res = c.Exec("ROLLBACK")
	if res.Status() != StatusTransactionRollback {
		t.Fatalf("Expected FBRES_TRANSACTION_ROLLBACK, got %s", res.Status())
	}
	if e.rollbacks != rollbacks+1 {
		t.Errorf("Expected one rollback, got %d", e.rollbacks-rollbacks)
	}
	if c.trans != 0 || c.InTransaction() {
		t.Error("Expected the user transaction to be closed")
	}
	if len(e.active) != 0 {
		t.Errorf("Expected no open transactions, found %d", len(e.active))
	}
}

// TestPseudoStatementWarnings covers COMMIT/ROLLBACK outside a
// transaction and SET TRANSACTION inside one: each is recognized but
// deliberately not executed.
func TestPseudoStatementWarnings(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("SET TRANSACTION", &scriptStmt{stmtType: stmtStartTrans})
	e.script("COMMIT", &scriptStmt{stmtType: stmtCommit})
	e.script("ROLLBACK", &scriptStmt{stmtType: stmtRollback})

	if res := c.Exec("COMMIT"); res.Status() != StatusEmptyQuery {
		t.Errorf("Expected FBRES_EMPTY_QUERY for COMMIT outside a transaction, got %s", res.Status())
	}
	if res := c.Exec("ROLLBACK"); res.Status() != StatusEmptyQuery {
		t.Errorf("Expected FBRES_EMPTY_QUERY for ROLLBACK outside a transaction, got %s", res.Status())
	}

	if res := c.Exec("SET TRANSACTION"); res.Status() != StatusTransactionStart {
		t.Fatalf("Expected FBRES_TRANSACTION_START, got %s", res.Status())
	}
	trans := c.trans

	if res := c.Exec("SET TRANSACTION"); res.Status() != StatusEmptyQuery {
		t.Errorf("Expected FBRES_EMPTY_QUERY for a nested SET TRANSACTION, got %s", res.Status())
	}
	if c.trans != trans {
		t.Error("Expected the running transaction to be untouched")
	}
	if !c.InTransaction() {
		t.Error("Expected the user transaction to survive")
	}

	c.Exec("ROLLBACK")
}

func TestExecDDL(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("CREATE TABLE t (x INTEGER)", &scriptStmt{stmtType: stmtDDL})

	commits := e.commits

	res := c.Exec("CREATE TABLE t (x INTEGER)")
	if res.Status() != StatusCommandOK {
		t.Fatalf("Expected FBRES_COMMAND_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}
	if e.commits != commits+1 {
		t.Errorf("Expected DDL to commit, got %d commits", e.commits-commits)
	}
	if len(e.active) != 0 {
		t.Errorf("Expected no open transactions, found %d", len(e.active))
	}
}

func TestExecDDLInUserTransaction(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("SET TRANSACTION", &scriptStmt{stmtType: stmtStartTrans})
	e.script("CREATE TABLE t (x INTEGER)", &scriptStmt{stmtType: stmtDDL})
	e.script("ROLLBACK", &scriptStmt{stmtType: stmtRollback})

	if res := c.Exec("SET TRANSACTION"); res.Status() != StatusTransactionStart {
		t.Fatalf("Expected FBRES_TRANSACTION_START, got %s", res.Status())
	}

	commits := e.commits
	if res := c.Exec("CREATE TABLE t (x INTEGER)"); res.Status() != StatusCommandOK {
		t.Fatalf("Expected FBRES_COMMAND_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}
	if e.commits != commits {
		t.Error("Expected DDL inside a user transaction not to commit")
	}
	if c.trans == 0 {
		t.Error("Expected the user transaction to stay open")
	}

	c.Exec("ROLLBACK")
}

// TestExecPrepareError covers a statement the server rejects at parse
// time: fatal status, classified diagnostics, error coordinates.
func TestExecPrepareError(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	res := c.Exec("SELEC broken")
	if res.Status() != StatusFatalError {
		t.Fatalf("Expected FBRES_FATAL_ERROR, got %s", res.Status())
	}
	if res.SQLCode() != -104 {
		t.Errorf("Expected SQLCODE -104, got %d", res.SQLCode())
	}
	if !strings.Contains(res.ErrorMessage(), "Token unknown") {
		t.Errorf("Expected a token error, got %q", res.ErrorMessage())
	}
	if res.ErrorLine() != 1 || res.ErrorColumn() != 1 {
		t.Errorf("Expected error at 1/1, got %d/%d", res.ErrorLine(), res.ErrorColumn())
	}
	if len(e.active) != 0 {
		t.Errorf("Expected no open transactions, found %d", len(e.active))
	}
}

// TestExecSelectFailureRollsBack injects an execute error under
// autocommit and verifies the internally started transaction is rolled
// back instead of leaking.
func TestExecSelectFailureRollsBack(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("SELECT x FROM locked", &scriptStmt{
		stmtType: stmtSelect,
		cols:     []scriptCol{nullableCol("X", TypeLong, 4)},
		executeFailure: []string{
			"lock conflict on no wait transaction",
			"SQL error code = -901",
			"deadlock",
		},
	})

	rollbacks := e.rollbacks

	res := c.Exec("SELECT x FROM locked")
	if res.Status() != StatusFatalError {
		t.Fatalf("Expected FBRES_FATAL_ERROR, got %s", res.Status())
	}
	if !strings.Contains(res.ErrorMessage(), "lock conflict") {
		t.Errorf("Expected the lock conflict message, got %q", res.ErrorMessage())
	}
	if e.rollbacks <= rollbacks {
		t.Error("Expected the statement transaction to be rolled back")
	}
	if len(e.active) != 0 {
		t.Errorf("Expected no open transactions, found %d", len(e.active))
	}
}

// TestExecFetchErrorMidStream fails the fetch loop after one row was
// already delivered.
func TestExecFetchErrorMidStream(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("SELECT x FROM t", &scriptStmt{
		stmtType: stmtSelect,
		cols:     []scriptCol{nullableCol("X", TypeLong, 4)},
		rows: [][][]byte{
			{int32Slot(1)},
			{int32Slot(2)},
			{int32Slot(3)},
		},
		failFetchAfter: 1,
	})

	res := c.Exec("SELECT x FROM t")
	if res.Status() != StatusFatalError {
		t.Fatalf("Expected FBRES_FATAL_ERROR, got %s", res.Status())
	}
	if res.SQLCode() != -902 {
		t.Errorf("Expected SQLCODE -902, got %d", res.SQLCode())
	}
	if len(e.active) != 0 {
		t.Errorf("Expected no open transactions, found %d", len(e.active))
	}
}

// TestExecDescriptorGrowth selects more columns than the initial
// descriptor block holds, forcing a regrow and a second describe.
func TestExecDescriptorGrowth(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	ncols := initialDescriptorSlots + 5
	cols := make([]scriptCol, ncols)
	row := make([][]byte, ncols)
	for i := 0; i < ncols; i++ {
		cols[i] = nullableCol(fmt.Sprintf("C%02d", i+1), TypeLong, 4)
		row[i] = int32Slot(int32(i))
	}

	e.script("SELECT * FROM wide", &scriptStmt{
		stmtType: stmtSelect,
		cols:     cols,
		rows:     [][][]byte{row},
	})

	res := c.Exec("SELECT * FROM wide")
	defer res.Clear()

	if res.Status() != StatusTuplesOK {
		t.Fatalf("Expected FBRES_TUPLES_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}
	if res.ColumnCount() != ncols {
		t.Fatalf("Expected %d columns, got %d", ncols, res.ColumnCount())
	}
	if got := res.Value(0, ncols-1); got != fmt.Sprintf("%d", ncols-1) {
		t.Errorf("Expected last column value %d, got %q", ncols-1, got)
	}
	if got := res.FieldName(ncols - 1); got != fmt.Sprintf("C%02d", ncols) {
		t.Errorf("Expected last column name C%02d, got %q", ncols, got)
	}
}

// TestExecUnknownOutputType verifies an unrecognized output type fails
// the whole execution up front rather than degrading per datum.
func TestExecUnknownOutputType(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("SELECT q FROM t", &scriptStmt{
		stmtType: stmtSelect,
		cols:     []scriptCol{plainCol("Q", TypeQuad, 8)},
		rows:     [][][]byte{{int64Slot(1)}},
	})

	res := c.Exec("SELECT q FROM t")
	if res.Status() != StatusFatalError {
		t.Fatalf("Expected FBRES_FATAL_ERROR, got %s", res.Status())
	}
	if got := res.ErrorField(DiagDebug); !strings.Contains(got, "Unhandled sqlda_out type") {
		t.Errorf("Expected an unhandled output type diagnostic, got %q", got)
	}
}

func TestExecParams(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("INSERT INTO t (txt, num) VALUES (?, ?)", &scriptStmt{
		stmtType: stmtInsert,
		params: []scriptCol{
			nullableCol("", TypeVarying, 20),
			{sqltype: int16(TypeLong), scale: -2, length: 4},
		},
	})

	commits := e.commits

	res := c.ExecParams("INSERT INTO t (txt, num) VALUES (?, ?)",
		[]*string{strptr("hello"), strptr("1.5")}, nil)
	if res.Status() != StatusCommandOK {
		t.Fatalf("Expected FBRES_COMMAND_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}

	if len(e.lastBound) != 2 {
		t.Fatalf("Expected 2 bound parameters, got %d", len(e.lastBound))
	}
	if string(e.lastBound[0].data) != "hello" {
		t.Errorf("Expected text parameter %q, got %q", "hello", e.lastBound[0].data)
	}
	if got := int32(binary.LittleEndian.Uint32(e.lastBound[1].data)); got != 150 {
		t.Errorf("Expected scaled parameter 150, got %d", got)
	}

	if e.commits != commits+1 {
		t.Errorf("Expected one commit, got %d", e.commits-commits)
	}
	if len(e.active) != 0 {
		t.Errorf("Expected no open transactions, found %d", len(e.active))
	}
}

func TestExecParamsNull(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("UPDATE t SET txt = ?", &scriptStmt{
		stmtType: stmtUpdate,
		params:   []scriptCol{nullableCol("", TypeVarying, 20)},
	})

	res := c.ExecParams("UPDATE t SET txt = ?", []*string{nil}, nil)
	if res.Status() != StatusCommandOK {
		t.Fatalf("Expected FBRES_COMMAND_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}
	if len(e.lastBound) != 1 {
		t.Fatalf("Expected 1 bound parameter, got %d", len(e.lastBound))
	}
	if !e.lastBound[0].isNull {
		t.Error("Expected the parameter to be bound as NULL")
	}
}

func TestExecParamsTooFew(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("INSERT INTO t (a, b) VALUES (?, ?)", &scriptStmt{
		stmtType: stmtInsert,
		params: []scriptCol{
			nullableCol("", TypeVarying, 20),
			nullableCol("", TypeVarying, 20),
		},
	})

	res := c.ExecParams("INSERT INTO t (a, b) VALUES (?, ?)", []*string{strptr("only")}, nil)
	if res.Status() != StatusFatalError {
		t.Fatalf("Expected FBRES_FATAL_ERROR, got %s", res.Status())
	}
	if !strings.Contains(res.ErrorMessage(), "requires 2 parameters, 1 supplied") {
		t.Errorf("Expected a parameter count error, got %q", res.ErrorMessage())
	}
}

// TestExecParamsSelect runs a parameterized query that returns rows,
// with the db-key format flag on the parameter.
func TestExecParamsSelect(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("SELECT txt FROM t WHERE rdb$db_key = ?", &scriptStmt{
		stmtType: stmtSelect,
		cols:     []scriptCol{nullableCol("TXT", TypeVarying, 20)},
		params:   []scriptCol{plainCol("", TypeText, 8)},
		rows:     [][][]byte{{varyingSlot("found")}},
	})

	res := c.ExecParams("SELECT txt FROM t WHERE rdb$db_key = ?",
		[]*string{strptr("86000000DE030000")}, []int{-1})
	defer res.Clear()

	if res.Status() != StatusTuplesOK {
		t.Fatalf("Expected FBRES_TUPLES_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}
	if got := res.Value(0, 0); got != "found" {
		t.Errorf("Expected %q, got %q", "found", got)
	}

	if len(e.lastBound) != 1 {
		t.Fatalf("Expected 1 bound parameter, got %d", len(e.lastBound))
	}
	expected := []byte{0x86, 0x00, 0x00, 0x00, 0xDE, 0x03, 0x00, 0x00}
	if string(e.lastBound[0].data) != string(expected) {
		t.Errorf("Expected raw db-key %x, got %x", expected, e.lastBound[0].data)
	}
}

func TestExecProcedure(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("EXECUTE PROCEDURE next_id", &scriptStmt{
		stmtType: stmtExecProcedure,
		cols:     []scriptCol{plainCol("ID", TypeLong, 4)},
		rows:     [][][]byte{{int32Slot(42)}},
	})

	res := c.ExecParams("EXECUTE PROCEDURE next_id", nil, nil)
	defer res.Clear()

	if res.Status() != StatusTuplesOK {
		t.Fatalf("Expected FBRES_TUPLES_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}
	if res.RowCount() != 1 {
		t.Fatalf("Expected the single procedure row, got %d", res.RowCount())
	}
	if got := res.Value(0, 0); got != "42" {
		t.Errorf("Expected 42, got %q", got)
	}
}

func TestPreparedStatement(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("INSERT INTO t (x) VALUES (?)", &scriptStmt{
		stmtType: stmtInsert,
		params:   []scriptCol{plainCol("", TypeLong, 4)},
	})

	stmt, err := c.Prepare("INSERT INTO t (x) VALUES (?)")
	if err != nil {
		t.Fatalf("Failed to prepare: %v", err)
	}

	for _, value := range []string{"1", "2"} {
		res := stmt.Exec([]*string{strptr(value)}, nil)
		if res.Status() != StatusCommandOK {
			t.Fatalf("Expected FBRES_COMMAND_OK, got %s: %s", res.Status(), res.ErrorMessage())
		}
	}
	if got := int32(binary.LittleEndian.Uint32(e.lastBound[0].data)); got != 2 {
		t.Errorf("Expected the second execution to bind 2, got %d", got)
	}

	if err := stmt.Close(); err != nil {
		t.Fatalf("Failed to close statement: %v", err)
	}
	if err := stmt.Close(); err != nil {
		t.Errorf("Expected closing twice to be a no-op, got %v", err)
	}

	res := stmt.Exec([]*string{strptr("3")}, nil)
	if res.Status() != StatusFatalError {
		t.Errorf("Expected FBRES_FATAL_ERROR on a closed statement, got %s", res.Status())
	}
	if !strings.Contains(res.ErrorMessage(), "statement is closed") {
		t.Errorf("Expected a closed statement message, got %q", res.ErrorMessage())
	}
}

func TestPrepareRejectsNonDML(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("CREATE TABLE t (x INTEGER)", &scriptStmt{stmtType: stmtDDL})

	if _, err := c.Prepare("CREATE TABLE t (x INTEGER)"); err == nil {
		t.Error("Expected preparing DDL to fail")
	}
}

func TestExecTransaction(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("UPDATE t SET x = 1", &scriptStmt{stmtType: stmtUpdate})

	res := c.ExecTransaction("UPDATE t SET x = 1")
	if res.Status() != StatusCommandOK {
		t.Fatalf("Expected FBRES_COMMAND_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}
	if c.trans != 0 {
		t.Error("Expected the default transaction handle to be untouched")
	}
	if len(e.active) != 0 {
		t.Errorf("Expected no open transactions, found %d", len(e.active))
	}
}

func TestExecTransactionFailure(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	res := c.ExecTransaction("UPDATE missing SET x = 1")
	if res.Status() != StatusFatalError {
		t.Fatalf("Expected FBRES_FATAL_ERROR, got %s", res.Status())
	}
	if len(e.active) != 0 {
		t.Errorf("Expected no open transactions, found %d", len(e.active))
	}
}

func TestExplain(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("SELECT x FROM t", &scriptStmt{
		stmtType: stmtSelect,
		cols:     []scriptCol{nullableCol("X", TypeLong, 4)},
		plan:     "\nPLAN (T NATURAL)",
	})

	plan, err := c.Explain("SELECT x FROM t")
	if err != nil {
		t.Fatalf("Failed to explain: %v", err)
	}
	if !strings.Contains(plan, "PLAN (T NATURAL)") {
		t.Errorf("Expected the scripted plan, got %q", plan)
	}
	if len(e.active) != 0 {
		t.Errorf("Expected no open transactions, found %d", len(e.active))
	}

	if _, err := c.Explain("SELECT broken"); err == nil {
		t.Error("Expected explaining an invalid statement to fail")
	}
}

// TestExecBlobColumn streams a blob larger than one segment through the
// fetch path.
func TestExecBlobColumn(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	content := strings.Repeat("abcdefgh", 200) // 1600 bytes, two segments
	id := []byte{9, 0, 0, 0, 1, 0, 0, 0}
	e.blobs[string(id)] = []byte(content)

	e.script("SELECT body FROM docs", &scriptStmt{
		stmtType: stmtSelect,
		cols:     []scriptCol{{sqltype: int16(TypeBlob) | sqlNullableFlag, subtype: 1, length: 8, name: "BODY"}},
		rows:     [][][]byte{{id}},
	})

	res := c.Exec("SELECT body FROM docs")
	defer res.Clear()

	if res.Status() != StatusTuplesOK {
		t.Fatalf("Expected FBRES_TUPLES_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}
	if got := res.Value(0, 0); got != content {
		t.Errorf("Expected %d blob bytes, got %d", len(content), len(got))
	}
	if res.FieldFormat(0) != 1 {
		t.Error("Expected the blob column to report the binary format")
	}
}

// TestExecParamsBlob streams a blob parameter out through the segment
// writer.
func TestExecParamsBlob(t *testing.T) {
	c, e := newTestConn(t)
	defer c.Close()

	e.script("INSERT INTO docs (body) VALUES (?)", &scriptStmt{
		stmtType: stmtInsert,
		params:   []scriptCol{{sqltype: int16(TypeBlob) | sqlNullableFlag, subtype: 1, length: 8}},
	})

	content := strings.Repeat("x", 3000) // three segments
	res := c.ExecParams("INSERT INTO docs (body) VALUES (?)", []*string{strptr(content)}, nil)
	if res.Status() != StatusCommandOK {
		t.Fatalf("Expected FBRES_COMMAND_OK, got %s: %s", res.Status(), res.ErrorMessage())
	}

	if len(e.written) != 1 {
		t.Fatalf("Expected 1 written blob, got %d", len(e.written))
	}
	for _, data := range e.written {
		if string(data) != content {
			t.Errorf("Expected %d written bytes, got %d", len(content), len(data))
		}
	}
}
