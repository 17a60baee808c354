package firebird

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// scriptEngine implements the engine contract in memory so the
// executor, descriptor handling, codec and transaction logic run their
// real code paths in tests without a Firebird server. Statements are
// registered against their exact query text.
type scriptEngine struct {
	stmts map[string]*scriptStmt
	open  map[uintptr]*openScriptStmt

	// blobs holds readable blob contents keyed by their 8-byte id;
	// written collects blobs streamed in through createBlob/putSegment.
	blobs   map[string][]byte
	written map[string][]byte

	readers map[uintptr]*blobReader
	writers map[uintptr]string

	nextHandle uintptr
	active     map[uintptr]bool

	starts    int
	commits   int
	rollbacks int

	// lastBound snapshots the input descriptor entries of the most
	// recent execute call.
	lastBound []boundParam

	diag    []string
	diagPos int
	sqlcode int32

	attachFailure []string
	infoFailure   bool
}

// scriptCol is one scripted descriptor entry, output or input.
type scriptCol struct {
	sqltype int16 // raw tag including the nullable bit
	scale   int16
	subtype int16
	length  int16
	name    string
	relname string
	alias   string
}

// scriptStmt is one registered statement: its classification, its
// descriptors and the rows a fetch loop delivers. A nil cell means
// NULL.
type scriptStmt struct {
	stmtType int
	cols     []scriptCol
	params   []scriptCol
	rows     [][][]byte
	plan     string

	prepareFailure []string
	executeFailure []string

	// failFetchAfter injects a fetch error once that many rows were
	// delivered; -1 disables it.
	failFetchAfter int
	fetchFailure   []string
}

type openScriptStmt struct {
	def      *scriptStmt
	fetchPos int
}

type boundParam struct {
	sqltype int16
	subtype int16
	data    []byte
	isNull  bool
}

type blobReader struct {
	data []byte
	pos  int
}

func newScriptEngine() *scriptEngine {
	return &scriptEngine{
		stmts:      make(map[string]*scriptStmt),
		open:       make(map[uintptr]*openScriptStmt),
		blobs:      make(map[string][]byte),
		written:    make(map[string][]byte),
		readers:    make(map[uintptr]*blobReader),
		writers:    make(map[uintptr]string),
		nextHandle: 100,
		active:     make(map[uintptr]bool),
	}
}

// script registers a statement definition for a query text.
func (e *scriptEngine) script(query string, def *scriptStmt) *scriptStmt {
	if def.failFetchAfter == 0 && def.fetchFailure == nil {
		def.failFetchAfter = -1
	}
	e.stmts[query] = def
	return def
}

func (e *scriptEngine) handle() uintptr {
	e.nextHandle++
	return e.nextHandle
}

func (e *scriptEngine) ok(sv *statusVector) iscStatus {
	sv.vector[0] = 0
	sv.vector[1] = 0
	return 0
}

// fail marks the status vector, queues the diagnostic lines interpret
// will replay, and records the SQLCODE.
func (e *scriptEngine) fail(sv *statusVector, sqlcode int32, lines ...string) iscStatus {
	sv.vector[0] = 1
	sv.vector[1] = 335544569
	sv.rewind()
	e.diag = lines
	e.diagPos = 0
	e.sqlcode = sqlcode
	return 1
}

func (e *scriptEngine) attachDatabase(sv *statusVector, path string, dpb []byte, db *uintptr) iscStatus {
	if e.attachFailure != nil {
		return e.fail(sv, -902, e.attachFailure...)
	}
	*db = e.handle()
	return e.ok(sv)
}

func (e *scriptEngine) detachDatabase(sv *statusVector, db *uintptr) iscStatus {
	*db = 0
	return e.ok(sv)
}

func (e *scriptEngine) databaseInfo(sv *statusVector, db *uintptr, items []byte, result []byte) iscStatus {
	if e.infoFailure {
		return e.fail(sv, -902, "connection lost to database")
	}
	if len(result) > 0 {
		result[0] = iscInfoEnd
	}
	return e.ok(sv)
}

func (e *scriptEngine) allocateStatement(sv *statusVector, db *uintptr, stmt *uintptr) iscStatus {
	h := e.handle()
	e.open[h] = &openScriptStmt{}
	*stmt = h
	return e.ok(sv)
}

// describeInto plays the role of isc_dsql_describe: report the true
// entry count and fill only as many entries as the block holds.
func describeInto(cols []scriptCol, da *sqlda) {
	da.sqld = len(cols)
	n := da.sqld
	if n > da.sqln {
		n = da.sqln
	}
	for i := 0; i < n; i++ {
		src := &cols[i]
		v := &da.vars[i]
		v.sqltype = src.sqltype
		v.scale = src.scale
		v.subtype = src.subtype
		v.length = src.length
		v.name = src.name
		v.relname = src.relname
		v.ownname = ""
		v.alias = src.alias
		if v.alias == "" {
			v.alias = src.name
		}
	}
}

func (e *scriptEngine) prepare(sv *statusVector, tr, stmt *uintptr, query string, out *sqlda) iscStatus {
	def, ok := e.stmts[query]
	if !ok {
		return e.fail(sv, -104,
			"Dynamic SQL Error",
			"SQL error code = -104",
			"Token unknown - line 1, column 1",
			query)
	}
	if def.prepareFailure != nil {
		return e.fail(sv, -104, def.prepareFailure...)
	}

	e.open[*stmt].def = def
	if out != nil {
		describeInto(def.cols, out)
	}
	return e.ok(sv)
}

func (e *scriptEngine) describe(sv *statusVector, stmt *uintptr, out *sqlda) iscStatus {
	os := e.open[*stmt]
	if os == nil || os.def == nil {
		return e.fail(sv, -901, "invalid statement handle")
	}
	describeInto(os.def.cols, out)
	return e.ok(sv)
}

func (e *scriptEngine) describeBind(sv *statusVector, stmt *uintptr, in *sqlda) iscStatus {
	os := e.open[*stmt]
	if os == nil || os.def == nil {
		return e.fail(sv, -901, "invalid statement handle")
	}
	describeInto(os.def.params, in)
	return e.ok(sv)
}

// snapshotBound copies the input descriptor state so tests can assert
// what would have crossed the wire.
func (e *scriptEngine) snapshotBound(in *sqlda) {
	e.lastBound = nil
	if in == nil {
		return
	}
	for i := 0; i < in.sqld && i < len(in.vars); i++ {
		v := &in.vars[i]
		data := make([]byte, len(v.data))
		copy(data, v.data)
		e.lastBound = append(e.lastBound, boundParam{
			sqltype: v.sqltype,
			subtype: v.subtype,
			data:    data,
			isNull:  v.nullInd != nil && *v.nullInd < 0,
		})
	}
}

func (e *scriptEngine) execute(sv *statusVector, tr, stmt *uintptr, in *sqlda) iscStatus {
	os := e.open[*stmt]
	if os == nil || os.def == nil {
		return e.fail(sv, -901, "invalid statement handle")
	}
	if os.def.executeFailure != nil {
		return e.fail(sv, -803, os.def.executeFailure...)
	}
	e.snapshotBound(in)
	os.fetchPos = 0
	return e.ok(sv)
}

func (e *scriptEngine) execute2(sv *statusVector, tr, stmt *uintptr, in, out *sqlda) iscStatus {
	if st := e.execute(sv, tr, stmt, in); !st.ok() {
		return st
	}
	os := e.open[*stmt]
	if len(os.def.rows) > 0 {
		deliverRow(os.def.rows[0], out)
	}
	return e.ok(sv)
}

// deliverRow writes one scripted row into the allocated output slots,
// the way a fetch fills the descriptor block's value memory.
func deliverRow(row [][]byte, out *sqlda) {
	for i := 0; i < out.sqld && i < len(row); i++ {
		v := &out.vars[i]
		if row[i] == nil {
			if v.nullInd == nil {
				v.nullInd = new(int16)
			}
			*v.nullInd = -1
			continue
		}
		if v.nullInd != nil {
			*v.nullInd = 0
		}
		copy(v.data, row[i])
	}
}

func (e *scriptEngine) fetch(sv *statusVector, stmt *uintptr, out *sqlda) iscStatus {
	os := e.open[*stmt]
	if os == nil || os.def == nil {
		return e.fail(sv, -901, "invalid statement handle")
	}
	def := os.def
	if def.failFetchAfter >= 0 && os.fetchPos == def.failFetchAfter {
		lines := def.fetchFailure
		if lines == nil {
			lines = []string{"interface", "SQL error code = -902", "request synchronization error"}
		}
		return e.fail(sv, -902, lines...)
	}
	if os.fetchPos >= len(def.rows) {
		return fetchNoMoreRows
	}
	deliverRow(def.rows[os.fetchPos], out)
	os.fetchPos++
	return e.ok(sv)
}

func (e *scriptEngine) freeStatement(sv *statusVector, stmt *uintptr, action uint16) iscStatus {
	delete(e.open, *stmt)
	*stmt = 0
	return e.ok(sv)
}

func (e *scriptEngine) statementInfo(sv *statusVector, stmt *uintptr, items []byte, result []byte) iscStatus {
	os := e.open[*stmt]
	if os == nil || os.def == nil {
		return e.fail(sv, -901, "invalid statement handle")
	}
	if len(items) == 0 {
		return e.ok(sv)
	}

	switch items[0] {
	case iscInfoSQLStmtType:
		result[0] = iscInfoSQLStmtType
		binary.LittleEndian.PutUint16(result[1:3], 4)
		binary.LittleEndian.PutUint32(result[3:7], uint32(os.def.stmtType))
	case iscInfoSQLGetPlan:
		plan := os.def.plan
		result[0] = iscInfoSQLGetPlan
		binary.LittleEndian.PutUint16(result[1:3], uint16(len(plan)))
		copy(result[3:], plan)
	}
	return e.ok(sv)
}

func (e *scriptEngine) startTransaction(sv *statusVector, tr, db *uintptr) iscStatus {
	if *tr != 0 {
		return e.fail(sv, -901, "transaction already started")
	}
	h := e.handle()
	e.active[h] = true
	*tr = h
	e.starts++
	return e.ok(sv)
}

func (e *scriptEngine) commitTransaction(sv *statusVector, tr *uintptr) iscStatus {
	if *tr == 0 || !e.active[*tr] {
		return e.fail(sv, -901, "invalid transaction handle")
	}
	delete(e.active, *tr)
	e.commits++
	return e.ok(sv)
}

func (e *scriptEngine) rollbackTransaction(sv *statusVector, tr *uintptr) iscStatus {
	if *tr == 0 || !e.active[*tr] {
		return e.fail(sv, -901, "invalid transaction handle")
	}
	delete(e.active, *tr)
	e.rollbacks++
	return e.ok(sv)
}

func (e *scriptEngine) createBlob(sv *statusVector, db, tr, blob *uintptr, id []byte) iscStatus {
	h := e.handle()
	binary.LittleEndian.PutUint64(id, uint64(h))
	e.writers[h] = string(id)
	e.written[string(id)] = nil
	*blob = h
	return e.ok(sv)
}

func (e *scriptEngine) openBlob(sv *statusVector, db, tr, blob *uintptr, id []byte) iscStatus {
	data, ok := e.blobs[string(id)]
	if !ok {
		return e.fail(sv, -902, "invalid blob id")
	}
	h := e.handle()
	e.readers[h] = &blobReader{data: data}
	*blob = h
	return e.ok(sv)
}

func (e *scriptEngine) getSegment(sv *statusVector, blob *uintptr, buf []byte) (int, iscStatus) {
	r := e.readers[*blob]
	if r == nil {
		return 0, e.fail(sv, -902, "invalid blob handle")
	}
	remaining := len(r.data) - r.pos
	if remaining == 0 {
		return 0, iscStatus(iscSegstrEOF)
	}
	n := len(buf)
	if n > remaining {
		n = remaining
	}
	copy(buf, r.data[r.pos:r.pos+n])
	r.pos += n
	if r.pos < len(r.data) {
		return n, iscStatus(iscSegment)
	}
	return n, e.ok(sv)
}

func (e *scriptEngine) putSegment(sv *statusVector, blob *uintptr, seg []byte) iscStatus {
	key, ok := e.writers[*blob]
	if !ok {
		return e.fail(sv, -902, "invalid blob handle")
	}
	e.written[key] = append(e.written[key], seg...)
	return e.ok(sv)
}

func (e *scriptEngine) closeBlob(sv *statusVector, blob *uintptr) iscStatus {
	delete(e.readers, *blob)
	delete(e.writers, *blob)
	*blob = 0
	return e.ok(sv)
}

func (e *scriptEngine) interpret(sv *statusVector) (string, bool) {
	if sv.cursor == nil {
		e.diagPos = 0
		sv.cursor = unsafe.Pointer(e)
	}
	if e.diagPos >= len(e.diag) {
		return "", false
	}
	msg := e.diag[e.diagPos]
	e.diagPos++
	return msg, true
}

func (e *scriptEngine) sqlCode(sv *statusVector) int32 {
	return e.sqlcode
}

func (e *scriptEngine) vaxInteger(buf []byte) int32 {
	var v int32
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | int32(buf[i])
	}
	return v
}

func (e *scriptEngine) clientVersion() string {
	return "Script Engine 1.0"
}

// Descriptor and slot builders shared by the tests.

func nullableCol(name string, typ SQLType, length int16) scriptCol {
	return scriptCol{sqltype: int16(typ) | sqlNullableFlag, length: length, name: name}
}

func plainCol(name string, typ SQLType, length int16) scriptCol {
	return scriptCol{sqltype: int16(typ), length: length, name: name}
}

func varyingSlot(s string) []byte {
	out := make([]byte, 2+len(s))
	binary.LittleEndian.PutUint16(out, uint16(len(s)))
	copy(out[2:], s)
	return out
}

func int16Slot(v int16) []byte {
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, uint16(v))
	return out
}

func int32Slot(v int32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(v))
	return out
}

func int64Slot(v int64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, uint64(v))
	return out
}

func doubleSlot(v float64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, math.Float64bits(v))
	return out
}

// scriptProbes registers the version and encoding queries every
// connection issues at attach time.
func scriptProbes(e *scriptEngine, version string) {
	e.script(serverVersionQuery, &scriptStmt{
		stmtType: stmtSelect,
		cols:     []scriptCol{nullableCol("CAST", TypeVarying, 10)},
		rows:     [][][]byte{{varyingSlot(version)}},
	})
	e.script(clientEncodingQuery, &scriptStmt{
		stmtType: stmtSelect,
		cols: []scriptCol{
			nullableCol("CLIENT_ENCODING", TypeVarying, 31),
			plainCol("CLIENT_ENCODING_ID", TypeLong, 4),
		},
		rows: [][][]byte{{varyingSlot("UTF8"), int32Slot(4)}},
	})
}
