package firebird

import (
	"unsafe"
)

// iscStatus is the return value convention of the native API: zero for
// success, an engine error code otherwise. Fetch additionally returns
// fetchNoMoreRows when the cursor is exhausted.
type iscStatus uintptr

func (s iscStatus) ok() bool { return s == 0 }

// statusVector is the per-connection diagnostic area filled by every
// engine call. The first two slots follow the engine convention: slot 0
// holds 1 and slot 1 a non-zero code when the call reported an error.
type statusVector struct {
	vector [statusVectorLen]uintptr

	// cursor tracks the interpret position while a diagnostic walk is in
	// progress. nil means the next interpret starts a fresh walk.
	cursor unsafe.Pointer
}

// hasError reports whether the last engine call left an error behind.
func (sv *statusVector) hasError() bool {
	return sv.vector[0] == 1 && sv.vector[1] > 0
}

// rewind restarts diagnostic interpretation from the top of the vector.
func (sv *statusVector) rewind() {
	sv.cursor = nil
}

// engine is the narrow contract the library consumes from the native
// Firebird client. The production implementation binds libfbclient via
// purego; tests substitute a scripted in-memory engine.
//
// Calls mirror the native API: each takes the connection's status
// vector, fills it, and returns the primary status code. Descriptor
// blocks cross the boundary in their typed form; the production engine
// owns the raw wire layout.
type engine interface {
	attachDatabase(sv *statusVector, path string, dpb []byte, db *uintptr) iscStatus
	detachDatabase(sv *statusVector, db *uintptr) iscStatus
	databaseInfo(sv *statusVector, db *uintptr, items []byte, result []byte) iscStatus

	allocateStatement(sv *statusVector, db *uintptr, stmt *uintptr) iscStatus
	prepare(sv *statusVector, tr, stmt *uintptr, query string, out *sqlda) iscStatus
	describe(sv *statusVector, stmt *uintptr, out *sqlda) iscStatus
	describeBind(sv *statusVector, stmt *uintptr, in *sqlda) iscStatus
	execute(sv *statusVector, tr, stmt *uintptr, in *sqlda) iscStatus
	execute2(sv *statusVector, tr, stmt *uintptr, in, out *sqlda) iscStatus
	fetch(sv *statusVector, stmt *uintptr, out *sqlda) iscStatus
	freeStatement(sv *statusVector, stmt *uintptr, action uint16) iscStatus
	statementInfo(sv *statusVector, stmt *uintptr, items []byte, result []byte) iscStatus

	startTransaction(sv *statusVector, tr, db *uintptr) iscStatus
	commitTransaction(sv *statusVector, tr *uintptr) iscStatus
	rollbackTransaction(sv *statusVector, tr *uintptr) iscStatus

	createBlob(sv *statusVector, db, tr, blob *uintptr, id []byte) iscStatus
	openBlob(sv *statusVector, db, tr, blob *uintptr, id []byte) iscStatus
	getSegment(sv *statusVector, blob *uintptr, buf []byte) (int, iscStatus)
	putSegment(sv *statusVector, blob *uintptr, seg []byte) iscStatus
	closeBlob(sv *statusVector, blob *uintptr) iscStatus

	// interpret renders the next human-readable line from the status
	// vector, advancing the walk; ok is false once the vector is drained.
	interpret(sv *statusVector) (msg string, ok bool)

	// sqlCode extracts the SQLCODE from the status vector.
	sqlCode(sv *statusVector) int32

	// vaxInteger decodes a little-endian integer from an info buffer.
	vaxInteger(buf []byte) int32

	// clientVersion identifies the loaded client library.
	clientVersion() string
}
