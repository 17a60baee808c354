package firebird

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"
)

// Library loader
var (
	nativeEngineOnce sync.Once
	nativeEngineInst *nativeEngine
	nativeEngineErr  error
	nativeLibPath    string
)

// loadNativeEngine binds the Firebird client library once per process.
// Every connection shares the same engine; a load failure is sticky and
// reported to each caller.
func loadNativeEngine() (engine, error) {
	nativeEngineOnce.Do(func() {
		var handle uintptr
		var lastErr error
		for _, candidate := range clientLibraryCandidates() {
			h, err := loadDynamicLibrary(candidate)
			if err == nil {
				handle = h
				nativeLibPath = candidate
				break
			}
			lastErr = err
		}
		if handle == 0 {
			if lastErr == nil {
				lastErr = errors.New("no candidate paths")
			}
			nativeEngineErr = fmt.Errorf("unable to load firebird client library (set FIREBIRD_LIBRARY to override): %v", lastErr)
			return
		}

		eng, err := bindNativeEngine(handle)
		if err != nil {
			closeLibrary(handle)
			nativeEngineErr = err
			return
		}
		nativeEngineInst = eng
	})

	if nativeEngineErr != nil {
		return nil, nativeEngineErr
	}
	return nativeEngineInst, nil
}

// clientLibraryCandidates lists the load attempts in order. A path set
// in FIREBIRD_LIBRARY wins outright; otherwise the platform sonames are
// tried, leaving resolution of bare names to the system loader.
func clientLibraryCandidates() []string {
	if env := os.Getenv("FIREBIRD_LIBRARY"); env != "" {
		return []string{env}
	}

	switch runtime.GOOS {
	case "windows":
		return []string{"fbclient.dll"}
	case "darwin":
		return []string{
			"libfbclient.dylib",
			"/Library/Frameworks/Firebird.framework/Versions/A/Firebird",
			"/opt/homebrew/lib/libfbclient.dylib",
			"/usr/local/lib/libfbclient.dylib",
		}
	default:
		return []string{
			"libfbclient.so.2",
			"libfbclient.so",
			"/usr/lib/libfbclient.so.2",
			"/usr/local/firebird/lib/libfbclient.so",
		}
	}
}

// nativeEngine implements the engine contract on top of the dynamically
// loaded client library. All fields hold resolved symbol addresses.
type nativeEngine struct {
	fnAttachDatabase    uintptr
	fnDetachDatabase    uintptr
	fnDatabaseInfo      uintptr
	fnAllocateStatement uintptr
	fnPrepare           uintptr
	fnDescribe          uintptr
	fnDescribeBind      uintptr
	fnExecute           uintptr
	fnExecute2          uintptr
	fnFetch             uintptr
	fnFreeStatement     uintptr
	fnSQLInfo           uintptr
	fnStartMultiple     uintptr
	fnCommit            uintptr
	fnRollback          uintptr
	fnCreateBlob        uintptr
	fnOpenBlob          uintptr
	fnGetSegment        uintptr
	fnPutSegment        uintptr
	fnCloseBlob         uintptr
	fnInterpret         uintptr
	fnSQLCode           uintptr
	fnVaxInteger        uintptr
	fnClientVersion     uintptr
}

// bindNativeEngine resolves every entry point the library needs. A
// single missing symbol fails the whole bind.
func bindNativeEngine(handle uintptr) (*nativeEngine, error) {
	e := &nativeEngine{}

	symbols := []struct {
		name string
		dst  *uintptr
	}{
		{"isc_attach_database", &e.fnAttachDatabase},
		{"isc_detach_database", &e.fnDetachDatabase},
		{"isc_database_info", &e.fnDatabaseInfo},
		{"isc_dsql_allocate_statement", &e.fnAllocateStatement},
		{"isc_dsql_prepare", &e.fnPrepare},
		{"isc_dsql_describe", &e.fnDescribe},
		{"isc_dsql_describe_bind", &e.fnDescribeBind},
		{"isc_dsql_execute", &e.fnExecute},
		{"isc_dsql_execute2", &e.fnExecute2},
		{"isc_dsql_fetch", &e.fnFetch},
		{"isc_dsql_free_statement", &e.fnFreeStatement},
		{"isc_dsql_sql_info", &e.fnSQLInfo},
		{"isc_start_multiple", &e.fnStartMultiple},
		{"isc_commit_transaction", &e.fnCommit},
		{"isc_rollback_transaction", &e.fnRollback},
		{"isc_create_blob2", &e.fnCreateBlob},
		{"isc_open_blob2", &e.fnOpenBlob},
		{"isc_get_segment", &e.fnGetSegment},
		{"isc_put_segment", &e.fnPutSegment},
		{"isc_close_blob", &e.fnCloseBlob},
		{"fb_interpret", &e.fnInterpret},
		{"isc_sqlcode", &e.fnSQLCode},
		{"isc_vax_integer", &e.fnVaxInteger},
		{"isc_get_client_version", &e.fnClientVersion},
	}

	for _, s := range symbols {
		addr, err := getSymbol(handle, s.name)
		if err != nil {
			return nil, fmt.Errorf("symbol %s not found in client library: %v", s.name, err)
		}
		*s.dst = addr
	}

	return e, nil
}

// Raw descriptor block layout, 64-bit client library. The typed sqlda
// is marshalled into this form around each call; value slots and null
// indicators are shared by pointer so the engine writes straight into
// the typed block's backing memory.
const (
	sqldaVersion1 = 1

	xsqldaHeaderLen  = 24
	xsqldaVersionOff = 0
	xsqldaSqlnOff    = 16
	xsqldaSqldOff    = 18

	xsqlvarLen         = 160
	xsqlvarTypeOff     = 0
	xsqlvarScaleOff    = 2
	xsqlvarSubtypeOff  = 4
	xsqlvarLengthOff   = 6
	xsqlvarDataOff     = 8
	xsqlvarIndOff      = 16
	xsqlvarNameLenOff  = 24
	xsqlvarNameOff     = 26
	xsqlvarRelLenOff   = 58
	xsqlvarRelOff      = 60
	xsqlvarOwnLenOff   = 92
	xsqlvarOwnOff      = 94
	xsqlvarAliasLenOff = 126
	xsqlvarAliasOff    = 128
)

func putInt16(buf []byte, off int, v int16) {
	*(*int16)(unsafe.Pointer(&buf[off])) = v
}

func getInt16(buf []byte, off int) int16 {
	return *(*int16)(unsafe.Pointer(&buf[off]))
}

func putPointer(buf []byte, off int, p unsafe.Pointer) {
	*(*unsafe.Pointer)(unsafe.Pointer(&buf[off])) = p
}

// marshalSqlda renders a typed descriptor block in the wire layout.
// The returned buffer holds raw pointers into the block's value slots;
// the caller keeps the typed block alive across the native call.
func marshalSqlda(da *sqlda) []byte {
	if da == nil {
		return nil
	}

	buf := make([]byte, xsqldaHeaderLen+da.sqln*xsqlvarLen)
	putInt16(buf, xsqldaVersionOff, sqldaVersion1)
	putInt16(buf, xsqldaSqlnOff, int16(da.sqln))
	putInt16(buf, xsqldaSqldOff, int16(da.sqld))

	for i := 0; i < da.sqln && i < len(da.vars); i++ {
		v := &da.vars[i]
		off := xsqldaHeaderLen + i*xsqlvarLen

		putInt16(buf, off+xsqlvarTypeOff, v.sqltype)
		putInt16(buf, off+xsqlvarScaleOff, v.scale)
		putInt16(buf, off+xsqlvarSubtypeOff, v.subtype)
		putInt16(buf, off+xsqlvarLengthOff, v.length)

		if len(v.data) > 0 {
			putPointer(buf, off+xsqlvarDataOff, unsafe.Pointer(&v.data[0]))
		}
		if v.nullInd != nil {
			putPointer(buf, off+xsqlvarIndOff, unsafe.Pointer(v.nullInd))
		}
	}

	return buf
}

// unmarshalSqlda copies descriptor metadata the engine filled in back
// into the typed block. Value slots travel by pointer and need no copy.
func unmarshalSqlda(buf []byte, da *sqlda) {
	if buf == nil || da == nil {
		return
	}

	da.sqld = int(getInt16(buf, xsqldaSqldOff))

	n := da.sqld
	if n > da.sqln {
		n = da.sqln
	}
	for i := 0; i < n; i++ {
		v := &da.vars[i]
		off := xsqldaHeaderLen + i*xsqlvarLen

		v.sqltype = getInt16(buf, off+xsqlvarTypeOff)
		v.scale = getInt16(buf, off+xsqlvarScaleOff)
		v.subtype = getInt16(buf, off+xsqlvarSubtypeOff)
		v.length = getInt16(buf, off+xsqlvarLengthOff)

		v.name = countedString(buf, off+xsqlvarNameLenOff, off+xsqlvarNameOff)
		v.relname = countedString(buf, off+xsqlvarRelLenOff, off+xsqlvarRelOff)
		v.ownname = countedString(buf, off+xsqlvarOwnLenOff, off+xsqlvarOwnOff)
		v.alias = countedString(buf, off+xsqlvarAliasLenOff, off+xsqlvarAliasOff)
	}
}

func countedString(buf []byte, lenOff, strOff int) string {
	n := int(getInt16(buf, lenOff))
	if n <= 0 {
		return ""
	}
	return string(buf[strOff : strOff+n])
}

func svAddr(sv *statusVector) uintptr {
	return uintptr(unsafe.Pointer(&sv.vector[0]))
}

func bytesAddr(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}

func (e *nativeEngine) attachDatabase(sv *statusVector, path string, dpb []byte, db *uintptr) iscStatus {
	p := append([]byte(path), 0)
	r, _, _ := callNative(e.fnAttachDatabase,
		svAddr(sv),
		0,
		bytesAddr(p),
		uintptr(unsafe.Pointer(db)),
		uintptr(len(dpb)),
		bytesAddr(dpb))
	runtime.KeepAlive(p)
	runtime.KeepAlive(dpb)
	return iscStatus(r)
}

func (e *nativeEngine) detachDatabase(sv *statusVector, db *uintptr) iscStatus {
	r, _, _ := callNative(e.fnDetachDatabase, svAddr(sv), uintptr(unsafe.Pointer(db)))
	return iscStatus(r)
}

func (e *nativeEngine) databaseInfo(sv *statusVector, db *uintptr, items []byte, result []byte) iscStatus {
	r, _, _ := callNative(e.fnDatabaseInfo,
		svAddr(sv),
		uintptr(unsafe.Pointer(db)),
		uintptr(len(items)),
		bytesAddr(items),
		uintptr(len(result)),
		bytesAddr(result))
	runtime.KeepAlive(items)
	runtime.KeepAlive(result)
	return iscStatus(r)
}

func (e *nativeEngine) allocateStatement(sv *statusVector, db *uintptr, stmt *uintptr) iscStatus {
	r, _, _ := callNative(e.fnAllocateStatement,
		svAddr(sv),
		uintptr(unsafe.Pointer(db)),
		uintptr(unsafe.Pointer(stmt)))
	return iscStatus(r)
}

func (e *nativeEngine) prepare(sv *statusVector, tr, stmt *uintptr, query string, out *sqlda) iscStatus {
	q := append([]byte(query), 0)
	raw := marshalSqlda(out)
	r, _, _ := callNative(e.fnPrepare,
		svAddr(sv),
		uintptr(unsafe.Pointer(tr)),
		uintptr(unsafe.Pointer(stmt)),
		0,
		bytesAddr(q),
		sqlDialectCurrent,
		bytesAddr(raw))
	unmarshalSqlda(raw, out)
	runtime.KeepAlive(q)
	runtime.KeepAlive(out)
	return iscStatus(r)
}

func (e *nativeEngine) describe(sv *statusVector, stmt *uintptr, out *sqlda) iscStatus {
	raw := marshalSqlda(out)
	r, _, _ := callNative(e.fnDescribe,
		svAddr(sv),
		uintptr(unsafe.Pointer(stmt)),
		sqlDialectCurrent,
		bytesAddr(raw))
	unmarshalSqlda(raw, out)
	runtime.KeepAlive(out)
	return iscStatus(r)
}

func (e *nativeEngine) describeBind(sv *statusVector, stmt *uintptr, in *sqlda) iscStatus {
	raw := marshalSqlda(in)
	r, _, _ := callNative(e.fnDescribeBind,
		svAddr(sv),
		uintptr(unsafe.Pointer(stmt)),
		sqlDialectCurrent,
		bytesAddr(raw))
	unmarshalSqlda(raw, in)
	runtime.KeepAlive(in)
	return iscStatus(r)
}

func (e *nativeEngine) execute(sv *statusVector, tr, stmt *uintptr, in *sqlda) iscStatus {
	raw := marshalSqlda(in)
	r, _, _ := callNative(e.fnExecute,
		svAddr(sv),
		uintptr(unsafe.Pointer(tr)),
		uintptr(unsafe.Pointer(stmt)),
		sqlDialectCurrent,
		bytesAddr(raw))
	runtime.KeepAlive(in)
	return iscStatus(r)
}

func (e *nativeEngine) execute2(sv *statusVector, tr, stmt *uintptr, in, out *sqlda) iscStatus {
	rawIn := marshalSqlda(in)
	rawOut := marshalSqlda(out)
	r, _, _ := callNative(e.fnExecute2,
		svAddr(sv),
		uintptr(unsafe.Pointer(tr)),
		uintptr(unsafe.Pointer(stmt)),
		sqlDialectCurrent,
		bytesAddr(rawIn),
		bytesAddr(rawOut))
	runtime.KeepAlive(in)
	runtime.KeepAlive(out)
	return iscStatus(r)
}

func (e *nativeEngine) fetch(sv *statusVector, stmt *uintptr, out *sqlda) iscStatus {
	raw := marshalSqlda(out)
	r, _, _ := callNative(e.fnFetch,
		svAddr(sv),
		uintptr(unsafe.Pointer(stmt)),
		sqlDialectCurrent,
		bytesAddr(raw))
	runtime.KeepAlive(out)
	return iscStatus(r)
}

func (e *nativeEngine) freeStatement(sv *statusVector, stmt *uintptr, action uint16) iscStatus {
	r, _, _ := callNative(e.fnFreeStatement,
		svAddr(sv),
		uintptr(unsafe.Pointer(stmt)),
		uintptr(action))
	return iscStatus(r)
}

func (e *nativeEngine) statementInfo(sv *statusVector, stmt *uintptr, items []byte, result []byte) iscStatus {
	r, _, _ := callNative(e.fnSQLInfo,
		svAddr(sv),
		uintptr(unsafe.Pointer(stmt)),
		uintptr(len(items)),
		bytesAddr(items),
		uintptr(len(result)),
		bytesAddr(result))
	runtime.KeepAlive(items)
	runtime.KeepAlive(result)
	return iscStatus(r)
}

// startTransaction goes through isc_start_multiple with one parameter
// block entry and a default TPB, which avoids the variadic
// isc_start_transaction entry point.
func (e *nativeEngine) startTransaction(sv *statusVector, tr, db *uintptr) iscStatus {
	teb := make([]byte, 24)
	putPointer(teb, 0, unsafe.Pointer(db))
	r, _, _ := callNative(e.fnStartMultiple,
		svAddr(sv),
		uintptr(unsafe.Pointer(tr)),
		1,
		bytesAddr(teb))
	runtime.KeepAlive(teb)
	return iscStatus(r)
}

func (e *nativeEngine) commitTransaction(sv *statusVector, tr *uintptr) iscStatus {
	r, _, _ := callNative(e.fnCommit, svAddr(sv), uintptr(unsafe.Pointer(tr)))
	return iscStatus(r)
}

func (e *nativeEngine) rollbackTransaction(sv *statusVector, tr *uintptr) iscStatus {
	r, _, _ := callNative(e.fnRollback, svAddr(sv), uintptr(unsafe.Pointer(tr)))
	return iscStatus(r)
}

func (e *nativeEngine) createBlob(sv *statusVector, db, tr, blob *uintptr, id []byte) iscStatus {
	r, _, _ := callNative(e.fnCreateBlob,
		svAddr(sv),
		uintptr(unsafe.Pointer(db)),
		uintptr(unsafe.Pointer(tr)),
		uintptr(unsafe.Pointer(blob)),
		bytesAddr(id),
		0,
		0)
	runtime.KeepAlive(id)
	return iscStatus(r)
}

func (e *nativeEngine) openBlob(sv *statusVector, db, tr, blob *uintptr, id []byte) iscStatus {
	r, _, _ := callNative(e.fnOpenBlob,
		svAddr(sv),
		uintptr(unsafe.Pointer(db)),
		uintptr(unsafe.Pointer(tr)),
		uintptr(unsafe.Pointer(blob)),
		bytesAddr(id),
		0,
		0)
	runtime.KeepAlive(id)
	return iscStatus(r)
}

func (e *nativeEngine) getSegment(sv *statusVector, blob *uintptr, buf []byte) (int, iscStatus) {
	var actual uint16
	r, _, _ := callNative(e.fnGetSegment,
		svAddr(sv),
		uintptr(unsafe.Pointer(blob)),
		uintptr(unsafe.Pointer(&actual)),
		uintptr(len(buf)),
		bytesAddr(buf))
	runtime.KeepAlive(buf)
	return int(actual), iscStatus(r)
}

func (e *nativeEngine) putSegment(sv *statusVector, blob *uintptr, seg []byte) iscStatus {
	r, _, _ := callNative(e.fnPutSegment,
		svAddr(sv),
		uintptr(unsafe.Pointer(blob)),
		uintptr(len(seg)),
		bytesAddr(seg))
	runtime.KeepAlive(seg)
	return iscStatus(r)
}

func (e *nativeEngine) closeBlob(sv *statusVector, blob *uintptr) iscStatus {
	r, _, _ := callNative(e.fnCloseBlob, svAddr(sv), uintptr(unsafe.Pointer(blob)))
	return iscStatus(r)
}

// interpret renders one diagnostic line from the status vector. The
// engine advances sv.cursor through the vector; rewind restarts the
// walk.
func (e *nativeEngine) interpret(sv *statusVector) (string, bool) {
	if sv.cursor == nil {
		sv.cursor = unsafe.Pointer(&sv.vector[0])
	}

	buf := make([]byte, errorBufferLen)
	r, _, _ := callNative(e.fnInterpret,
		bytesAddr(buf),
		uintptr(len(buf)),
		uintptr(unsafe.Pointer(&sv.cursor)))
	runtime.KeepAlive(sv)
	if r == 0 {
		return "", false
	}

	n := bytes.IndexByte(buf, 0)
	if n < 0 {
		n = len(buf)
	}
	return string(buf[:n]), true
}

func (e *nativeEngine) sqlCode(sv *statusVector) int32 {
	r, _, _ := callNative(e.fnSQLCode, svAddr(sv))
	return int32(uint32(r))
}

func (e *nativeEngine) vaxInteger(buf []byte) int32 {
	if len(buf) == 0 {
		return 0
	}
	r, _, _ := callNative(e.fnVaxInteger, bytesAddr(buf), uintptr(len(buf)))
	runtime.KeepAlive(buf)
	return int32(uint32(r))
}

func (e *nativeEngine) clientVersion() string {
	buf := make([]byte, 256)
	callNative(e.fnClientVersion, bytesAddr(buf))
	n := bytes.IndexByte(buf, 0)
	if n < 0 {
		n = len(buf)
	}
	return string(buf[:n])
}
