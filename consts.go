package firebird

// SQLType is the native Firebird type tag carried in a column or
// parameter descriptor. The low bit of the raw descriptor value is the
// nullable flag and is masked off before comparison.
type SQLType int16

// Native type tags as delivered by the engine in descriptor entries.
const (
	TypeVarying     SQLType = 448
	TypeText        SQLType = 452
	TypeDouble      SQLType = 480
	TypeFloat       SQLType = 482
	TypeDFloat      SQLType = 530
	TypeTimestamp   SQLType = 510
	TypeBlob        SQLType = 520
	TypeArray       SQLType = 540
	TypeQuad        SQLType = 550
	TypeShort       SQLType = 500
	TypeLong        SQLType = 496
	TypeTime        SQLType = 560
	TypeDate        SQLType = 570
	TypeInt64       SQLType = 580
	TypeTimestampTZ SQLType = 32754
	TypeTimeTZ      SQLType = 32756
	TypeInt128      SQLType = 32752
	TypeBoolean     SQLType = 32764
	TypeNull        SQLType = 32766

	// Extended time zone forms carry the server-computed offset in
	// addition to the zone id. Delivered by Firebird 4.0+ once the
	// connection has issued SET BIND OF TIME ZONE TO EXTENDED.
	TypeTimestampTZEx SQLType = 32748
	TypeTimeTZEx      SQLType = 32750
)

// Pseudo-types never sent by the engine. TypeDBKey replaces TypeText in
// a column description when the column is recognized as RDB$DB_KEY.
const (
	TypeInvalid SQLType = -1
	TypeDBKey   SQLType = 16384
)

// String returns the SQL name of the type.
func (t SQLType) String() string {
	switch t {
	case TypeVarying:
		return "VARCHAR"
	case TypeText:
		return "CHAR"
	case TypeDouble:
		return "DOUBLE PRECISION"
	case TypeFloat:
		return "FLOAT"
	case TypeDFloat:
		return "D_FLOAT"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeBlob:
		return "BLOB"
	case TypeArray:
		return "ARRAY"
	case TypeQuad:
		return "QUAD"
	case TypeShort:
		return "SMALLINT"
	case TypeLong:
		return "INTEGER"
	case TypeTime:
		return "TIME"
	case TypeDate:
		return "DATE"
	case TypeInt64:
		return "BIGINT"
	case TypeTimestampTZ, TypeTimestampTZEx:
		return "TIMESTAMP WITH TIME ZONE"
	case TypeTimeTZ, TypeTimeTZEx:
		return "TIME WITH TIME ZONE"
	case TypeInt128:
		return "INT128"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeNull:
		return "NULL"
	case TypeDBKey:
		return "DB_KEY"
	}
	return "UNKNOWN"
}

const (
	// sqlNullableFlag is the low bit of a raw descriptor type value.
	sqlNullableFlag = 1

	// sqlDialectCurrent is the SQL dialect passed to prepare and info calls.
	sqlDialectCurrent = 3
)

// RDB$DB_KEY values are 8 raw bytes on the wire and 16 hex digits in
// their text form.
const (
	dbKeyRawLength = 8
	DBKeyLength    = 16
)

// Database parameter block item codes used when attaching.
const (
	iscDpbVersion1 = 1
	iscDpbUserName = 28
	iscDpbPassword = 29
	iscDpbLcCtype  = 48
)

// Statement free actions.
const (
	dsqlClose = 1
	dsqlDrop  = 2
)

// Info request item codes.
const (
	iscInfoEnd         = 1
	iscInfoTruncated   = 2
	iscInfoPageSize    = 14
	iscInfoNumBuffers  = 15
	iscInfoSQLStmtType = 21
	iscInfoSQLGetPlan  = 22
)

// Statement type tokens returned by the statement-type info request.
const (
	stmtSelect        = 1
	stmtInsert        = 2
	stmtUpdate        = 3
	stmtDelete        = 4
	stmtDDL           = 5
	stmtGetSegment    = 6
	stmtPutSegment    = 7
	stmtExecProcedure = 8
	stmtStartTrans    = 9
	stmtCommit        = 10
	stmtRollback      = 11
	stmtSelectForUpd  = 12
	stmtSetGenerator  = 13
	stmtSavepoint     = 14
)

// Engine status codes the binding inspects directly.
const (
	iscSegment   = 335544366 // partial segment returned, keep reading
	iscSegstrEOF = 335544367 // no more segments
)

// Boolean wire values.
const (
	fbFalse = 0
	fbTrue  = 1
)

// Firebird character set ids the binding recognizes. Every other id is
// treated as a single-byte encoding.
const (
	encodingNone       = 0
	encodingOctets     = 1
	encodingASCII      = 2
	encodingUTF8       = 4
	encodingUnknownID  = -1
	encodingUnknownStr = "UNKNOWN"
)

// Column subtype for text and blob columns holding raw octets.
const subtypeOctets = 1

const (
	// statusVectorLen is the number of slots in the engine status area.
	statusVectorLen = 20

	// errorBufferLen is the scratch size for one interpreted diagnostic line.
	errorBufferLen = 512

	// planBufferLen is the scratch size for a retrieved execution plan.
	planBufferLen = 2048

	// initialDescriptorSlots is the starting column capacity of a fresh
	// descriptor block; the executor grows it after describe when the
	// statement yields more columns.
	initialDescriptorSlots = 15

	// blobSegmentLen is the segment size used for blob reads and writes.
	blobSegmentLen = 1024
)

// Fetch returns this when the cursor is exhausted.
const fetchNoMoreRows = 100
