package firebird

import (
	"fmt"
)

// sqlvar is the typed form of one column or parameter descriptor entry.
// data is the native value slot the engine reads or writes; nullInd is
// allocated only for nullable entries.
type sqlvar struct {
	sqltype int16 // raw type tag, low bit is the nullable flag
	scale   int16
	subtype int16
	length  int16 // declared byte length

	data    []byte
	nullInd *int16

	name    string
	relname string
	ownname string
	alias   string
}

// baseType returns the type tag with the nullable flag masked off.
func (v *sqlvar) baseType() SQLType {
	return SQLType(v.sqltype &^ sqlNullableFlag)
}

// nullable reports whether the entry carries a null indicator.
func (v *sqlvar) nullable() bool {
	return v.sqltype&sqlNullableFlag != 0
}

// isNull reports whether the current value in the slot is NULL.
func (v *sqlvar) isNull() bool {
	return v.nullable() && v.nullInd != nil && *v.nullInd < 0
}

// setNull marks the slot NULL, allocating the indicator if needed.
func (v *sqlvar) setNull() {
	if v.nullInd == nil {
		v.nullInd = new(int16)
	}
	*v.nullInd = -1
}

// sqlda is a typed descriptor block covering one direction of one
// execution: either the output columns of a statement or its input
// parameters. It replaces the raw variable-length native block; the
// production engine translates to and from the wire layout on each
// call.
type sqlda struct {
	sqln int // allocated entries
	sqld int // entries the engine described
	vars []sqlvar
}

// newSqlda returns a descriptor block with capacity for n entries.
func newSqlda(n int) *sqlda {
	return &sqlda{
		sqln: n,
		vars: make([]sqlvar, n),
	}
}

// grow discards the block's entries and reallocates capacity for n.
// Called when describe reports more columns than the block holds; the
// caller must re-describe afterwards.
func (da *sqlda) grow(n int) {
	da.sqln = n
	da.vars = make([]sqlvar, n)
}

// slotSize returns the native value slot size in bytes for a type tag.
// ok is false for tags the library does not handle.
func slotSize(tag SQLType, length int16) (int, bool) {
	switch tag {
	case TypeVarying:
		return int(length) + 2, true
	case TypeText:
		return int(length), true
	case TypeShort:
		return 2, true
	case TypeLong, TypeFloat, TypeDate, TypeTime:
		return 4, true
	case TypeDouble, TypeInt64, TypeTimestamp, TypeBlob, TypeTimeTZ, TypeTimeTZEx:
		return 8, true
	case TypeTimestampTZ, TypeTimestampTZEx:
		return 12, true
	case TypeInt128:
		return 16, true
	case TypeBoolean:
		return 1, true
	}
	return 0, false
}

// allocOutputSlots sizes a value slot for every described output entry
// and allocates null indicators for the nullable ones. An entry with an
// unrecognized type tag fails the whole block.
func (da *sqlda) allocOutputSlots() error {
	for i := 0; i < da.sqld; i++ {
		v := &da.vars[i]

		size, ok := slotSize(v.baseType(), v.length)
		if !ok {
			return fmt.Errorf("Unhandled sqlda_out type: %d", v.baseType())
		}
		v.data = make([]byte, size)

		if v.nullable() {
			v.nullInd = new(int16)
		}
	}
	return nil
}

// clear releases every value slot and indicator so a block can be
// reused across executions of a prepared statement.
func (da *sqlda) clear() {
	for i := range da.vars {
		da.vars[i].data = nil
		da.vars[i].nullInd = nil
	}
}
