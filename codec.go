package firebird

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// formatDatum decodes one fetched column slot into a tuple attribute:
// the textual value plus its byte length and display widths. The type
// switch runs on the column descriptor's resolved type so the db-key
// pseudo-type override applies. Blob columns are read through the
// transaction the statement is executing under.
func (c *Conn) formatDatum(desc *columnDesc, v *sqlvar, trans *uintptr) tupleAtt {
	if v.isNull() {
		return tupleAtt{isNull: true, lines: 1}
	}

	var value string

	switch desc.sqlType {
	case TypeText:
		data := v.data
		if n := int(v.length); n < len(data) {
			data = data[:n]
		}
		if v.subtype == subtypeOctets {
			value = formatOctets(data)
		} else {
			value = string(data)
		}

	case TypeVarying:
		var data []byte
		if len(v.data) >= 2 {
			n := int(binary.LittleEndian.Uint16(v.data))
			if n > len(v.data)-2 {
				n = len(v.data) - 2
			}
			data = v.data[2 : 2+n]
		}
		if v.subtype == subtypeOctets {
			value = formatOctets(data)
		} else {
			value = string(data)
		}

	case TypeShort:
		value = formatScaledInteger(int64(int16(binary.LittleEndian.Uint16(v.data))), v.scale)

	case TypeLong:
		value = formatScaledInteger(int64(int32(binary.LittleEndian.Uint32(v.data))), v.scale)

	case TypeInt64:
		value = formatScaledInteger(int64(binary.LittleEndian.Uint64(v.data)), v.scale)

	case TypeInt128:
		// The scale of an INT128 column is not applied to the rendered
		// value; it is delivered as the raw integer.
		value = int128FromSlot(v.data).String()

	case TypeFloat:
		f := math.Float32frombits(binary.LittleEndian.Uint32(v.data))
		value = strconv.FormatFloat(float64(f), 'g', 6, 64)

	case TypeDouble:
		f := math.Float64frombits(binary.LittleEndian.Uint64(v.data))
		value = strconv.FormatFloat(f, 'f', 6, 64)

	case TypeDate:
		value = formatDate(int32(binary.LittleEndian.Uint32(v.data)))

	case TypeTime:
		value = formatTimeOfDay(binary.LittleEndian.Uint32(v.data))

	case TypeTimeTZ:
		units := binary.LittleEndian.Uint32(v.data)
		zone := int(binary.LittleEndian.Uint16(v.data[4:]))
		value = formatTimeOfDay(units) + " " + lookupTimeZone(zone)

	case TypeTimeTZEx:
		units := binary.LittleEndian.Uint32(v.data)
		zone := int(binary.LittleEndian.Uint16(v.data[4:]))
		extOffset := int(int16(binary.LittleEndian.Uint16(v.data[6:])))
		value = formatTimeOfDay(shiftTime(units, extOffset)) + " " + formatTimeZone(zone, extOffset, c.timeZoneNames)

	case TypeTimestamp:
		days := int32(binary.LittleEndian.Uint32(v.data))
		units := binary.LittleEndian.Uint32(v.data[4:])
		value = formatTimestamp(days, units)

	case TypeTimestampTZ:
		days := int32(binary.LittleEndian.Uint32(v.data))
		units := binary.LittleEndian.Uint32(v.data[4:])
		zone := int(binary.LittleEndian.Uint16(v.data[8:]))
		value = formatTimestamp(days, units) + " " + lookupTimeZone(zone)

	case TypeTimestampTZEx:
		days := int32(binary.LittleEndian.Uint32(v.data))
		units := binary.LittleEndian.Uint32(v.data[4:])
		zone := int(binary.LittleEndian.Uint16(v.data[8:]))
		extOffset := int(int16(binary.LittleEndian.Uint16(v.data[10:])))
		days, units = shiftTimestamp(days, units, extOffset)
		value = formatTimestamp(days, units) + " " + formatTimeZone(zone, extOffset, c.timeZoneNames)

	case TypeBlob:
		value = c.readBlob(trans, v.data)

	case TypeBoolean:
		if len(v.data) > 0 && v.data[0] == fbTrue {
			value = "t"
		} else {
			value = "f"
		}

	case TypeDBKey:
		// Raw byte value, never trimmed or treated as text.
		data := v.data
		if n := int(v.length); n < len(data) {
			data = data[:n]
		}
		value = string(data)

	default:
		value = fmt.Sprintf("Unhandled datatype %d", desc.sqlType)
	}

	att := tupleAtt{value: value, lines: 1}

	if desc.sqlType == TypeDBKey {
		att.length = int(v.length)
		att.dsplen = DBKeyLength
		return att
	}

	att.length = len(value)

	getDsplen := false
	if c.getDsplen {
		switch desc.sqlType {
		case TypeText, TypeVarying, TypeBlob:
			getDsplen = true
		}
	}

	if getDsplen {
		att.dsplen = DisplayStrLen(value, c.clientEncodingID)
		att.dsplenLine = displayStrLenLine(value, c.clientEncodingID)
	} else {
		att.dsplen = att.length
		att.dsplenLine = att.length
	}

	return att
}

const hexDigits = "0123456789ABCDEF"

// formatOctets renders raw bytes as upper-case hexadecimal pairs, the
// display form of CHARACTER SET OCTETS columns.
func formatOctets(data []byte) string {
	out := make([]byte, 0, len(data)*2)
	for _, b := range data {
		out = append(out, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return string(out)
}

// formatScaledInteger renders a raw scaled integer as its decimal text
// form. A negative scale means the raw value carries that many
// fractional digits; the sign is kept on the whole part except when the
// whole part is zero, which renders as "-0.xxx". A positive scale
// appends that many zeros.
func formatScaledInteger(value int64, scale int16) string {
	if scale < 0 {
		tens := int64(1)
		for i := scale; i < 0; i++ {
			tens *= 10
		}

		whole := value / tens
		frac := value % tens
		width := int(-scale)

		if value >= 0 {
			return fmt.Sprintf("%d.%0*d", whole, width, frac)
		}
		if whole != 0 {
			return fmt.Sprintf("%d.%0*d", whole, width, -frac)
		}
		return fmt.Sprintf("-0.%0*d", width, -frac)
	}

	if scale > 0 {
		return fmt.Sprintf("%d%0*d", value, int(scale), 0)
	}

	return strconv.FormatInt(value, 10)
}

var (
	int128Modulus = new(big.Int).Lsh(big.NewInt(1), 128)
	int128Mask    = new(big.Int).Sub(int128Modulus, big.NewInt(1))
)

// int128FromSlot decodes a 16-byte little-endian two's complement
// value slot into a signed integer.
func int128FromSlot(data []byte) *big.Int {
	be := make([]byte, 16)
	for i := 0; i < 16 && i < len(data); i++ {
		be[15-i] = data[i]
	}

	v := new(big.Int).SetBytes(be)
	if be[0]&0x80 != 0 {
		v.Sub(v, int128Modulus)
	}
	return v
}

// int128ToSlot encodes a signed integer into a 16-byte little-endian
// two's complement value slot, wrapping values outside the 128-bit
// range the way native arithmetic would.
func int128ToSlot(v *big.Int) []byte {
	be := make([]byte, 16)
	new(big.Int).And(v, int128Mask).FillBytes(be)

	out := make([]byte, 16)
	for i := range out {
		out[i] = be[15-i]
	}
	return out
}

// convertInt128 parses the leading integer out of a text value: optional
// whitespace, optional sign, then a run of digits. Parsing stops at the
// first non-digit; no scale handling is applied.
func convertInt128(s string) *big.Int {
	i := 0
	for i < len(s) && isSpaceByte(s[i]) {
		i++
	}

	neg := false
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}

	v := new(big.Int)
	ten := big.NewInt(10)
	digit := new(big.Int)
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		v.Mul(v, ten)
		digit.SetInt64(int64(s[i] - '0'))
		if neg {
			v.Sub(v, digit)
		} else {
			v.Add(v, digit)
		}
	}
	return v
}

func isSpaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// bindParam encodes one caller-supplied text value (nil for SQL NULL)
// into a parameter descriptor entry's native slot. format selects the
// db-key interpretation for text parameters: -1 means the value is a
// 16-digit hex row identifier to be converted to its raw 8-byte form.
// Blob values are streamed to the engine under the executing
// transaction. An unrecognized type tag is an error; the caller cannot
// bind safely.
func (c *Conn) bindParam(v *sqlvar, value *string, format int, trans *uintptr) error {
	dtype := v.baseType()
	declared := int(v.length)

	v.data = nil
	v.length = 0

	if value == nil {
		size, ok := nullSlotSize(dtype)
		if !ok {
			return fmt.Errorf("Unhandled sqlda_in type: %d", dtype)
		}
		// The slot stays empty; only the indicator marks the NULL.
		v.length = int16(size)
	} else {
		switch dtype {
		case TypeShort:
			raw := int16(c.scanScaledDecimal(*value, v.scale, "short/long"))
			v.data = make([]byte, 2)
			binary.LittleEndian.PutUint16(v.data, uint16(raw))
			v.length = 2

		case TypeLong:
			raw := int32(c.scanScaledDecimal(*value, v.scale, "short/long"))
			v.data = make([]byte, 4)
			binary.LittleEndian.PutUint32(v.data, uint32(raw))
			v.length = 4

		case TypeInt64:
			raw := c.scanScaledDecimal(*value, v.scale, "int64")
			v.data = make([]byte, 8)
			binary.LittleEndian.PutUint64(v.data, uint64(raw))
			v.length = 8

		case TypeInt128:
			v.data = int128ToSlot(convertInt128(*value))
			v.length = 16

		case TypeFloat:
			f := float32(parseFloatPrefix(*value))
			v.data = make([]byte, 4)
			binary.LittleEndian.PutUint32(v.data, math.Float32bits(f))
			v.length = 4

		case TypeDouble:
			f := parseFloatPrefix(*value)
			v.data = make([]byte, 8)
			binary.LittleEndian.PutUint64(v.data, math.Float64bits(f))
			v.length = 8

		case TypeVarying:
			// Coerced to the fixed form sized to the actual value.
			v.sqltype = int16(TypeText)
			v.data = []byte(*value)
			v.length = int16(len(v.data))

		case TypeText:
			if format == -1 {
				v.data = dbKeySlot(*value)
				v.length = dbKeyRawLength
				break
			}

			data := []byte(*value)
			if declared > 0 && len(data) > declared {
				c.log(LogDebug1, "bindParam: truncating text value of length %d to declared length %d", len(data), declared)
				data = data[:declared]
			}
			v.data = data
			v.length = int16(len(data))

		case TypeDate, TypeTime, TypeTimestamp, TypeTimeTZ, TypeTimeTZEx, TypeTimestampTZ, TypeTimestampTZEx:
			// Coerce to a text literal so the engine's own parser
			// interprets the value; the subtype marks the workaround.
			v.sqltype = int16(TypeText)
			v.subtype = 0x77
			v.data = []byte(*value)
			v.length = int16(len(v.data))

		case TypeBoolean:
			v.data = []byte{encodeBoolean(*value)}
			v.length = 1

		case TypeBlob:
			v.data = make([]byte, 8)
			v.length = 8
			if err := c.writeBlob(trans, v.data, []byte(*value)); err != nil {
				return err
			}

		default:
			return fmt.Errorf("Unhandled sqlda_in type: %d", dtype)
		}
	}

	if v.nullable() {
		v.nullInd = new(int16)
		if value == nil {
			*v.nullInd = -1
		}
	}

	return nil
}

// nullSlotSize returns the slot length reported to the engine for a
// NULL parameter of the given type. Text forms report zero; only the
// null indicator matters.
func nullSlotSize(tag SQLType) (int, bool) {
	switch tag {
	case TypeVarying, TypeText:
		return 0, true
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

// encodeBoolean maps a text value to the native boolean wire byte.
// Anything not recognizably true or false is false.
func encodeBoolean(value string) byte {
	if value == "" {
		return fbFalse
	}
	switch value[0] {
	case '1', 't', 'T':
		return fbTrue
	}
	return fbFalse
}

// scanScaledDecimal parses a decimal text literal into the raw scaled
// integer for a slot with the given scale, reproducing the semantics of
// scanf-based parsing: the leading minus is stripped before scanning
// the magnitude, one digit past the scale drives round-half-up, and a
// bare fraction such as ".78" is retried with a fraction-only pattern.
// Unparseable values fall back to zero with a debug log.
func (c *Conn) scanScaledDecimal(value string, sqlscale int16, typeName string) int64 {
	if sqlscale < 0 {
		scale := int64(1)
		for i := sqlscale; i < 0; i++ {
			scale *= 10
		}

		neg := false
		if idx := strings.IndexByte(value, '-'); idx >= 0 {
			neg = true
			value = value[idx+1:]
		}

		var p, q, r int64
		n, eof := scanDecimalParts(value, int(-sqlscale), &p, &q, &r)
		if n == 0 && !eof {
			if !scanFractionOnly(value, int(-sqlscale), &q, &r) {
				c.log(LogDebug1, "problem parsing %s parameter", typeName)
			}
		}

		if r >= 5 {
			q++
			p += q / scale
			q %= scale
		}

		dscale := 0
		if idx := strings.IndexByte(value, '.'); idx >= 0 {
			dscale = int(-sqlscale) - (len(value) - idx) + 1
			if dscale < 0 {
				dscale = 0
			}
		}

		result := p*scale + q*pow10(dscale)
		if neg {
			result = -result
		}
		return result
	}

	// Scale zero: scan one extra digit for rounding.
	var p, r int64
	n, eof := scanPlainParts(value, &p, &r)
	if n == 0 && !eof {
		if !scanFractionOnly(value, 0, nil, &r) {
			c.log(LogDebug1, "problem parsing %s parameter", typeName)
		}
	}

	if r >= 5 {
		if p < 0 {
			p--
		} else {
			p++
		}
	}
	return p
}

// scanDecimalParts emulates scanning "%ld.%<width>ld%1ld": the whole
// part, up to width fractional digits, and one rounding digit. n is the
// count of parts converted; eof reports input exhausted before the
// first conversion, which suppresses the fraction-only retry.
func scanDecimalParts(s string, width int, p, q, r *int64) (n int, eof bool) {
	v, pos, ok, eof := scanLong(s, 0, 0)
	if !ok {
		return 0, eof
	}
	*p = v
	n = 1

	if pos >= len(s) || s[pos] != '.' {
		return n, false
	}
	pos++

	v, pos, ok, _ = scanLong(s, pos, width)
	if !ok {
		return n, false
	}
	*q = v
	n = 2

	v, _, ok, _ = scanLong(s, pos, 1)
	if !ok {
		return n, false
	}
	*r = v
	return 3, false
}

// scanPlainParts emulates scanning "%ld.%1ld" for scale-zero slots.
func scanPlainParts(s string, p, r *int64) (n int, eof bool) {
	v, pos, ok, eof := scanLong(s, 0, 0)
	if !ok {
		return 0, eof
	}
	*p = v
	n = 1

	if pos >= len(s) || s[pos] != '.' {
		return n, false
	}
	pos++

	v, _, ok, _ = scanLong(s, pos, 1)
	if !ok {
		return n, false
	}
	*r = v
	return 2, false
}

// scanFractionOnly retries values with no whole part, such as ".78",
// against ".%<width>ld%1ld". A zero width scans only the rounding
// digit. Reports whether anything converted.
func scanFractionOnly(s string, width int, q, r *int64) bool {
	if len(s) == 0 || s[0] != '.' {
		return false
	}
	pos := 1

	if width > 0 {
		v, next, ok, _ := scanLong(s, pos, width)
		if !ok {
			return false
		}
		*q = v
		pos = next

		if v2, _, ok2, _ := scanLong(s, pos, 1); ok2 {
			*r = v2
		}
		return true
	}

	v, _, ok, _ := scanLong(s, pos, 1)
	if !ok {
		return false
	}
	*r = v
	return true
}

// scanLong converts a run of digits at pos with an optional sign,
// skipping leading whitespace, reading at most width characters when
// width is positive. ok is false when no digits were converted; eof is
// true when the input ran out before anything could be read.
func scanLong(s string, pos, width int) (v int64, next int, ok bool, eof bool) {
	for pos < len(s) && isSpaceByte(s[pos]) {
		pos++
	}
	if pos >= len(s) {
		return 0, pos, false, true
	}

	limit := len(s)
	if width > 0 && pos+width < limit {
		limit = pos + width
	}

	neg := false
	if s[pos] == '-' || s[pos] == '+' {
		neg = s[pos] == '-'
		pos++
	}

	start := pos
	for pos < limit && s[pos] >= '0' && s[pos] <= '9' {
		v = v*10 + int64(s[pos]-'0')
		pos++
	}
	if pos == start {
		return 0, pos, false, false
	}
	if neg {
		v = -v
	}
	return v, pos, true, false
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// parseFloatPrefix converts the longest leading float literal of a text
// value, yielding zero when none is present. Matches the conversion
// behavior of the C runtime's atof.
func parseFloatPrefix(s string) float64 {
	i := 0
	for i < len(s) && isSpaceByte(s[i]) {
		i++
	}
	start := i

	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	digits := false
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits = true
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			digits = true
		}
	}
	if !digits {
		return 0
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expStart := j
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j > expStart {
			i = j
		}
	}

	v, _ := strconv.ParseFloat(s[start:i], 64)
	return v
}

// ParseDBKey renders a raw 8-byte RDB$DB_KEY value as its 16-character
// upper-case hexadecimal form.
func ParseDBKey(dbKey string) string {
	raw := []byte(dbKey)
	if len(raw) > dbKeyRawLength {
		raw = raw[:dbKeyRawLength]
	}
	return formatOctets(raw)
}

// DeparseDBKey converts a 16-character hexadecimal RDB$DB_KEY
// representation back to its raw 8-byte form. Malformed digit pairs are
// skipped.
func DeparseDBKey(dbKey string) string {
	out := make([]byte, 0, dbKeyRawLength)
	for i := 0; i+1 < len(dbKey) && i < DBKeyLength; i += 2 {
		b, err := strconv.ParseUint(dbKey[i:i+2], 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(b))
	}
	return string(out)
}

// dbKeySlot produces the fixed 8-byte native slot for a db-key
// parameter supplied in hex form, zero padded if the textual form was
// short.
func dbKeySlot(value string) []byte {
	out := make([]byte, dbKeyRawLength)
	copy(out, DeparseDBKey(value))
	return out
}
