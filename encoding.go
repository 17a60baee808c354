package firebird

// Column width support for UTF-8 client encodings, derived from Markus
// Kuhn's public domain wcwidth() implementation by way of the
// PostgreSQL multibyte support code. Every other encoding is treated as
// single-byte, single-cell.

type mbInterval struct {
	first rune
	last  rune
}

// Sorted list of non-overlapping intervals of non-spacing characters.
var combining = []mbInterval{
	{0x0300, 0x034E}, {0x0360, 0x0362}, {0x0483, 0x0486},
	{0x0488, 0x0489}, {0x0591, 0x05A1}, {0x05A3, 0x05B9},
	{0x05BB, 0x05BD}, {0x05BF, 0x05BF}, {0x05C1, 0x05C2},
	{0x05C4, 0x05C4}, {0x064B, 0x0655}, {0x0670, 0x0670},
	{0x06D6, 0x06E4}, {0x06E7, 0x06E8}, {0x06EA, 0x06ED},
	{0x070F, 0x070F}, {0x0711, 0x0711}, {0x0730, 0x074A},
	{0x07A6, 0x07B0}, {0x0901, 0x0902}, {0x093C, 0x093C},
	{0x0941, 0x0948}, {0x094D, 0x094D}, {0x0951, 0x0954},
	{0x0962, 0x0963}, {0x0981, 0x0981}, {0x09BC, 0x09BC},
	{0x09C1, 0x09C4}, {0x09CD, 0x09CD}, {0x09E2, 0x09E3},
	{0x0A02, 0x0A02}, {0x0A3C, 0x0A3C}, {0x0A41, 0x0A42},
	{0x0A47, 0x0A48}, {0x0A4B, 0x0A4D}, {0x0A70, 0x0A71},
	{0x0A81, 0x0A82}, {0x0ABC, 0x0ABC}, {0x0AC1, 0x0AC5},
	{0x0AC7, 0x0AC8}, {0x0ACD, 0x0ACD}, {0x0B01, 0x0B01},
	{0x0B3C, 0x0B3C}, {0x0B3F, 0x0B3F}, {0x0B41, 0x0B43},
	{0x0B4D, 0x0B4D}, {0x0B56, 0x0B56}, {0x0B82, 0x0B82},
	{0x0BC0, 0x0BC0}, {0x0BCD, 0x0BCD}, {0x0C3E, 0x0C40},
	{0x0C46, 0x0C48}, {0x0C4A, 0x0C4D}, {0x0C55, 0x0C56},
	{0x0CBF, 0x0CBF}, {0x0CC6, 0x0CC6}, {0x0CCC, 0x0CCD},
	{0x0D41, 0x0D43}, {0x0D4D, 0x0D4D}, {0x0DCA, 0x0DCA},
	{0x0DD2, 0x0DD4}, {0x0DD6, 0x0DD6}, {0x0E31, 0x0E31},
	{0x0E34, 0x0E3A}, {0x0E47, 0x0E4E}, {0x0EB1, 0x0EB1},
	{0x0EB4, 0x0EB9}, {0x0EBB, 0x0EBC}, {0x0EC8, 0x0ECD},
	{0x0F18, 0x0F19}, {0x0F35, 0x0F35}, {0x0F37, 0x0F37},
	{0x0F39, 0x0F39}, {0x0F71, 0x0F7E}, {0x0F80, 0x0F84},
	{0x0F86, 0x0F87}, {0x0F90, 0x0F97}, {0x0F99, 0x0FBC},
	{0x0FC6, 0x0FC6}, {0x102D, 0x1030}, {0x1032, 0x1032},
	{0x1036, 0x1037}, {0x1039, 0x1039}, {0x1058, 0x1059},
	{0x1160, 0x11FF}, {0x17B7, 0x17BD}, {0x17C6, 0x17C6},
	{0x17C9, 0x17D3}, {0x180B, 0x180E}, {0x18A9, 0x18A9},
	{0x200B, 0x200F}, {0x202A, 0x202E}, {0x206A, 0x206F},
	{0x20D0, 0x20E3}, {0x302A, 0x302F}, {0x3099, 0x309A},
	{0xFB1E, 0xFB1E}, {0xFE20, 0xFE23}, {0xFEFF, 0xFEFF},
	{0xFFF9, 0xFFFB},
}

// mbBisearch reports whether ucs falls in one of the table's intervals.
func mbBisearch(ucs rune, table []mbInterval) bool {
	min, max := 0, len(table)-1
	if ucs < table[0].first || ucs > table[max].last {
		return false
	}
	for max >= min {
		mid := (min + max) / 2
		switch {
		case ucs > table[mid].last:
			min = mid + 1
		case ucs < table[mid].first:
			max = mid - 1
		default:
			return true
		}
	}
	return false
}

// ucsWcwidth returns the column width of an ISO 10646 character: 0 for
// NUL and combining characters, -1 for other control characters, 2 for
// East Asian wide and fullwidth characters, 1 otherwise.
func ucsWcwidth(ucs rune) int {
	if ucs == 0 {
		return 0
	}
	if ucs < 0x20 || (ucs >= 0x7F && ucs < 0xA0) || ucs > 0x0010FFFF {
		return -1
	}
	if mbBisearch(ucs, combining) {
		return 0
	}

	if ucs >= 0x1100 &&
		(ucs <= 0x115F || // Hangul Jamo init. consonants
			(ucs >= 0x2E80 && ucs <= 0xA4CF && (ucs&^0x0011) != 0x300A &&
				ucs != 0x303F) || // CJK ... Yi
			(ucs >= 0xAC00 && ucs <= 0xD7A3) || // Hangul Syllables
			(ucs >= 0xF900 && ucs <= 0xFAFF) || // CJK Compatibility Ideographs
			(ucs >= 0xFE30 && ucs <= 0xFE6F) || // CJK Compatibility Forms
			(ucs >= 0xFF00 && ucs <= 0xFF5F) || // Fullwidth Forms
			(ucs >= 0xFFE0 && ucs <= 0xFFE6) ||
			(ucs >= 0x20000 && ucs <= 0x2FFFF)) {
		return 2
	}
	return 1
}

// utf8ToUnicode converts the UTF-8 character opening s to a code point.
// No validity checks; s must be long enough for the indicated sequence.
func utf8ToUnicode(s string) rune {
	c := s[0]
	switch {
	case c&0x80 == 0:
		return rune(c)
	case c&0xE0 == 0xC0:
		return rune(c&0x1F)<<6 | rune(s[1]&0x3F)
	case c&0xF0 == 0xE0:
		return rune(c&0x0F)<<12 | rune(s[1]&0x3F)<<6 | rune(s[2]&0x3F)
	case c&0xF8 == 0xF0:
		return rune(c&0x07)<<18 | rune(s[1]&0x3F)<<12 | rune(s[2]&0x3F)<<6 | rune(s[3]&0x3F)
	}
	// invalid on purpose
	return 0x7FFFFFFF
}

// utf8CharLen returns the byte length of the UTF-8 character opening s.
// Illegal leading bytes and sequences longer than 4 bytes count as 1.
func utf8CharLen(s string) int {
	c := s[0]
	switch {
	case c&0x80 == 0:
		return 1
	case c&0xE0 == 0xC0:
		return 2
	case c&0xF0 == 0xE0:
		return 3
	case c&0xF8 == 0xF0:
		return 4
	}
	return 1
}

// CharLen returns the byte length of the character opening s in the
// given client encoding.
func CharLen(s string, encodingID int16) int {
	if len(s) == 0 {
		return 0
	}
	if encodingID == encodingUTF8 {
		return utf8CharLen(s)
	}
	return 1
}

// DisplayLen returns the display width in character cells of the
// character opening s in the given client encoding. Control characters
// yield -1 per wcwidth() convention.
func DisplayLen(s string, encodingID int16) int {
	if len(s) == 0 {
		return 0
	}
	if encodingID == encodingUTF8 {
		return ucsWcwidth(utf8ToUnicode(s))
	}
	return 1
}

// DisplayStrLen returns the display width in single-width character
// cells of the whole string in the given client encoding. Walks
// character by character; an embedded NUL or truncated trailing
// sequence ends the walk.
func DisplayStrLen(s string, encodingID int16) int {
	dsplen := 0
	for i := 0; i < len(s) && s[i] != 0; {
		chlen := CharLen(s[i:], encodingID)
		if len(s)-i < chlen {
			break
		}
		dsplen += DisplayLen(s[i:], encodingID)
		i += chlen
	}
	return dsplen
}

// displayStrLenLine returns the length in bytes of the longest
// newline-terminated line of the value. A final line with no
// terminator only counts when no terminator was seen at all.
func displayStrLenLine(value string, encodingID int16) int {
	maxLen, curLen := 0, 0

	for i := 0; i < len(value) && value[i] != 0; i++ {
		if value[i] == '\n' || value[i] == '\r' {
			if curLen > maxLen {
				maxLen = curLen
			}
			curLen = 0
		} else {
			curLen++
		}
	}

	if maxLen != 0 {
		return maxLen
	}
	return curLen
}
