package firebird

// readBlob materializes a blob column value by opening the blob id
// fetched into the column slot and draining it segment by segment. The
// handle is closed on every path. A mid-stream engine error ends the
// read; whatever was collected is returned, so a failed blob yields a
// partial value rather than failing the whole row.
func (c *Conn) readBlob(trans *uintptr, blobID []byte) string {
	var blob uintptr

	if st := c.eng.openBlob(c.sv, &c.db, trans, &blob, blobID); !st.ok() {
		return ""
	}

	buf := bufferPool.Checkout()
	defer buf.Release()

	seg := make([]byte, blobSegmentLen)
	for {
		n, st := c.eng.getSegment(c.sv, &blob, seg)
		if n > 0 {
			buf.Write(seg[:n])
		}
		// A segment larger than the transfer buffer arrives in parts.
		if !st.ok() && st != iscStatus(iscSegment) {
			break
		}
	}

	c.eng.closeBlob(c.sv, &blob)

	value, err := buf.Bytes()
	if err != nil {
		c.log(LogDebug1, "readBlob: value exceeds buffer capacity, truncated")
	}
	return string(value)
}

// writeBlob streams a blob parameter's value to the engine in
// fixed-size segments, storing the new blob id into the parameter's
// 8-byte slot. The handle is closed on every path.
func (c *Conn) writeBlob(trans *uintptr, blobID []byte, value []byte) error {
	var blob uintptr

	if st := c.eng.createBlob(c.sv, &c.db, trans, &blob, blobID); !st.ok() {
		return NewError(ErrBlob, "unable to create blob")
	}

	for off := 0; off < len(value); off += blobSegmentLen {
		end := off + blobSegmentLen
		if end > len(value) {
			end = len(value)
		}
		if st := c.eng.putSegment(c.sv, &blob, value[off:end]); !st.ok() {
			c.eng.closeBlob(c.sv, &blob)
			return NewError(ErrBlob, "error writing blob segment")
		}
	}

	if st := c.eng.closeBlob(c.sv, &blob); !st.ok() {
		return NewError(ErrBlob, "error closing blob")
	}
	return nil
}
