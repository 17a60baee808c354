package firebird

import (
	"database/sql"

	"src.goblgobl.com/utils/buffer"
)

// bufferPool supplies scratch space for blob assembly and diagnostic
// rendering. Buffers start small and grow on demand; the ceiling is high
// enough that only a pathological blob would hit it.
var bufferPool = buffer.NewPool(16, 4096, 1<<30)

func init() {
	sql.Register("firebird", &Driver{})
}
