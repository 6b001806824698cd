package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/seantiz/timelock/internal/store"
)

// adminKey is the configuration slot holding the administrator principal.
var adminKey = store.ConfigKey("admin")

// MaxOperationIDLen bounds the size of an operation id in bytes.
const MaxOperationIDLen = 1024

func encodeExecuteAt(t uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, t)
	return b
}

func decodeExecuteAt(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("corrupt operation record: %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
