package model

import (
	"encoding/hex"
	"fmt"
)

// State is the derived lifecycle state of an operation. It is computed from
// the stored execution time and the current clock, never persisted.
type State string

// Operation state constants.
const (
	StateUnknown State = "unknown"
	StatePending State = "pending"
	StateReady   State = "ready"
)

// StateAt derives the state of an operation scheduled at executeAt as observed
// at now. The boundary is inclusive: at now == executeAt the operation is ready.
func StateAt(executeAt, now uint64, exists bool) State {
	if !exists {
		return StateUnknown
	}
	if now < executeAt {
		return StatePending
	}
	return StateReady
}

// OperationID is a caller-chosen opaque identifier. The engine never
// interprets its contents; it is hex-encoded wherever it needs to be text.
type OperationID []byte

// Hex returns the lowercase hex encoding of the identifier.
func (id OperationID) Hex() string {
	return hex.EncodeToString(id)
}

func (id OperationID) String() string {
	return id.Hex()
}

// ParseOperationID decodes a hex-encoded operation identifier.
func ParseOperationID(s string) (OperationID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode operation id: %w", err)
	}
	return OperationID(b), nil
}

// Operation is the read model returned by state queries.
type Operation struct {
	ID        string `json:"id"`
	State     State  `json:"state"`
	ExecuteAt uint64 `json:"execute_at"`
}
