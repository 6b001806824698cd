package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string used to identify notification records.
// ULIDs sort by creation time, so journal readers can order by ID as well as seq.
func NewID() string {
	return ulid.Make().String()
}
