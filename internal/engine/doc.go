// Package engine is the operation registry of the timelock. It accepts an
// opaque operation id from the administrator, holds it for at least the
// minimum delay, and lets it be executed exactly once after its scheduled
// time or cancelled at any point before that.
//
// Every public call is one atomic unit: preconditions are checked, the
// record is written inside a single store transaction, and the notification
// is published only after that transaction commits.
package engine
