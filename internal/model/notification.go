package model

// Notification topics. Topic[0] of every notification is one of these.
const (
	TopicQueued    = "queued"
	TopicExecuted  = "executed"
	TopicCancelled = "cancelled"
)

// Notification is a record of a state transition published for off-chain
// style observers. Topics follow an indexable layout: Topics[0] is the action,
// Topics[1] the hex operation id. The remaining fields are the payload.
type Notification struct {
	ID          string   `json:"id"`
	Seq         int64    `json:"seq,omitempty"`
	Topics      []string `json:"topics"`
	OperationID string   `json:"operation_id"`
	Timestamp   uint64   `json:"timestamp"`
	ExecuteAt   uint64   `json:"execute_at,omitempty"`
	ExecutedAt  uint64   `json:"executed_at,omitempty"`
}

// Action returns the first topic, or "" for a malformed notification.
func (n Notification) Action() string {
	if len(n.Topics) == 0 {
		return ""
	}
	return n.Topics[0]
}

func newNotification(action string, id OperationID, now uint64) Notification {
	return Notification{
		ID:          NewID(),
		Topics:      []string{action, id.Hex()},
		OperationID: id.Hex(),
		Timestamp:   now,
	}
}

// NewQueued builds the notification emitted when an operation is queued.
func NewQueued(id OperationID, executeAt, now uint64) Notification {
	n := newNotification(TopicQueued, id, now)
	n.ExecuteAt = executeAt
	return n
}

// NewExecuted builds the notification emitted when an operation is executed.
func NewExecuted(id OperationID, now uint64) Notification {
	n := newNotification(TopicExecuted, id, now)
	n.ExecutedAt = now
	return n
}

// NewCancelled builds the notification emitted when an operation is cancelled.
func NewCancelled(id OperationID, now uint64) Notification {
	return newNotification(TopicCancelled, id, now)
}
