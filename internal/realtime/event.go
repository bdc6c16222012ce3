// Package realtime delivers row-change events to subscribers: websocket
// sessions, the cache invalidation hooks and, when Redis is configured,
// sibling server instances.
package realtime

// EventType identifies the kind of row change
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Table names carried on events. They match the migrated table names so
// subscriptions can be declared against the schema.
const (
	TableRequests     = "requests"
	TableRequestItems = "request_items"
	TableApprovals    = "request_approvals"
	TableWorkflows    = "approval_workflows"
	TableProfiles     = "profiles"
)

// Event is one row change: the table, the kind of change, the row after the
// change and (for updates and deletes) the row before it.
type Event struct {
	Table string      `json:"table"`
	Type  EventType   `json:"type"`
	New   interface{} `json:"new,omitempty"`
	Old   interface{} `json:"old,omitempty"`
}
