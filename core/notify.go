package core

// Realtime event names. These are part of the client contract; do not rename.
const (
	EventNewAssignment     = "new-assignment"
	EventNewSubmission     = "new-submission"
	EventNewNote           = "new-note"
	EventNewAnnouncement   = "new-announcement"
	EventAttendanceUpdated = "attendance-updated"
	EventAssignmentGraded  = "assignment-graded"
)

// Notifier pushes events to connected clients. Delivery is best-effort and
// must never block the caller: there is no queueing for offline identities
// and no replay on reconnect; clients re-fetch authoritative state instead.
type Notifier interface {
	// Broadcast delivers the event to every connected client.
	Broadcast(event string, payload interface{})
	// Notify delivers the event only to connections joined under identityID;
	// it is dropped if the identity has no live connection.
	Notify(identityID, event string, payload interface{})
}

// NopNotifier discards all events.
type NopNotifier struct{}

var _ Notifier = (*NopNotifier)(nil)

func (NopNotifier) Broadcast(event string, payload interface{})           {}
func (NopNotifier) Notify(identityID, event string, payload interface{}) {}
