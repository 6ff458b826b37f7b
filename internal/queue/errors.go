// Package queue - errors.go
// Centralized, comparable error values used across the manager logic.
package queue

// qerr is a lightweight comparable error type.
// Using constants of this type allows errors.Is to work as expected.
type qerr string

func (e qerr) Error() string { return string(e) }

var (
	ErrExists                 = qerr("queue already exists")
	ErrNotFound               = qerr("queue not found")
	ErrQueueFull              = qerr("queue is full")
	ErrQueueSuspended         = qerr("queue is paused")
	ErrAlreadyQueued          = qerr("already in this queue")
	ErrAlreadyQueuedElsewhere = qerr("already in another queue")
	ErrAlreadyInActiveMatch   = qerr("already in an active match")
	ErrNotQueued              = qerr("player not in queue")
	ErrLocked                 = qerr("player is locked into a forming match")
	ErrGuestExists            = qerr("host already has a guest")
	ErrNoGuest                = qerr("host has no guest")
	ErrGuestNotAllowed        = qerr("guests are not allowed in this playlist")
	ErrInvariant              = qerr("queue invariant violated")
)
