package ui

import "strings"

// Component actions. A custom ID is "action:arg:arg".
const (
	ActJoin         = "join"
	ActLeave        = "leave"
	ActGuest        = "guest"
	ActPing         = "ping"
	ActKick         = "kick"
	ActActive       = "active"
	ActReady        = "ready"
	ActSelect       = "sel"
	ActReject       = "reject"
	ActDraft        = "draft"
	ActDraftConfirm = "draft_ok"
	ActDraftCancel  = "draft_no"
	ActDraftUndo    = "draft_undo"
	ActPick         = "pick"
	ActLock         = "lock"
	ActWin          = "win"
	ActEnd          = "end"
)

const sep = ":"

// CustomID joins an action and its arguments.
func CustomID(action string, args ...string) string {
	return strings.Join(append([]string{action}, args...), sep)
}

// ParseCustomID splits a custom ID back into action and arguments.
func ParseCustomID(id string) (string, []string) {
	parts := strings.Split(id, sep)
	return parts[0], parts[1:]
}
