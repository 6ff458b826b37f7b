package matchmaking

type merr string

func (e merr) Error() string { return string(e) }

var (
	ErrNoMatch      = merr("no such match")
	ErrWrongStage   = merr("match is not at that stage")
	ErrPingCooldown = merr("queue was pinged recently")
	ErrForbidden    = merr("insufficient permission")
)
