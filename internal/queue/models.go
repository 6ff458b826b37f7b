package queue

import (
	"time"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
)

// Entry is one waiting player.
type Entry struct {
	Player     int64     // discord ID, negative for guests
	Name       string    // display name
	JoinedAt   time.Time // when the player joined
	LastSeen   time.Time // last activity, reset by any response
	PromptedAt time.Time // inactivity prompt sent, zero if none pending
	Host       int64     // non-zero for guests
	GuestMMR   int       // derived rating for guests
}

// IsGuest reports whether the entry is a synthetic guest.
func (e Entry) IsGuest() bool { return e.Host != 0 }

// Queue is an ordered waiting list for one playlist.
type Queue struct {
	ID        string          // identifier (exp: "mlg_4v4")
	Name      string          // display name (exp: "MLG 4v4")
	Format    playlist.Format // capacity, team size and series rules
	Entries   []Entry         // waiting players in join order
	CreatedAt time.Time
	Paused    bool // joins rejected
	Test      bool // test mode: separate numbering, no ledger writes
}

func (q *Queue) Capacity() int { return q.Format.Capacity }

// Players returns the waiting player IDs in join order.
func (q *Queue) Players() []int64 {
	out := make([]int64, len(q.Entries))
	for i, e := range q.Entries {
		out[i] = e.Player
	}
	return out
}

// Drained is the player set removed from a full queue.
type Drained struct {
	MatchID string
	Queue   string
	Format  playlist.Format
	Test    bool
	Entries []Entry
}

// Players returns the drained player IDs in join order.
func (d *Drained) Players() []int64 {
	out := make([]int64, len(d.Entries))
	for i, e := range d.Entries {
		out[i] = e.Player
	}
	return out
}
