package app

import (
	"strconv"
	"sync"

	d "github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/adapters/discord"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
)

// roster remembers display names seen at join time. Guests only exist here.
type roster struct {
	mu   sync.RWMutex
	byID map[int64]string
}

func newRoster() *roster { return &roster{byID: map[int64]string{}} }

func (r *roster) Put(id int64, name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	r.byID[id] = name
	r.mu.Unlock()
}

// PutEntries records every entry of q.
func (r *roster) PutEntries(q *queue.Queue) {
	r.mu.Lock()
	for _, e := range q.Entries {
		if e.Name != "" {
			r.byID[e.Player] = e.Name
		}
	}
	r.mu.Unlock()
}

// Name is a plain-text name, for select menus and logs.
func (r *roster) Name(id int64) string {
	r.mu.RLock()
	n, ok := r.byID[id]
	r.mu.RUnlock()
	if ok {
		return n
	}
	if id < 0 {
		return "guest"
	}
	return strconv.FormatInt(id, 10)
}

// Mention renders real players as mentions and guests by name.
func (r *roster) Mention(id int64) string {
	if id > 0 {
		return d.Mention(id)
	}
	return r.Name(id)
}

func (r *roster) Entry(e queue.Entry) string {
	if e.Name != "" {
		return e.Name
	}
	return r.Name(e.Player)
}
