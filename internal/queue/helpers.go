// Package queue - helpers.go
// Small internal helpers kept separate to keep manager.go focused.
package queue

import (
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/balance"
)

// snapshot returns a deep copy of the given queue, copying the Entries slice.
func snapshot(q *Queue) *Queue {
	cp := *q
	cp.Entries = append([]Entry(nil), q.Entries...)
	return &cp
}

// indexOf returns the position of player in q, or -1 if absent.
// It is intended to be called under the Manager mutex.
func indexOf(q *Queue, player int64) int {
	for i, e := range q.Entries {
		if e.Player == player {
			return i
		}
	}
	return -1
}

// guestOf returns the index of host's guest in q, or -1.
func guestOf(q *Queue, host int64) int {
	for i, e := range q.Entries {
		if e.Host == host {
			return i
		}
	}
	return -1
}

func removeAt(q *Queue, i int) Entry {
	e := q.Entries[i]
	q.Entries = append(q.Entries[:i], q.Entries[i+1:]...)
	return e
}

// Pairs extracts host/guest pairing constraints from a set of entries.
func Pairs(entries []Entry) []balance.Pair {
	var out []balance.Pair
	for _, e := range entries {
		if e.IsGuest() {
			out = append(out, balance.Pair{Host: e.Host, Guest: e.Player})
		}
	}
	return out
}

// GuestRatings returns derived ratings for guests among entries.
func GuestRatings(entries []Entry) map[int64]int {
	out := map[int64]int{}
	for _, e := range entries {
		if e.IsGuest() {
			out[e.Player] = e.GuestMMR
		}
	}
	return out
}
