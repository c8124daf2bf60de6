package chat

import "chatsync/internal/models"

// Unread holds per-room unread counters. Counters only grow by one or reset.
type Unread struct {
	counts map[string]int
}

func NewUnread() *Unread {
	return &Unread{counts: make(map[string]int)}
}

// Counts toward unread: freshly appended chat content from someone else in a room
// that is not focused.
func countsAsUnread(outcome Outcome, msg models.Message, focusedID, self string) bool {
	if outcome != OutcomeAppended {
		return false
	}
	if msg.Kind != models.KindMessage && msg.Kind != models.KindGift {
		return false
	}
	return msg.RoomID != focusedID && msg.Sender != self
}

func (u *Unread) Increment(roomID string) {
	u.counts[roomID]++
}

func (u *Unread) Reset(roomID string) {
	if _, ok := u.counts[roomID]; ok {
		u.counts[roomID] = 0
	}
}

// Drop forgets the counter of a closed room.
func (u *Unread) Drop(roomID string) {
	delete(u.counts, roomID)
}

func (u *Unread) Count(roomID string) int {
	return u.counts[roomID]
}

func (u *Unread) Total() int {
	n := 0
	for _, c := range u.counts {
		n += c
	}
	return n
}
