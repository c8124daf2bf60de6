package chat

import (
	"sort"

	"chatsync/internal/models"
)

// Standing is the local user's moderation state in one room.
type Standing int

const (
	StandingNormal Standing = iota
	StandingMuted
	StandingKicked
)

func (s Standing) String() string {
	switch s {
	case StandingMuted:
		return "muted"
	case StandingKicked:
		return "kicked"
	}
	return "normal"
}

// Moderation tracks room-enforced standing (mute, kick) separately from personal
// filtering (block). Blocking never touches stored messages.
type Moderation struct {
	standing    map[string]Standing
	remoteMuted map[string]map[string]struct{}
	blocked     map[string]struct{}
}

func NewModeration() *Moderation {
	return &Moderation{
		standing:    make(map[string]Standing),
		remoteMuted: make(map[string]map[string]struct{}),
		blocked:     make(map[string]struct{}),
	}
}

func (m *Moderation) Standing(roomID string) Standing {
	return m.standing[roomID]
}

// Reset puts roomID back to normal, as on a fresh join.
func (m *Moderation) Reset(roomID string) {
	delete(m.standing, roomID)
	delete(m.remoteMuted, roomID)
}

// CanSend rejects sends from a muted local user.
func (m *Moderation) CanSend(roomID string) error {
	if m.standing[roomID] == StandingMuted {
		return ErrMuted
	}
	return nil
}

// ApplyMute handles a user-muted event. It reports whether the local user's
// standing changed.
func (m *Moderation) ApplyMute(ev models.UserMuted, self string) bool {
	unmute := ev.Action == models.MuteActionUnmute
	if ev.MutedUser != self {
		set := m.remoteMuted[ev.RoomID]
		if unmute {
			delete(set, ev.MutedUser)
			return false
		}
		if set == nil {
			set = make(map[string]struct{})
			m.remoteMuted[ev.RoomID] = set
		}
		set[ev.MutedUser] = struct{}{}
		return false
	}

	cur := m.standing[ev.RoomID]
	switch {
	case cur == StandingKicked:
		return false
	case unmute && cur == StandingMuted:
		m.standing[ev.RoomID] = StandingNormal
		return true
	case !unmute && cur == StandingNormal:
		m.standing[ev.RoomID] = StandingMuted
		return true
	}
	return false
}

// ApplyKick handles a user-kicked event and reports whether it names the local user.
func (m *Moderation) ApplyKick(ev models.UserKicked, self string) bool {
	if ev.KickedUser != self {
		if set := m.remoteMuted[ev.RoomID]; set != nil {
			delete(set, ev.KickedUser)
		}
		return false
	}
	m.standing[ev.RoomID] = StandingKicked
	delete(m.remoteMuted, ev.RoomID)
	return true
}

// RemoteMuted lists other users muted in roomID.
func (m *Moderation) RemoteMuted(roomID string) []string {
	return sortedKeys(m.remoteMuted[roomID])
}

// Block hides username's messages at read time. It reports whether anything changed.
func (m *Moderation) Block(username string) bool {
	if _, ok := m.blocked[username]; ok {
		return false
	}
	m.blocked[username] = struct{}{}
	return true
}

func (m *Moderation) Unblock(username string) bool {
	if _, ok := m.blocked[username]; !ok {
		return false
	}
	delete(m.blocked, username)
	return true
}

func (m *Moderation) IsBlocked(username string) bool {
	_, ok := m.blocked[username]
	return ok
}

func (m *Moderation) Blocked() []string {
	return sortedKeys(m.blocked)
}

// Visible filters out messages from blocked senders without touching msgs.
func (m *Moderation) Visible(msgs []models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, msg := range msgs {
		if m.IsBlocked(msg.Sender) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
