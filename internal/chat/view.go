package chat

import "chatsync/internal/models"

// Status is the delivery status of a stored message.
type Status string

const (
	StatusProvisional Status = "provisional"
	StatusConfirmed   Status = "confirmed"
	StatusFailed      Status = "failed"
)

// MessageView is a message as a front end renders it.
type MessageView struct {
	models.WireMessage
	Status Status `json:"status"`
}

// TabView summarises one tab.
type TabView struct {
	ID           string               `json:"id"`
	Kind         models.TabKind       `json:"kind"`
	Title        string               `json:"title"`
	Description  string               `json:"description,omitempty"`
	ManagedBy    string               `json:"managedBy,omitempty"`
	Moderators   []string             `json:"moderators,omitempty"`
	Participants []models.Participant `json:"participants,omitempty"`
	MutedUsers   []string             `json:"mutedUsers,omitempty"`
	Standing     string               `json:"standing"`
	Unread       int                  `json:"unread"`
	Focused      bool                 `json:"focused"`
	MessageCount int                  `json:"messageCount"`
}

// SessionView is a point-in-time snapshot of the whole session.
type SessionView struct {
	Username      string    `json:"username"`
	Role          string    `json:"role"`
	Tabs          []TabView `json:"tabs"`
	Focused       int       `json:"focused"`
	UserScrolling bool      `json:"userScrolling"`
	AutoScroll    bool      `json:"autoScroll"`
	Blocked       []string  `json:"blocked"`
	Pending       int       `json:"pending"`
	TotalUnread   int       `json:"totalUnread"`
}

// Snapshot renders the current state. Nothing in the result aliases the state.
func (s *State) Snapshot() SessionView {
	focused := s.tabs.FocusedIndex()
	v := SessionView{
		Username:      s.self.Username,
		Role:          string(s.self.Role),
		Tabs:          make([]TabView, 0, s.tabs.Len()),
		Focused:       focused,
		UserScrolling: s.UserScrolling,
		AutoScroll:    s.AutoScroll,
		Blocked:       s.mod.Blocked(),
		Pending:       len(s.pending),
		TotalUnread:   s.unread.Total(),
	}
	for i, t := range s.tabs.tabs {
		v.Tabs = append(v.Tabs, TabView{
			ID:           t.ID,
			Kind:         t.Kind,
			Title:        t.Title,
			Description:  t.Description,
			ManagedBy:    t.ManagedBy,
			Moderators:   t.ModeratorList(),
			Participants: append([]models.Participant(nil), t.Participants...),
			MutedUsers:   s.mod.RemoteMuted(t.ID),
			Standing:     s.mod.Standing(t.ID).String(),
			Unread:       s.unread.Count(t.ID),
			Focused:      i == focused,
			MessageCount: len(t.Messages),
		})
	}
	return v
}

// VisibleMessages returns roomID's messages minus blocked senders, in stored order.
func (s *State) VisibleMessages(roomID string) ([]MessageView, error) {
	tab := s.tabs.Get(roomID)
	if tab == nil {
		return nil, ErrTabNotFound
	}
	visible := s.mod.Visible(tab.Messages)
	out := make([]MessageView, 0, len(visible))
	for _, m := range visible {
		out = append(out, MessageView{WireMessage: m.Wire(), Status: s.StatusOf(m)})
	}
	return out, nil
}
