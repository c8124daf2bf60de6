package chat

import (
	"sort"
	"strings"

	"chatsync/internal/models"
)

// RoomTab is one open conversation.
type RoomTab struct {
	ID           string
	Kind         models.TabKind
	Title        string
	Description  string
	ManagedBy    string
	Moderators   map[string]struct{}
	Participants []models.Participant
	Messages     []models.Message
}

func newRoomTab(d models.RoomDescriptor) *RoomTab {
	kind := d.Kind
	if kind == "" {
		kind = models.TabRoom
	}
	title := d.Title
	if title == "" {
		title = d.ID
	}
	mods := make(map[string]struct{}, len(d.Moderators))
	for _, m := range d.Moderators {
		mods[m] = struct{}{}
	}
	return &RoomTab{
		ID:          d.ID,
		Kind:        kind,
		Title:       title,
		Description: d.Description,
		ManagedBy:   d.ManagedBy,
		Moderators:  mods,
	}
}

// ModeratorList returns the moderator set sorted.
func (t *RoomTab) ModeratorList() []string {
	out := make([]string, 0, len(t.Moderators))
	for m := range t.Moderators {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// dropParticipant removes username from the cached roster.
func (t *RoomTab) dropParticipant(username string) {
	kept := t.Participants[:0]
	for _, p := range t.Participants {
		if p.Username != username {
			kept = append(kept, p)
		}
	}
	t.Participants = kept
}

// TabStore keeps open tabs in creation order and tracks which one is focused.
// It is not safe for concurrent use; the session loop owns it.
type TabStore struct {
	tabs    []*RoomTab
	focused int
}

func NewTabStore() *TabStore {
	return &TabStore{focused: -1}
}

// Open appends a tab for d unless one with the same id exists, in which case the
// existing index is returned and created is false. The first tab becomes focused.
func (s *TabStore) Open(d models.RoomDescriptor) (index int, created bool, err error) {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return -1, false, ErrInvalidDescriptor
	}
	if i := s.Index(d.ID); i >= 0 {
		return i, false, nil
	}
	s.tabs = append(s.tabs, newRoomTab(d))
	if len(s.tabs) == 1 {
		s.focused = 0
	}
	return len(s.tabs) - 1, true, nil
}

// Close removes the tab with id. When the focused tab is closed focus moves to the
// tab now at the same position, else the last tab, else nothing.
func (s *TabStore) Close(id string) bool {
	i := s.Index(id)
	if i < 0 {
		return false
	}
	s.tabs = append(s.tabs[:i], s.tabs[i+1:]...)

	switch {
	case len(s.tabs) == 0:
		s.focused = -1
	case i < s.focused:
		s.focused--
	case i == s.focused && i >= len(s.tabs):
		s.focused = len(s.tabs) - 1
	}
	return true
}

// Focus sets the focused tab.
func (s *TabStore) Focus(index int) error {
	if index < 0 || index >= len(s.tabs) {
		return ErrTabNotFound
	}
	s.focused = index
	return nil
}

// FocusedIndex returns -1 when no tab is open.
func (s *TabStore) FocusedIndex() int {
	return s.focused
}

func (s *TabStore) Focused() *RoomTab {
	if s.focused < 0 {
		return nil
	}
	return s.tabs[s.focused]
}

// FocusedID returns the focused room id or "".
func (s *TabStore) FocusedID() string {
	if t := s.Focused(); t != nil {
		return t.ID
	}
	return ""
}

func (s *TabStore) Index(id string) int {
	for i, t := range s.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *TabStore) Get(id string) *RoomTab {
	if i := s.Index(id); i >= 0 {
		return s.tabs[i]
	}
	return nil
}

func (s *TabStore) Len() int {
	return len(s.tabs)
}

// Tabs returns the tabs in display order. The slice is a copy; the tabs are not.
func (s *TabStore) Tabs() []*RoomTab {
	out := make([]*RoomTab, len(s.tabs))
	copy(out, s.tabs)
	return out
}

// PrivateRoomID is the stable id of the 1:1 conversation between a and b.
func PrivateRoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "private:" + a + ":" + b
}
