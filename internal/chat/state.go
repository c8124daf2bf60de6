package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chatsync/internal/models"
)

// Identity is the local user of a session.
type Identity struct {
	Username string
	Role     models.Role
	Level    int
}

// UpdateKind tells a front end what to re-render.
type UpdateKind string

const (
	UpdateTabs           UpdateKind = "tabs"
	UpdateMessages       UpdateKind = "messages"
	UpdateUnread         UpdateKind = "unread"
	UpdateComposeCleared UpdateKind = "compose-cleared"
	UpdateParticipants   UpdateKind = "participants"
	UpdateNotice         UpdateKind = "notice"
	UpdateGiftAnimation  UpdateKind = "gift-animation"
)

// Update is published to presentation subscribers after every state change.
type Update struct {
	Kind        UpdateKind      `json:"kind"`
	RoomID      string          `json:"roomId,omitempty"`
	ScrollToEnd bool            `json:"scrollToEnd,omitempty"`
	Notice      string          `json:"notice,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Outbound is a push event the session wants transmitted.
type Outbound struct {
	Event   string
	Payload any
}

// Effects are the side effects of one state transition, in the order they must run:
// updates first, then outbound events.
type Effects struct {
	Updates  []Update
	Outbound []Outbound
	Archive  []models.Message
	Outcome  Outcome
}

func (e *Effects) update(u Update) {
	e.Updates = append(e.Updates, u)
}

func (e *Effects) emit(event string, payload any) {
	e.Outbound = append(e.Outbound, Outbound{Event: event, Payload: payload})
}

// State is the reconciliation state of one chat session. It is not safe for
// concurrent use; Session serializes access.
type State struct {
	self   Identity
	window time.Duration

	tabs   *TabStore
	unread *Unread
	mod    *Moderation

	UserScrolling bool
	AutoScroll    bool

	nextTemp uint64
	pending  map[string]time.Time
	failed   map[string]struct{}
}

func NewState(self Identity, window time.Duration) *State {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &State{
		self:       self,
		window:     window,
		tabs:       NewTabStore(),
		unread:     NewUnread(),
		mod:        NewModeration(),
		AutoScroll: true,
		pending:    make(map[string]time.Time),
		failed:     make(map[string]struct{}),
	}
}

func (s *State) Self() Identity { return s.self }
func (s *State) Tabs() *TabStore { return s.tabs }
func (s *State) Unread() *Unread { return s.unread }
func (s *State) Moderation() *Moderation { return s.mod }

// PendingCount is the number of provisional messages awaiting their echo.
func (s *State) PendingCount() int {
	return len(s.pending)
}

func (s *State) autoScroll(roomID string) bool {
	return s.AutoScroll && !s.UserScrolling && roomID == s.tabs.FocusedID()
}

// focusChanged resets the unread counter of a newly focused room.
func (s *State) focusChanged(before string, fx *Effects) {
	after := s.tabs.FocusedID()
	if after == "" || after == before {
		return
	}
	s.unread.Reset(after)
	fx.update(Update{Kind: UpdateUnread, RoomID: after})
}

// OpenTab opens d, emitting join-room for a new tab. Re-opening is a no-op.
func (s *State) OpenTab(d models.RoomDescriptor) (int, Effects, error) {
	var fx Effects
	before := s.tabs.FocusedID()
	idx, created, err := s.tabs.Open(d)
	if err != nil || !created {
		return idx, fx, err
	}
	id := s.tabs.tabs[idx].ID
	s.mod.Reset(id)
	s.unread.Drop(id)
	fx.update(Update{Kind: UpdateTabs, RoomID: id})
	s.focusChanged(before, &fx)
	fx.emit(models.EventJoinRoom, models.JoinRoom{RoomID: id, Username: s.self.Username, Role: s.self.Role})
	return idx, fx, nil
}

func (s *State) removeTab(id string, fx *Effects) bool {
	tab := s.tabs.Get(id)
	if tab == nil {
		return false
	}
	for _, m := range tab.Messages {
		delete(s.pending, m.ID)
		delete(s.failed, m.ID)
	}
	before := s.tabs.FocusedID()
	s.tabs.Close(id)
	s.unread.Drop(id)
	fx.update(Update{Kind: UpdateTabs, RoomID: id})
	s.focusChanged(before, fx)
	return true
}

// CloseTab leaves the room behind id. Closing an unknown id is a no-op.
func (s *State) CloseTab(id string) Effects {
	var fx Effects
	if s.removeTab(id, &fx) {
		fx.emit(models.EventLeaveRoom, models.LeaveRoom{RoomID: id, Username: s.self.Username})
	}
	return fx
}

// Focus focuses the tab at index and clears its unread counter.
func (s *State) Focus(index int) (Effects, error) {
	var fx Effects
	if err := s.tabs.Focus(index); err != nil {
		return fx, err
	}
	id := s.tabs.FocusedID()
	s.unread.Reset(id)
	fx.update(Update{Kind: UpdateTabs, RoomID: id})
	fx.update(Update{Kind: UpdateUnread, RoomID: id})
	return fx, nil
}

// Send appends a provisional message to roomID, asks the front end to clear its
// compose box, and only then queues sendMessage.
func (s *State) Send(roomID, content string, now time.Time) (models.Message, Effects, error) {
	var fx Effects
	tab := s.tabs.Get(roomID)
	if tab == nil {
		return models.Message{}, fx, ErrTabNotFound
	}
	if err := s.mod.CanSend(roomID); err != nil {
		return models.Message{}, fx, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, fx, ErrEmptyMessage
	}

	s.nextTemp++
	msg := models.Message{
		ID:        models.ProvisionalID(s.nextTemp),
		RoomID:    roomID,
		Sender:    s.self.Username,
		Content:   content,
		Timestamp: now,
		Role:      s.self.Role,
		Level:     s.self.Level,
		Kind:      models.KindMessage,
	}
	tab.Messages = append(tab.Messages, msg)
	s.pending[msg.ID] = now

	fx.update(Update{Kind: UpdateMessages, RoomID: roomID, ScrollToEnd: s.autoScroll(roomID)})
	fx.update(Update{Kind: UpdateComposeCleared, RoomID: roomID})
	fx.emit(models.EventSendMessage, models.SendMessage{
		RoomID:  roomID,
		Sender:  msg.Sender,
		Content: msg.Content,
		Role:    msg.Role,
		Level:   msg.Level,
		Type:    msg.Kind,
		TempID:  msg.ID,
	})
	return msg, fx, nil
}

// reconcile merges msg into tab and forgets the provisional entry it confirmed.
func (s *State) reconcile(tab *RoomTab, msg models.Message) Outcome {
	var replaced string
	if msg.Kind == models.KindMessage || msg.Kind == models.KindGift {
		if i := FindProvisional(tab.Messages, msg); i >= 0 && FindExact(tab.Messages, msg.ID) < 0 {
			replaced = tab.Messages[i].ID
		}
	}
	outcome, list := Reconcile(tab.Messages, msg, s.window)
	tab.Messages = list
	if outcome == OutcomeConfirmed && replaced != "" {
		delete(s.pending, replaced)
		delete(s.failed, replaced)
	}
	return outcome
}

// Receive reconciles a confirmed inbound message into its room.
func (s *State) Receive(msg models.Message) Effects {
	fx := Effects{Outcome: OutcomeOrphaned}
	tab := s.tabs.Get(msg.RoomID)
	if tab == nil {
		return fx
	}

	outcome := s.reconcile(tab, msg)
	fx.Outcome = outcome
	if !outcome.Stored() {
		return fx
	}
	if !msg.Provisional() && (msg.Kind == models.KindMessage || msg.Kind == models.KindGift) {
		fx.Archive = append(fx.Archive, msg)
	}

	fx.update(Update{Kind: UpdateMessages, RoomID: msg.RoomID, ScrollToEnd: s.autoScroll(msg.RoomID)})
	if countsAsUnread(outcome, msg, s.tabs.FocusedID(), s.self.Username) {
		s.unread.Increment(msg.RoomID)
		fx.update(Update{Kind: UpdateUnread, RoomID: msg.RoomID})
	}
	return fx
}

// LoadHistory merges fetched history into roomID. History never counts as unread.
func (s *State) LoadHistory(roomID string, msgs []models.Message) Effects {
	var fx Effects
	tab := s.tabs.Get(roomID)
	if tab == nil {
		return fx
	}
	stored := 0
	for _, m := range msgs {
		m.RoomID = roomID
		if s.reconcile(tab, m).Stored() {
			stored++
		}
	}
	if stored > 0 {
		fx.update(Update{Kind: UpdateMessages, RoomID: roomID, ScrollToEnd: s.autoScroll(roomID)})
	}
	return fx
}

// ApplyParticipants replaces the cached roster of a room.
func (s *State) ApplyParticipants(ev models.ParticipantsUpdated) Effects {
	var fx Effects
	tab := s.tabs.Get(ev.RoomID)
	if tab == nil {
		return fx
	}
	tab.Participants = append([]models.Participant(nil), ev.Participants...)
	fx.update(Update{Kind: UpdateParticipants, RoomID: ev.RoomID})
	return fx
}

// ApplyKick removes the room's tab when the local user was kicked, whatever is focused.
func (s *State) ApplyKick(ev models.UserKicked) Effects {
	var fx Effects
	tab := s.tabs.Get(ev.RoomID)
	if tab == nil {
		return fx
	}
	if !s.mod.ApplyKick(ev, s.self.Username) {
		tab.dropParticipant(ev.KickedUser)
		fx.update(Update{Kind: UpdateParticipants, RoomID: ev.RoomID})
		return fx
	}
	name := ev.RoomName
	if name == "" {
		name = tab.Title
	}
	s.removeTab(ev.RoomID, &fx)
	fx.update(Update{
		Kind:   UpdateNotice,
		RoomID: ev.RoomID,
		Notice: fmt.Sprintf("You were kicked from %s by %s", name, ev.KickedBy),
	})
	return fx
}

// ApplyMute updates local or remote mute state for a room.
func (s *State) ApplyMute(ev models.UserMuted) Effects {
	var fx Effects
	if s.tabs.Get(ev.RoomID) == nil {
		return fx
	}
	if !s.mod.ApplyMute(ev, s.self.Username) {
		fx.update(Update{Kind: UpdateParticipants, RoomID: ev.RoomID})
		return fx
	}
	notice := fmt.Sprintf("You were muted by %s", ev.MutedBy)
	if ev.Action == models.MuteActionUnmute {
		notice = fmt.Sprintf("You were unmuted by %s", ev.MutedBy)
	}
	fx.update(Update{Kind: UpdateNotice, RoomID: ev.RoomID, Notice: notice})
	return fx
}

func (s *State) checkModerator(roomID, target string) error {
	if s.tabs.Get(roomID) == nil {
		return ErrTabNotFound
	}
	if !s.self.Role.CanModerate() {
		return ErrForbidden
	}
	if strings.TrimSpace(target) == "" {
		return ErrNoUsername
	}
	return nil
}

// Kick asks the server to remove target from roomID.
func (s *State) Kick(roomID, target string) (Effects, error) {
	var fx Effects
	if err := s.checkModerator(roomID, target); err != nil {
		return fx, err
	}
	fx.emit(models.EventKickUser, models.KickUser{RoomID: roomID, Username: target, KickedBy: s.self.Username})
	return fx, nil
}

// Mute asks the server to mute or unmute target in roomID.
func (s *State) Mute(roomID, target, action string) (Effects, error) {
	var fx Effects
	if err := s.checkModerator(roomID, target); err != nil {
		return fx, err
	}
	if action != models.MuteActionUnmute {
		action = models.MuteActionMute
	}
	fx.emit(models.EventMuteUser, models.MuteUser{RoomID: roomID, Username: target, MutedBy: s.self.Username, Action: action})
	return fx, nil
}

// Block hides username's messages in every tab.
func (s *State) Block(username string) Effects {
	var fx Effects
	if s.mod.Block(username) {
		s.touchAll(&fx)
	}
	return fx
}

// Unblock reveals username's stored messages again.
func (s *State) Unblock(username string) Effects {
	var fx Effects
	if s.mod.Unblock(username) {
		s.touchAll(&fx)
	}
	return fx
}

func (s *State) touchAll(fx *Effects) {
	for _, t := range s.tabs.tabs {
		fx.update(Update{Kind: UpdateMessages, RoomID: t.ID})
	}
}

// Rejoin re-announces every open tab after the connection came back.
func (s *State) Rejoin() Effects {
	var fx Effects
	for _, t := range s.tabs.tabs {
		fx.emit(models.EventJoinRoom, models.JoinRoom{RoomID: t.ID, Username: s.self.Username, Role: s.self.Role})
	}
	return fx
}

// SweepPending marks provisional messages older than timeout as failed. They keep
// their id and position and can still be confirmed by a late echo.
func (s *State) SweepPending(now time.Time, timeout time.Duration) Effects {
	var fx Effects
	if timeout <= 0 {
		return fx
	}
	rooms := make(map[string]struct{})
	for id, sent := range s.pending {
		if now.Sub(sent) < timeout {
			continue
		}
		delete(s.pending, id)
		s.failed[id] = struct{}{}
		for _, t := range s.tabs.tabs {
			if FindExact(t.Messages, id) >= 0 {
				rooms[t.ID] = struct{}{}
			}
		}
	}
	for _, t := range s.tabs.tabs {
		if _, ok := rooms[t.ID]; ok {
			fx.update(Update{Kind: UpdateMessages, RoomID: t.ID})
		}
	}
	return fx
}

// StatusOf derives the delivery status of a stored message.
func (s *State) StatusOf(m models.Message) Status {
	if !m.Provisional() {
		return StatusConfirmed
	}
	if _, ok := s.failed[m.ID]; ok {
		return StatusFailed
	}
	return StatusProvisional
}
