package models

import "encoding/json"

// Inbound push events.
const (
	EventConnect             = "connect"
	EventNewMessage          = "new-message"
	EventUserJoined          = "user-joined"
	EventUserLeft            = "user-left"
	EventParticipantsUpdated = "participants-updated"
	EventUserKicked          = "user-kicked"
	EventUserMuted           = "user-muted"
	EventGiftAnimation       = "gift-animation"
)

// Outbound events.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "sendMessage"
	EventKickUser    = "kick-user"
	EventMuteUser    = "mute-user"
)

// Envelope is a single frame on the push channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into a frame.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

type ParticipantsUpdated struct {
	RoomID       string        `json:"roomId"`
	Participants []Participant `json:"participants"`
}

type UserKicked struct {
	RoomID     string `json:"roomId"`
	KickedUser string `json:"kickedUser"`
	KickedBy   string `json:"kickedBy"`
	RoomName   string `json:"roomName,omitempty"`
}

// Mute actions carried by user-muted and mute-user.
const (
	MuteActionMute   = "mute"
	MuteActionUnmute = "unmute"
)

type UserMuted struct {
	RoomID    string `json:"roomId"`
	MutedUser string `json:"mutedUser"`
	MutedBy   string `json:"mutedBy"`
	Action    string `json:"action"`
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Role     Role   `json:"role,omitempty"`
}

type LeaveRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type SendMessage struct {
	RoomID  string `json:"roomId"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
	Role    Role   `json:"role,omitempty"`
	Level   int    `json:"level,omitempty"`
	Type    Kind   `json:"type"`
	TempID  string `json:"tempId"`
}

type KickUser struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	KickedBy string `json:"kickedBy"`
}

type MuteUser struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	MutedBy  string `json:"mutedBy"`
	Action   string `json:"action"`
}
