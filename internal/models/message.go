package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind tags what a chat entry represents.
type Kind string

const (
	KindMessage Kind = "message"
	KindJoin    Kind = "join"
	KindLeave   Kind = "leave"
	KindGift    Kind = "gift"
	KindReport  Kind = "report"
)

// ParseKind maps a wire tag onto a Kind. An empty tag is a plain message.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindMessage:
		return KindMessage, nil
	case KindJoin:
		return KindJoin, nil
	case KindLeave:
		return KindLeave, nil
	case KindGift:
		return KindGift, nil
	case KindReport:
		return KindReport, nil
	}
	return "", fmt.Errorf("unknown message kind %q", s)
}

// Role is the privilege a sender had at send time.
type Role string

const (
	RoleUser   Role = "user"
	RoleMentor Role = "mentor"
	RoleAdmin  Role = "admin"
)

// CanModerate reports whether the role may kick or mute others.
func (r Role) CanModerate() bool {
	return r == RoleAdmin || r == RoleMentor
}

// ProvisionalPrefix namespaces ids generated locally before server confirmation.
const ProvisionalPrefix = "tmp_"

// ProvisionalID builds the n-th provisional id of a session.
func ProvisionalID(n uint64) string {
	return ProvisionalPrefix + strconv.FormatUint(n, 10)
}

// IsProvisionalID reports whether id was generated locally.
func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}

type Message struct {
	ID        string    `json:"id"`
	TempID    string    `json:"tempId,omitempty"`
	RoomID    string    `json:"roomId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"-"`
	Role      Role      `json:"role,omitempty"`
	Level     int       `json:"level,omitempty"`
	Kind      Kind      `json:"type"`
}

// Provisional reports whether the message still carries a local id.
func (m Message) Provisional() bool {
	return IsProvisionalID(m.ID)
}

// SameSend reports whether two entries carry the same logical send.
func (m Message) SameSend(o Message) bool {
	return m.Sender == o.Sender && m.Content == o.Content
}

// WireMessage is the JSON shape of a message on the push channel and in REST history.
type WireMessage struct {
	ID        string `json:"id"`
	TempID    string `json:"tempId,omitempty"`
	RoomID    string `json:"roomId"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix millis
	Role      string `json:"role,omitempty"`
	Level     int    `json:"level,omitempty"`
	Type      string `json:"type,omitempty"`
}

// Decode converts the wire shape into a Message. A zero timestamp is filled with now.
func (w WireMessage) Decode(now time.Time) (Message, error) {
	kind, err := ParseKind(w.Type)
	if err != nil {
		return Message{}, err
	}
	ts := now
	if w.Timestamp != 0 {
		ms := w.Timestamp
		// Accept seconds as well as milliseconds.
		if ms < 1_000_000_000_000 {
			ms *= 1000
		}
		ts = time.UnixMilli(ms)
	}
	return Message{
		ID:        w.ID,
		TempID:    w.TempID,
		RoomID:    w.RoomID,
		Sender:    w.Sender,
		Content:   w.Content,
		Timestamp: ts,
		Role:      Role(w.Role),
		Level:     w.Level,
		Kind:      kind,
	}, nil
}

// Wire converts a Message into its JSON shape.
func (m Message) Wire() WireMessage {
	return WireMessage{
		ID:        m.ID,
		TempID:    m.TempID,
		RoomID:    m.RoomID,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp.UnixMilli(),
		Role:      string(m.Role),
		Level:     m.Level,
		Type:      string(m.Kind),
	}
}
