package models

// TabKind distinguishes public rooms from 1:1 conversations.
type TabKind string

const (
	TabRoom    TabKind = "room"
	TabPrivate TabKind = "private"
)

// RoomDescriptor carries what is needed to open a tab.
type RoomDescriptor struct {
	ID          string   `json:"id"`
	Kind        TabKind  `json:"kind"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	ManagedBy   string   `json:"managedBy,omitempty"`
	Moderators  []string `json:"moderators,omitempty"`
}

// RoomSummary is one entry of the backend room list.
type RoomSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	ManagedBy        string `json:"managedBy,omitempty"`
	ParticipantCount int    `json:"participantCount"`
	PasswordRequired bool   `json:"passwordRequired"`
}

// RoomInfo is returned by a successful join.
type RoomInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ManagedBy   string   `json:"managedBy,omitempty"`
	Moderators  []string `json:"moderators,omitempty"`
}

// Descriptor turns join metadata into a tab descriptor.
func (r RoomInfo) Descriptor() RoomDescriptor {
	return RoomDescriptor{
		ID:          r.ID,
		Kind:        TabRoom,
		Title:       r.Name,
		Description: r.Description,
		ManagedBy:   r.ManagedBy,
		Moderators:  r.Moderators,
	}
}

type JoinRoomRequest struct {
	Password string `json:"password,omitempty"`
}

// APIError is the error body the backend returns on failed REST calls.
type APIError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"error,omitempty"`
}
