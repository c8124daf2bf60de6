package models

// Participant is one member of a room roster.
type Participant struct {
	Username string `json:"username"`
	Role     Role   `json:"role,omitempty"`
	Level    int    `json:"level,omitempty"`
}
