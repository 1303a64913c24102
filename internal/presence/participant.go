// Package presence keeps the process-local table of live chat participants:
// who is connected, under which display name, and in which room.
package presence

import "strings"

// Participant is the chat identity bound to one live connection.
// Name and Room keep the trimmed, caller-supplied casing for display.
type Participant struct {
	ID   string `json:"-"`
	Name string `json:"name"`
	Room string `json:"room"`
}

// RoomKey returns the normalized room used for membership comparison.
func (p Participant) RoomKey() string {
	return Normalize(p.Room)
}

// Normalize trims surrounding whitespace and lower-cases s so that names and
// rooms compare case-insensitively.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
