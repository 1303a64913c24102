// Package chat implements the room session protocol: it turns join, message
// and disconnect events from live connections into presence changes and the
// notifications peers receive.
package chat

import "github.com/Tyrowin/roomchat/internal/presence"

// Outbound event names.
const (
	EventMessage  = "message"
	EventRoomData = "roomData"
)

// AdminUser authors system notifications.
const AdminUser = "admin"

// Event is a notification addressed to a single connection.
type Event struct {
	Name string
	Data any
}

// Message is the payload of a message event.
type Message struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// RoomData is the payload of a roomData event: the current roster of a room.
type RoomData struct {
	Room  string                 `json:"room"`
	Users []presence.Participant `json:"users"`
}

// Emitter delivers an event to one connection. Implementations must not block;
// delivery is best effort.
type Emitter interface {
	Emit(connID string, ev Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(connID string, ev Event)

// Emit calls f(connID, ev).
func (f EmitterFunc) Emit(connID string, ev Event) {
	f(connID, ev)
}

func messageEvent(user, text string) Event {
	return Event{Name: EventMessage, Data: Message{User: user, Text: text}}
}

func roomDataEvent(room string, users []presence.Participant) Event {
	return Event{Name: EventRoomData, Data: RoomData{Room: room, Users: users}}
}
