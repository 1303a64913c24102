package chat

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tyrowin/roomchat/internal/presence"
)

// ErrAlreadyJoined is returned when a joined connection asks to join again.
// A connection leaves its room only by disconnecting.
var ErrAlreadyJoined = errors.New("already joined")

// State is the lifecycle position of a connection.
type State int

const (
	Disconnected State = iota
	Joining
	Joined
)

func (s State) String() string {
	switch s {
	case Joining:
		return "joining"
	case Joined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Protocol handles the per-connection chat events on top of its own presence
// registry. Events for one connection must be delivered in arrival order; the
// caller is expected to serialize event handling.
type Protocol struct {
	users  *presence.Registry
	emit   Emitter
	logger *slog.Logger
}

// NewProtocol creates a Protocol with an empty registry that sends
// notifications through emit.
func NewProtocol(emit Emitter, logger *slog.Logger) *Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	return &Protocol{users: presence.NewRegistry(), emit: emit, logger: logger}
}

// Join admits connID to room under name. On a validation failure, or when
// connID has already joined, the error is returned and nothing is emitted.
// Otherwise the joiner is welcomed, the rest
// of the room is told about the arrival and everybody in the room receives the
// updated roster, in that order.
func (p *Protocol) Join(connID, name, room string) error {
	if current, ok := p.users.GetUser(connID); ok {
		p.logger.Debug("join rejected", "conn_id", connID, "room", current.Room, "err", ErrAlreadyJoined)
		return ErrAlreadyJoined
	}

	user, err := p.users.AddUser(connID, name, room)
	if err != nil {
		p.logger.Debug("join rejected", "conn_id", connID, "err", err)
		return err
	}

	roster := p.users.GetUsersInRoom(user.Room)

	p.emit.Emit(connID, messageEvent(AdminUser,
		fmt.Sprintf("%s, welcome to the room %s", user.Name, user.Room)))

	joined := messageEvent(AdminUser, fmt.Sprintf("%s has joined!", user.Name))
	for _, peer := range roster {
		if peer.ID != connID {
			p.emit.Emit(peer.ID, joined)
		}
	}

	p.broadcast(roster, roomDataEvent(user.Room, roster))

	p.logger.Info("participant joined",
		"conn_id", connID,
		"name", user.Name,
		"room", user.Room,
		"room_size", len(roster))
	return nil
}

// SendMessage relays text from connID to everyone in its room, including the
// sender. It is a no-op for connections that have not joined.
func (p *Protocol) SendMessage(connID, text string) {
	sender, ok := p.users.GetUser(connID)
	if !ok {
		p.logger.Debug("message from connection outside any room", "conn_id", connID)
		return
	}

	p.broadcast(p.users.GetUsersInRoom(sender.Room), messageEvent(sender.Name, text))
}

// Disconnect removes connID from the registry and notifies the remaining
// members of its room. Unknown connections are ignored.
func (p *Protocol) Disconnect(connID string) {
	user, ok := p.users.RemoveUser(connID)
	if !ok {
		return
	}

	remaining := p.users.GetUsersInRoom(user.Room)
	p.broadcast(remaining, messageEvent(AdminUser, fmt.Sprintf("%s has left!", user.Name)))
	p.broadcast(remaining, roomDataEvent(user.Room, remaining))

	p.logger.Info("participant left",
		"conn_id", connID,
		"name", user.Name,
		"room", user.Room,
		"room_size", len(remaining))
}

// State reports whether connID is currently joined to a room.
func (p *Protocol) State(connID string) State {
	if _, ok := p.users.GetUser(connID); ok {
		return Joined
	}
	return Disconnected
}

// Forget drops connID without notifying anyone. It is meant for shutdown,
// when every peer is leaving at once.
func (p *Protocol) Forget(connID string) {
	p.users.RemoveUser(connID)
}

// Roster lists the participants of room in join order.
func (p *Protocol) Roster(room string) []presence.Participant {
	return p.users.GetUsersInRoom(room)
}

// Participants returns the number of joined connections.
func (p *Protocol) Participants() int {
	return p.users.Len()
}

// Rooms returns the number of occupied rooms.
func (p *Protocol) Rooms() int {
	return p.users.Rooms()
}

func (p *Protocol) broadcast(to []presence.Participant, ev Event) {
	for _, u := range to {
		p.emit.Emit(u.ID, ev)
	}
}
