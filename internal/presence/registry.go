package presence

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

type joinRequest struct {
	Name string `validate:"required"`
	Room string `validate:"required"`
}

// Registry maps connection ids to participants. All operations are atomic
// with respect to each other, so GetUsersInRoom always observes a consistent
// snapshot.
//
// Participants are kept in insertion order; room listings follow that order.
type Registry struct {
	mu    sync.RWMutex
	order []Participant
	index map[string]int // connection id -> position in order
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// AddUser registers the participant for connection id after trimming name and
// room. It fails with a *ValidationError, leaving the registry untouched, when
// either is blank. An existing entry for id is replaced and moves to the end
// of the ordering.
func (r *Registry) AddUser(id, name, room string) (Participant, error) {
	req := joinRequest{
		Name: strings.TrimSpace(name),
		Room: strings.TrimSpace(room),
	}
	if err := validate.Struct(req); err != nil {
		return Participant{}, &ValidationError{Message: MsgIdentityRequired}
	}

	p := Participant{ID: id, Name: req.Name, Room: req.Room}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(id)
	r.index[id] = len(r.order)
	r.order = append(r.order, p)
	return p, nil
}

// RemoveUser deletes and returns the participant for id. The boolean is false
// when id was not registered, which makes repeated calls safe.
func (r *Registry) RemoveUser(id string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) (Participant, bool) {
	i, ok := r.index[id]
	if !ok {
		return Participant{}, false
	}
	p := r.order[i]
	r.order = append(r.order[:i], r.order[i+1:]...)
	delete(r.index, id)
	for j := i; j < len(r.order); j++ {
		r.index[r.order[j].ID] = j
	}
	return p, true
}

// GetUser looks up the participant for id.
func (r *Registry) GetUser(id string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return Participant{}, false
	}
	return r.order[i], true
}

// GetUsersInRoom lists the participants whose room matches room
// case-insensitively, in the order they joined.
func (r *Registry) GetUsersInRoom(room string) []Participant {
	key := Normalize(room)

	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(r.order, func(p Participant, _ int) bool {
		return p.RoomKey() == key
	})
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Rooms returns the number of distinct non-empty rooms.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(lo.UniqBy(r.order, func(p Participant) string {
		return p.RoomKey()
	}))
}
