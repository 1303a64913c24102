package presence_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/presence"
)

func TestRegistry_AddUser(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		room     string
		wantErr  bool
		wantName string
		wantRoom string
	}{
		{name: "valid", user: "alice", room: "general", wantName: "alice", wantRoom: "general"},
		{name: "trims input", user: "  Alice ", room: "\tGeneral\n", wantName: "Alice", wantRoom: "General"},
		{name: "empty name", user: "", room: "general", wantErr: true},
		{name: "empty room", user: "alice", room: "", wantErr: true},
		{name: "whitespace name", user: "   ", room: "general", wantErr: true},
		{name: "whitespace room", user: "alice", room: " \t ", wantErr: true},
		{name: "both blank", user: " ", room: " ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := presence.NewRegistry()

			p, err := reg.AddUser("c1", tt.user, tt.room)
			if tt.wantErr {
				var verr *presence.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "Username and room are required", verr.Error())
				assert.Equal(t, 0, reg.Len())
				_, ok := reg.GetUser("c1")
				assert.False(t, ok)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, presence.Participant{ID: "c1", Name: tt.wantName, Room: tt.wantRoom}, p)

			got, ok := reg.GetUser("c1")
			require.True(t, ok)
			assert.Equal(t, p, got)
		})
	}
}

func TestRegistry_GetUsersInRoom(t *testing.T) {
	reg := presence.NewRegistry()

	_, err := reg.AddUser("c1", "alice", "general")
	require.NoError(t, err)
	_, err = reg.AddUser("c2", "bob", "General ")
	require.NoError(t, err)
	_, err = reg.AddUser("c3", "carol", "random")
	require.NoError(t, err)

	users := reg.GetUsersInRoom(" GENERAL")
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Name)
	assert.Equal(t, "bob", users[1].Name)

	assert.Len(t, reg.GetUsersInRoom("random"), 1)
	assert.Empty(t, reg.GetUsersInRoom("nowhere"))
	assert.Equal(t, 2, reg.Rooms())
}

func TestRegistry_DuplicateNamesAllowed(t *testing.T) {
	reg := presence.NewRegistry()

	_, err := reg.AddUser("c1", "alice", "general")
	require.NoError(t, err)
	_, err = reg.AddUser("c2", "ALICE", "general")
	require.NoError(t, err)

	assert.Len(t, reg.GetUsersInRoom("general"), 2)
}

func TestRegistry_AddUserReplacesExistingID(t *testing.T) {
	reg := presence.NewRegistry()

	_, err := reg.AddUser("c1", "alice", "general")
	require.NoError(t, err)
	_, err = reg.AddUser("c2", "bob", "general")
	require.NoError(t, err)
	_, err = reg.AddUser("c1", "alice", "random")
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	general := reg.GetUsersInRoom("general")
	require.Len(t, general, 1)
	assert.Equal(t, "bob", general[0].Name)

	p, ok := reg.GetUser("c1")
	require.True(t, ok)
	assert.Equal(t, "random", p.Room)
}

func TestRegistry_RemoveUserIsIdempotent(t *testing.T) {
	reg := presence.NewRegistry()

	added, err := reg.AddUser("c1", "alice", "general")
	require.NoError(t, err)

	removed, ok := reg.RemoveUser("c1")
	require.True(t, ok)
	assert.Equal(t, added, removed)

	_, ok = reg.RemoveUser("c1")
	assert.False(t, ok)

	_, ok = reg.RemoveUser("never-registered")
	assert.False(t, ok)

	assert.Empty(t, reg.GetUsersInRoom("general"))
}

func TestRegistry_RemoveKeepsOrder(t *testing.T) {
	reg := presence.NewRegistry()
	for i, name := range []string{"a", "b", "c", "d"} {
		_, err := reg.AddUser(fmt.Sprintf("c%d", i), name, "room")
		require.NoError(t, err)
	}

	_, ok := reg.RemoveUser("c1")
	require.True(t, ok)

	users := reg.GetUsersInRoom("room")
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"a", "c", "d"}, names)

	p, ok := reg.GetUser("c3")
	require.True(t, ok)
	assert.Equal(t, "d", p.Name)
}

func TestRegistry_RoomListingIsSnapshot(t *testing.T) {
	reg := presence.NewRegistry()
	_, err := reg.AddUser("c1", "alice", "general")
	require.NoError(t, err)

	users := reg.GetUsersInRoom("general")
	users[0].Name = "mallory"

	p, ok := reg.GetUser("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", p.Name)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := presence.NewRegistry()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", n)
			_, err := reg.AddUser(id, fmt.Sprintf("user%d", n), "lobby")
			assert.NoError(t, err)
			_ = reg.GetUsersInRoom("lobby")
			if n%2 == 0 {
				reg.RemoveUser(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, workers/2, reg.Len())
	assert.Len(t, reg.GetUsersInRoom("lobby"), workers/2)
}

func TestRegistry_RoomsCountsDistinctNormalizedRooms(t *testing.T) {
	r := presence.NewRegistry()
	_, _ = r.AddUser("a", "alice", "General")
	_, _ = r.AddUser("b", "bob", " general ")
	_, _ = r.AddUser("c", "carol", "random")

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 2, r.Rooms())
	assert.Equal(t, "general", presence.Normalize("  GeNeRal "))
}
