package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlorchat/parlor/internal/domain"
)

func expiryWithin(t *testing.T, got int64, d time.Duration) {
	t.Helper()
	want := time.Now().Add(d).UnixMilli()
	assert.InDelta(t, want, got, float64(2*time.Second/time.Millisecond))
}

func TestEmptyRoomEntersDrainingWithPublicTimeout(t *testing.T) {
	e, _ := newTestEngine(t)
	alice := connectAs(e, "c1", "alice")
	e.CreateRoom("c1", CreateRoomPayload{RoomName: "Test"})
	alice.reset()

	e.LeaveRoom("c1", LeaveRoomPayload{RoomName: "Test"})

	room, ok := e.store.Get("Test")
	require.True(t, ok)
	expiryWithin(t, room.Expiry, time.Minute)
	assert.True(t, e.timers.Active("Test"))

	// The room list broadcast carries the expiry.
	var list []domain.RoomInfo
	require.True(t, alice.last(t, EvRoomList, &list))
	for _, info := range list {
		if info.Name == "Test" {
			assert.NotZero(t, info.Expiry)
		}
	}
}

func TestEmptyPrivateRoomDrainsWithPrivateTimeout(t *testing.T) {
	e, _ := newTestEngine(t)
	connectAs(e, "c1", "alice")
	e.CreateRoom("c1", CreateRoomPayload{RoomName: "Secret", Password: "pw"})

	e.LeaveRoom("c1", LeaveRoomPayload{RoomName: "Secret"})

	room, ok := e.store.Get("Secret")
	require.True(t, ok)
	expiryWithin(t, room.Expiry, time.Hour)
}

func TestRejoinCancelsDrain(t *testing.T) {
	e, _ := newTestEngine(t)
	connectAs(e, "c1", "alice")
	e.CreateRoom("c1", CreateRoomPayload{RoomName: "Test"})
	e.LeaveRoom("c1", LeaveRoomPayload{RoomName: "Test"})
	require.True(t, e.timers.Active("Test"))

	e.JoinRoom("c1", JoinRoomPayload{RoomName: "Test"})

	room, ok := e.store.Get("Test")
	require.True(t, ok)
	assert.Zero(t, room.Expiry)
	assert.False(t, e.timers.Active("Test"))
}

func TestExpireRoomDeletesExactlyOnce(t *testing.T) {
	e, _ := newTestEngine(t)
	connectAs(e, "c1", "alice")
	e.CreateRoom("c1", CreateRoomPayload{RoomName: "Test"})
	e.LeaveRoom("c1", LeaveRoomPayload{RoomName: "Test"})

	e.expireRoom("Test")
	_, ok := e.store.Get("Test")
	assert.False(t, ok)

	// A second (raced) fire or a manual deletion finds nothing to do.
	e.expireRoom("Test")
	_, ok = e.store.Get("Test")
	assert.False(t, ok)
}

func TestCancelledTimerNeverFires(t *testing.T) {
	tt := newTimerTable()
	fired := make(chan struct{}, 1)
	tt.Arm("Test", 10*time.Millisecond, func() { fired <- struct{}{} })
	require.True(t, tt.Cancel("Test"))

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRearmReplacesPendingTimer(t *testing.T) {
	tt := newTimerTable()
	fired := make(chan string, 2)
	tt.Arm("Test", 10*time.Millisecond, func() { fired <- "first" })
	tt.Arm("Test", 20*time.Millisecond, func() { fired <- "second" })

	select {
	case got := <-fired:
		assert.Equal(t, "second", got)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("re-armed timer never fired")
	}
	select {
	case <-fired:
		t.Fatal("replaced timer fired too")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestRestartReschedulesRemainingDrain(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.store.Create("Test", "", "chat")
	require.NoError(t, err)
	e.store.SetExpiry("Test", time.Now().Add(30*time.Second).UnixMilli())

	// Simulates the startup pass over restored rooms: persisted expiry, no
	// live timer.
	e.mu.Lock()
	e.checkRoomEmpty("Test")
	e.mu.Unlock()

	assert.True(t, e.timers.Active("Test"))
	_, ok := e.store.Get("Test")
	assert.True(t, ok)
}

func TestRestartDeletesRoomExpiredWhileOffline(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.store.Create("Test", "", "chat")
	require.NoError(t, err)
	e.store.SetExpiry("Test", time.Now().Add(-time.Minute).UnixMilli())

	e.mu.Lock()
	e.checkRoomEmpty("Test")
	e.mu.Unlock()

	_, ok := e.store.Get("Test")
	assert.False(t, ok)
}

func TestLobbyNeverDrains(t *testing.T) {
	e, _ := newTestEngine(t)
	connectAs(e, "c1", "alice")
	e.JoinRoom("c1", JoinRoomPayload{RoomName: domain.LobbyRoom})
	e.LeaveRoom("c1", LeaveRoomPayload{RoomName: domain.LobbyRoom})

	lobby, ok := e.store.Get(domain.LobbyRoom)
	require.True(t, ok)
	assert.Zero(t, lobby.Expiry)
	assert.False(t, e.timers.Active(domain.LobbyRoom))
}

func TestDMRoomsNeverDrain(t *testing.T) {
	e, _ := newTestEngine(t)
	connectAs(e, "c1", "alice")
	connectAs(e, "c2", "bob")
	e.StartDM("c1", StartDMPayload{TargetUsername: "bob"})

	dmName, _ := domain.DMRoomName("alice", "bob")
	e.LeaveRoom("c1", LeaveRoomPayload{RoomName: dmName})

	room, ok := e.store.Get(dmName)
	require.True(t, ok)
	assert.Zero(t, room.Expiry)
	assert.False(t, e.timers.Active(dmName))
}

func TestDMGraceTeardown(t *testing.T) {
	e, _ := newTestEngine(t)
	connectAs(e, "c1", "alice")
	bob := connectAs(e, "c2", "bob")
	e.StartDM("c1", StartDMPayload{TargetUsername: "bob"})
	dmName, _ := domain.DMRoomName("alice", "bob")
	bob.reset()

	e.Disconnect("c1")

	var warning struct {
		RoomName string `json:"roomName"`
		Seconds  int    `json:"seconds"`
		Reason   string `json:"reason"`
	}
	require.True(t, bob.last(t, EvClosingWarning, &warning))
	assert.Equal(t, dmName, warning.RoomName)
	assert.Equal(t, 10, warning.Seconds)
	assert.Equal(t, "Chat partner disconnected", warning.Reason)
	assert.True(t, e.timers.Active(dmName))

	// Grace elapses: the room goes away and the partner is told to leave.
	e.teardownDM(dmName, "bob")
	_, ok := e.store.Get(dmName)
	assert.False(t, ok)

	var fl struct {
		RoomName string `json:"roomName"`
		Reason   string `json:"reason"`
	}
	require.True(t, bob.last(t, EvForceLeaveRoom, &fl))
	assert.Equal(t, dmName, fl.RoomName)
}

func TestDrainFireAfterRejoinDoesNotDelete(t *testing.T) {
	e, _ := newTestEngine(t)
	connectAs(e, "c1", "alice")
	e.CreateRoom("c1", CreateRoomPayload{RoomName: "Test"})
	e.LeaveRoom("c1", LeaveRoomPayload{RoomName: "Test"})
	require.True(t, e.timers.Active("Test"))

	e.JoinRoom("c1", JoinRoomPayload{RoomName: "Test"})

	// A fire that dequeued itself from the timer table before the join's
	// cancellation ran still reaches expireRoom; the drain state settled
	// under the engine lock stops it.
	e.expireRoom("Test")

	room, ok := e.store.Get("Test")
	require.True(t, ok)
	assert.Zero(t, room.Expiry)
}

func TestSecondDMDisconnectKeepsFirstGraceDeadline(t *testing.T) {
	e, _ := newTestEngine(t)
	connectAs(e, "c1", "alice")
	connectAs(e, "c2", "bob")
	e.StartDM("c1", StartDMPayload{TargetUsername: "bob"})
	dmName, _ := domain.DMRoomName("alice", "bob")

	e.Disconnect("c1")
	require.True(t, e.timers.Active(dmName))
	e.timers.mu.Lock()
	first := e.timers.timers[dmName]
	e.timers.mu.Unlock()

	// bob dropping inside the window must not push the teardown out by
	// another grace period.
	e.Disconnect("c2")

	e.timers.mu.Lock()
	current := e.timers.timers[dmName]
	e.timers.mu.Unlock()
	assert.Same(t, first, current)
}

func TestDMTeardownNotCancelledByReconnect(t *testing.T) {
	e, _ := newTestEngine(t)
	connectAs(e, "c1", "alice")
	connectAs(e, "c2", "bob")
	e.StartDM("c1", StartDMPayload{TargetUsername: "bob"})
	dmName, _ := domain.DMRoomName("alice", "bob")

	e.Disconnect("c1")
	require.True(t, e.timers.Active(dmName))

	// alice reconnects inside the grace window; the pending teardown is
	// deliberately left armed.
	connectAs(e, "c3", "alice")
	assert.True(t, e.timers.Active(dmName))

	e.teardownDM(dmName, "bob")
	_, ok := e.store.Get(dmName)
	assert.False(t, ok)
}
