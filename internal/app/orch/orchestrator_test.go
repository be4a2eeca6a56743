package orch

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openboard/openboard/internal/app"
	"github.com/openboard/openboard/internal/config"
	"github.com/openboard/openboard/internal/core"
	"github.com/openboard/openboard/internal/domain"
)

type mockConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (m *mockConn) TrySend(f core.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, f)
	return nil
}

func (m *mockConn) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockConn) envelopes(t *testing.T) []Envelope {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Envelope, 0, len(m.frames))
	for _, f := range m.frames {
		var env Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

func (m *mockConn) last(t *testing.T) Envelope {
	t.Helper()
	envs := m.envelopes(t)
	require.NotEmpty(t, envs, "expected at least one event")
	return envs[len(envs)-1]
}

func (m *mockConn) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = nil
}

func decodeData[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func newTestOrch(policy config.MissingTargetPolicy) *Orchestrator {
	return New(app.NewRegistry(), app.NewRoomManager(), app.SimplePolicy{}, policy)
}

func connect(o *Orchestrator, sid core.SessionID) *mockConn {
	c := &mockConn{}
	o.Registry.Bind(sid, c, nil)
	return c
}

func send(t *testing.T, o *Orchestrator, sid core.SessionID, event string, data any) {
	t.Helper()
	var env Envelope
	env.Event = event
	if data != nil {
		b, err := json.Marshal(data)
		require.NoError(t, err)
		env.Data = b
	}
	frame, err := json.Marshal(env)
	require.NoError(t, err)
	o.dispatch(sid, frame)
}

func register(t *testing.T, o *Orchestrator, sid core.SessionID, name string) {
	t.Helper()
	send(t, o, sid, EvtRegisterUser, map[string]string{"displayName": name})
}

type roomCreated struct {
	RoomID     string `json:"roomId"`
	Name       string `json:"name"`
	Permission string `json:"permission"`
	IsOwner    bool   `json:"isOwner"`
}

type roomJoined struct {
	RoomID        string            `json:"roomId"`
	Name          string            `json:"name"`
	Permission    string            `json:"permission"`
	IsOwner       bool              `json:"isOwner"`
	CanvasObjects []json.RawMessage `json:"canvasObjects"`
}

func createRoom(t *testing.T, o *Orchestrator, sid core.SessionID, c *mockConn, payload map[string]any) roomCreated {
	t.Helper()
	send(t, o, sid, EvtCreateRoom, payload)
	env := c.last(t)
	require.Equal(t, EvtRoomCreated, env.Event)
	return decodeData[roomCreated](t, env)
}

func TestRegisterUser(t *testing.T) {
	o := newTestOrch("")
	c := connect(o, "x")

	register(t, o, "x", "Alice")
	env := c.last(t)
	require.Equal(t, EvtRegistrationSuccess, env.Event)
	assert.Equal(t, "Alice",
		decodeData[map[string]string](t, env)["displayName"])

	// empty name rejected
	register(t, o, "x", "")
	assert.Equal(t, EvtError, c.last(t).Event)
}

func TestCreateRoomRequiresIdentity(t *testing.T) {
	o := newTestOrch("")
	c := connect(o, "x")

	send(t, o, "x", EvtCreateRoom, map[string]any{"name": "demo"})
	env := c.last(t)
	require.Equal(t, EvtError, env.Event)
	assert.Equal(t, msgNotRegistered, decodeData[errorPayload](t, env).Message)
}

// Mirrors the full Alice/Bob walkthrough: view-by-default room, denied
// add, permission grant, successful add, staggered disconnects.
func TestEndToEndScenario(t *testing.T) {
	o := newTestOrch("")
	x := connect(o, "conn-x")
	y := connect(o, "conn-y")

	register(t, o, "conn-x", "Alice")
	created := createRoom(t, o, "conn-x", x, map[string]any{
		"name": "demo", "isPrivate": false, "defaultPermission": "view",
	})
	assert.Equal(t, "edit", created.Permission)
	assert.True(t, created.IsOwner)

	register(t, o, "conn-y", "Bob")
	send(t, o, "conn-y", EvtGetRooms, nil)
	env := y.last(t)
	require.Equal(t, EvtRoomsList, env.Event)
	list := decodeData[[]core.RoomInfo](t, env)
	require.Len(t, list, 1)
	assert.Equal(t, domain.RoomName("demo"), list[0].Name)
	assert.Equal(t, 1, list[0].MemberCount)
	assert.False(t, list[0].HasPassword)

	x.clear()
	send(t, o, "conn-y", EvtJoinRoom, map[string]string{"roomId": created.RoomID})
	joined := decodeData[roomJoined](t, y.last(t))
	assert.Equal(t, "view", joined.Permission)
	assert.False(t, joined.IsOwner)
	assert.Empty(t, joined.CanvasObjects)

	xEnv := x.last(t)
	require.Equal(t, EvtUserJoined, xEnv.Event)
	userJoined := decodeData[userJoinedPayload](t, xEnv)
	assert.Equal(t, "Bob", userJoined.DisplayName)
	assert.Equal(t, 2, userJoined.MemberCount)

	// Bob has view only: add is rejected with an error, Alice sees nothing.
	x.clear()
	y.clear()
	send(t, o, "conn-y", EvtAddObject, map[string]any{
		"id": "o1", "obj": map[string]any{"type": "rect"},
	})
	assert.Empty(t, x.envelopes(t))
	yEnv := y.last(t)
	require.Equal(t, EvtError, yEnv.Event)
	assert.Equal(t, msgNoEditPermission, decodeData[errorPayload](t, yEnv).Message)

	// Alice grants edit.
	y.clear()
	send(t, o, "conn-x", EvtChangePermission, map[string]string{
		"targetConnectionId": "conn-y", "newPermission": "edit",
	})
	yEnv = y.last(t)
	require.Equal(t, EvtPermissionChanged, yEnv.Event)
	assert.Equal(t, "edit", decodeData[map[string]string](t, yEnv)["newPermission"])
	assert.Equal(t, EvtPermissionChangeSuccess, x.last(t).Event)

	// Retry succeeds and reaches Alice verbatim.
	x.clear()
	send(t, o, "conn-y", EvtAddObject, map[string]any{
		"id": "o1", "obj": map[string]any{"type": "rect", "left": 5},
	})
	xEnv = x.last(t)
	require.Equal(t, EvtAddObject, xEnv.Event)
	var added struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(xEnv.Data, &added))
	assert.Equal(t, "o1", added.ID)

	// Alice disconnects: Bob notified, room persists.
	y.clear()
	o.handleDisconnect("conn-x")
	yEnv = y.last(t)
	require.Equal(t, EvtUserLeft, yEnv.Event)
	left := decodeData[userLeftPayload](t, yEnv)
	assert.Equal(t, "Alice", left.DisplayName)
	assert.Equal(t, 1, left.MemberCount)
	_, ok := o.Rooms.Get(domain.RoomID(created.RoomID))
	assert.True(t, ok, "room persists while Bob remains")

	// Bob disconnects: room is deleted in the same step.
	o.handleDisconnect("conn-y")
	_, ok = o.Rooms.Get(domain.RoomID(created.RoomID))
	assert.False(t, ok, "empty room removed")
}

func TestJoinSwitchesRooms(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")
	b := connect(o, "b")
	register(t, o, "a", "Alice")
	register(t, o, "b", "Bob")

	roomA := createRoom(t, o, "a", a, map[string]any{"name": "room-a"})
	roomB := createRoom(t, o, "b", b, map[string]any{"name": "room-b"})

	// Bob joins A: his own room B empties and disappears, and exactly
	// one membership (in A) remains.
	send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": roomA.RoomID})
	require.Equal(t, EvtRoomJoined, b.last(t).Event)

	_, ok := o.Rooms.Get(domain.RoomID(roomB.RoomID))
	assert.False(t, ok, "room B deleted once empty")

	svcA, ok := o.Rooms.Get(domain.RoomID(roomA.RoomID))
	require.True(t, ok)
	assert.Equal(t, 2, svcA.MemberCount())
	got, ok := o.Registry.RoomOf("b")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID(roomA.RoomID), got)
}

func TestRejoinOwnRoom(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")
	register(t, o, "a", "Alice")
	created := createRoom(t, o, "a", a, map[string]any{
		"name": "demo", "defaultPermission": "view",
	})

	// Re-joining the room you own must not tear it down, but you come
	// back as an ordinary member.
	send(t, o, "a", EvtJoinRoom, map[string]string{"roomId": created.RoomID})
	joined := decodeData[roomJoined](t, a.last(t))
	assert.Equal(t, "view", joined.Permission)
	assert.False(t, joined.IsOwner)

	svc, ok := o.Rooms.Get(domain.RoomID(created.RoomID))
	require.True(t, ok)
	assert.Equal(t, 1, svc.MemberCount())
}

func TestJoinErrors(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")

	send(t, o, "a", EvtJoinRoom, map[string]string{"roomId": "nope"})
	assert.Equal(t, msgNotRegistered, decodeData[errorPayload](t, a.last(t)).Message)

	register(t, o, "a", "Alice")
	send(t, o, "a", EvtJoinRoom, map[string]string{"roomId": "nope"})
	assert.Equal(t, msgRoomNotFound, decodeData[errorPayload](t, a.last(t)).Message)
}

func TestPasswordProtectedRoom(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")
	b := connect(o, "b")
	register(t, o, "a", "Alice")
	register(t, o, "b", "Bob")

	created := createRoom(t, o, "a", a, map[string]any{
		"name": "secret", "password": "hunter2",
	})

	send(t, o, "b", EvtGetRooms, nil)
	list := decodeData[[]core.RoomInfo](t, b.last(t))
	require.Len(t, list, 1)
	assert.True(t, list[0].HasPassword)

	send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": created.RoomID, "password": "wrong"})
	assert.Equal(t, msgWrongPassword, decodeData[errorPayload](t, b.last(t)).Message)

	send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": created.RoomID, "password": "hunter2"})
	assert.Equal(t, EvtRoomJoined, b.last(t).Event)
}

func TestChangePermissionOwnerOnly(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")
	b := connect(o, "b")
	register(t, o, "a", "Alice")
	register(t, o, "b", "Bob")
	created := createRoom(t, o, "a", a, map[string]any{"name": "demo"})
	send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": created.RoomID})

	// non-owner denied
	send(t, o, "b", EvtChangePermission, map[string]string{
		"targetConnectionId": "a", "newPermission": "view",
	})
	assert.Equal(t, msgNotOwner, decodeData[errorPayload](t, b.last(t)).Message)
	m, _ := mustMembership(t, o, created.RoomID, "a")
	assert.Equal(t, domain.PermissionEdit, m.Permission, "owner permission untouched")

	// unknown target
	send(t, o, "a", EvtChangePermission, map[string]string{
		"targetConnectionId": "ghost", "newPermission": "view",
	})
	assert.Equal(t, msgTargetNotFound, decodeData[errorPayload](t, a.last(t)).Message)

	// bad permission value
	send(t, o, "a", EvtChangePermission, map[string]string{
		"targetConnectionId": "b", "newPermission": "admin",
	})
	assert.Equal(t, msgInvalidPermission, decodeData[errorPayload](t, a.last(t)).Message)
}

func mustMembership(t *testing.T, o *Orchestrator, roomID string, sid core.SessionID) (*domain.Membership, core.RoomService) {
	t.Helper()
	svc, ok := o.Rooms.Get(domain.RoomID(roomID))
	require.True(t, ok)
	m, ok := svc.Membership(sid)
	require.True(t, ok)
	return m, svc
}

func TestGetRoomUsersOwnerOnly(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")
	b := connect(o, "b")
	register(t, o, "a", "Alice")
	register(t, o, "b", "Bob")
	created := createRoom(t, o, "a", a, map[string]any{"name": "demo", "defaultPermission": "view"})
	send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": created.RoomID})

	send(t, o, "b", EvtGetRoomUsers, nil)
	assert.Equal(t, msgNotOwner, decodeData[errorPayload](t, b.last(t)).Message)

	send(t, o, "a", EvtGetRoomUsers, nil)
	env := a.last(t)
	require.Equal(t, EvtRoomUsers, env.Event)
	users := decodeData[[]core.MemberDTO](t, env)
	require.Len(t, users, 2)

	byConn := make(map[core.SessionID]core.MemberDTO)
	for _, u := range users {
		byConn[u.ConnectionID] = u
	}
	assert.True(t, byConn["a"].IsOwner)
	assert.Equal(t, domain.PermissionView, byConn["b"].Permission)
}

func TestLateJoinerSnapshot(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")
	b := connect(o, "b")
	register(t, o, "a", "Alice")
	register(t, o, "b", "Bob")
	created := createRoom(t, o, "a", a, map[string]any{"name": "demo"})

	send(t, o, "a", EvtAddObject, map[string]any{"id": "o1", "obj": map[string]any{"type": "rect", "left": 1}})
	send(t, o, "a", EvtAddObject, map[string]any{"id": "o2", "obj": map[string]any{"type": "circle"}})
	send(t, o, "a", EvtModifyObject, map[string]any{"id": "o1", "obj": map[string]any{"type": "rect", "left": 99}})
	send(t, o, "a", EvtRemoveObject, map[string]string{"id": "o2"})

	send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": created.RoomID})
	joined := decodeData[roomJoined](t, b.last(t))
	require.Len(t, joined.CanvasObjects, 1)

	var surviving struct {
		ID  string `json:"id"`
		Obj struct {
			Left float64 `json:"left"`
		} `json:"obj"`
	}
	require.NoError(t, json.Unmarshal(joined.CanvasObjects[0], &surviving))
	assert.Equal(t, "o1", surviving.ID)
	assert.Equal(t, 99.0, surviving.Obj.Left, "snapshot reflects the modify")
}

func TestRemoveObjectIdempotent(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")
	b := connect(o, "b")
	register(t, o, "a", "Alice")
	register(t, o, "b", "Bob")
	created := createRoom(t, o, "a", a, map[string]any{"name": "demo"})
	send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": created.RoomID})

	send(t, o, "a", EvtAddObject, map[string]any{"id": "o1", "obj": map[string]any{"type": "rect"}})
	b.clear()
	a.clear()

	send(t, o, "a", EvtRemoveObject, map[string]string{"id": "o1"})
	send(t, o, "a", EvtRemoveObject, map[string]string{"id": "o1"})

	// both removals relayed under the default policy, no error to sender
	envs := b.envelopes(t)
	require.Len(t, envs, 2)
	for _, env := range envs {
		assert.Equal(t, EvtRemoveObject, env.Event)
	}
	assert.Empty(t, a.envelopes(t))
}

func TestMissingTargetPolicies(t *testing.T) {
	tests := []struct {
		name       string
		policy     config.MissingTargetPolicy
		wantRelay  bool
		wantSender string // expected error event, "" for none
	}{
		{name: "relay anyway", policy: config.RelayAnyway, wantRelay: true},
		{name: "suppress", policy: config.Suppress, wantRelay: false},
		{name: "error", policy: config.ErrorOut, wantRelay: false, wantSender: msgObjectNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrch(tt.policy)
			a := connect(o, "a")
			b := connect(o, "b")
			register(t, o, "a", "Alice")
			register(t, o, "b", "Bob")
			created := createRoom(t, o, "a", a, map[string]any{"name": "demo"})
			send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": created.RoomID})
			a.clear()
			b.clear()

			send(t, o, "a", EvtModifyObject, map[string]any{
				"id": "ghost", "obj": map[string]any{"type": "rect"},
			})

			if tt.wantRelay {
				require.Len(t, b.envelopes(t), 1)
				assert.Equal(t, EvtModifyObject, b.last(t).Event)
			} else {
				assert.Empty(t, b.envelopes(t))
			}
			if tt.wantSender != "" {
				assert.Equal(t, tt.wantSender, decodeData[errorPayload](t, a.last(t)).Message)
			} else {
				assert.Empty(t, a.envelopes(t))
			}
		})
	}
}

func TestStrokeRelay(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")
	b := connect(o, "b")
	register(t, o, "a", "Alice")
	register(t, o, "b", "Bob")
	created := createRoom(t, o, "a", a, map[string]any{"name": "demo"})
	send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": created.RoomID})
	b.clear()

	send(t, o, "a", EvtDrawingStart, map[string]any{
		"pointer": map[string]float64{"x": 1, "y": 2},
		"style":   map[string]any{"color": "#000", "width": 3},
	})
	send(t, o, "a", EvtDrawingPath, map[string]any{"pointer": map[string]float64{"x": 2, "y": 3}})
	send(t, o, "a", EvtDrawingEnd, nil)

	events := b.envelopes(t)
	require.Len(t, events, 3)
	assert.Equal(t, EvtDrawingStart, events[0].Event)
	assert.Equal(t, EvtDrawingPath, events[1].Event)
	assert.Equal(t, EvtDrawingEnd, events[2].Event)
}

func TestStrokeDeniedSilently(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")
	b := connect(o, "b")
	register(t, o, "a", "Alice")
	register(t, o, "b", "Bob")
	created := createRoom(t, o, "a", a, map[string]any{
		"name": "demo", "defaultPermission": "view",
	})
	send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": created.RoomID})
	a.clear()
	b.clear()

	// viewer strokes: no relay and, unlike object ops, no error either
	send(t, o, "b", EvtDrawingStart, map[string]any{"pointer": map[string]float64{"x": 1}})
	send(t, o, "b", EvtDrawingPath, map[string]any{"pointer": map[string]float64{"x": 2}})
	send(t, o, "b", EvtDrawingEnd, nil)

	assert.Empty(t, a.envelopes(t))
	assert.Empty(t, b.envelopes(t))
}

func TestStrokeContinuationWithoutStartDropped(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")
	b := connect(o, "b")
	register(t, o, "a", "Alice")
	register(t, o, "b", "Bob")
	created := createRoom(t, o, "a", a, map[string]any{"name": "demo"})
	send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": created.RoomID})
	b.clear()

	// path/end with no open stroke never reach other members
	send(t, o, "a", EvtDrawingPath, map[string]any{"pointer": map[string]float64{"x": 2}})
	send(t, o, "a", EvtDrawingEnd, nil)
	assert.Empty(t, b.envelopes(t))
}

func TestClearCanvas(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")
	b := connect(o, "b")
	register(t, o, "a", "Alice")
	register(t, o, "b", "Bob")
	created := createRoom(t, o, "a", a, map[string]any{"name": "demo"})
	send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": created.RoomID})
	send(t, o, "a", EvtAddObject, map[string]any{"id": "o1", "obj": map[string]any{"type": "rect"}})
	b.clear()

	send(t, o, "a", EvtClearCanvas, nil)
	assert.Equal(t, EvtClearCanvas, b.last(t).Event)

	_, svc := mustMembership(t, o, created.RoomID, "a")
	assert.Empty(t, svc.CanvasSnapshot())
}

func TestLeaveRoomEvent(t *testing.T) {
	o := newTestOrch("")
	a := connect(o, "a")
	b := connect(o, "b")
	register(t, o, "a", "Alice")
	register(t, o, "b", "Bob")
	created := createRoom(t, o, "a", a, map[string]any{"name": "demo"})
	send(t, o, "b", EvtJoinRoom, map[string]string{"roomId": created.RoomID})
	a.clear()

	send(t, o, "b", EvtLeaveRoom, nil)
	assert.Equal(t, EvtRoomLeft, b.last(t).Event)
	left := decodeData[userLeftPayload](t, a.last(t))
	assert.Equal(t, "Bob", left.DisplayName)
	assert.Equal(t, 1, left.MemberCount)

	// connection stays usable after leaving
	send(t, o, "b", EvtGetRooms, nil)
	assert.Equal(t, EvtRoomsList, b.last(t).Event)
}

func TestDisconnectForgetsIdentity(t *testing.T) {
	o := newTestOrch("")
	connect(o, "a")
	register(t, o, "a", "Alice")

	o.handleDisconnect("a")
	_, ok := o.Registry.User("a")
	assert.False(t, ok)
	assert.Equal(t, 0, o.Registry.SessionCount())
}

func TestUnknownAndMalformed(t *testing.T) {
	o := newTestOrch("")
	c := connect(o, "a")

	send(t, o, "a", "teleport", nil)
	assert.Equal(t, msgUnknownEvent, decodeData[errorPayload](t, c.last(t)).Message)

	o.dispatch("a", []byte("{not json"))
	assert.Equal(t, msgInvalidPayload, decodeData[errorPayload](t, c.last(t)).Message)
}

func TestPing(t *testing.T) {
	o := newTestOrch("")
	c := connect(o, "a")
	send(t, o, "a", EvtPing, nil)
	assert.Equal(t, EvtPong, c.last(t).Event)
}
