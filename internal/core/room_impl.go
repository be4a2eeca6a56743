package core

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/openboard/openboard/internal/domain"
)

type memberEntry struct {
	membership *domain.Membership
	conn       SignalConnection
}

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources. All mutations arrive from
// the orchestrator's serialized loop; the mutex additionally makes
// read-only snapshots safe from HTTP handler goroutines.
type roomImpl struct {
	room  *domain.Room
	owner SessionID

	mu      sync.RWMutex
	members map[SessionID]*memberEntry
	// canvas preserves insertion order; it is the paint order for late
	// joiners. Duplicate ids are tolerated: by-id search takes the
	// first match, removal filters every match.
	canvas  []domain.CanvasObject
	strokes map[SessionID]*domain.Stroke
}

func NewRoomService(room *domain.Room, owner SessionID) RoomService {
	return &roomImpl{
		room:    room,
		owner:   owner,
		members: make(map[SessionID]*memberEntry),
		strokes: make(map[SessionID]*domain.Stroke),
	}
}

func (r *roomImpl) Meta() *domain.Room  { return r.room }
func (r *roomImpl) OwnerSID() SessionID { return r.owner }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.members))
	for sid, e := range r.members {
		out = append(out, MemberDTO{
			ConnectionID: sid,
			DisplayName:  e.membership.DisplayName,
			Permission:   e.membership.Permission,
			IsOwner:      e.membership.IsOwner,
		})
	}
	return out
}

func (r *roomImpl) Membership(sid SessionID) (*domain.Membership, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.members[sid]
	if !ok {
		return nil, false
	}
	return e.membership, true
}

func (r *roomImpl) AddMember(sid SessionID, m *domain.Membership, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[sid] = &memberEntry{membership: m, conn: conn}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Str("name", m.DisplayName).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, sid)
	delete(r.strokes, sid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member removed")
}

func (r *roomImpl) SetPermission(sid SessionID, p domain.Permission) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.members[sid]
	if !ok {
		return false
	}
	e.membership.Permission = p
	return true
}

func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, e := range r.members {
		if sid == from {
			continue
		}
		if err := e.conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) Unicast(to SessionID, data Frame) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.members[to]
	if !ok {
		return false
	}
	return e.conn.TrySend(data) == nil
}

func (r *roomImpl) AddObject(obj domain.CanvasObject) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canvas = append(r.canvas, obj)
}

func (r *roomImpl) ModifyObject(obj domain.CanvasObject) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.canvas {
		if r.canvas[i].ID == obj.ID {
			r.canvas[i] = obj
			return true
		}
	}
	return false
}

func (r *roomImpl) RemoveObject(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.canvas[:0]
	removed := false
	for _, obj := range r.canvas {
		if obj.ID == id {
			removed = true
			continue
		}
		kept = append(kept, obj)
	}
	r.canvas = kept
	return removed
}

func (r *roomImpl) ClearCanvas() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canvas = nil
}

func (r *roomImpl) CanvasSnapshot() []domain.CanvasObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.CanvasObject, len(r.canvas))
	copy(out, r.canvas)
	return out
}

func (r *roomImpl) StrokeStart(sid SessionID, style json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strokes[sid] = domain.NewStroke(style)
}

func (r *roomImpl) StrokeAppend(sid SessionID, point json.RawMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.strokes[sid]
	if !ok {
		return false
	}
	s.Append(point)
	return true
}

func (r *roomImpl) StrokeEnd(sid SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strokes[sid]; !ok {
		return false
	}
	delete(r.strokes, sid)
	return true
}
