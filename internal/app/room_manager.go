package app

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openboard/openboard/internal/core"
	"github.com/openboard/openboard/internal/domain"
)

// NewRoomID returns a fresh unguessable room identifier. uuid v4 is
// crypto/rand backed, so collisions and guesses are not a concern over
// a room's lifetime.
func NewRoomID() domain.RoomID {
	return domain.RoomID(uuid.NewString())
}

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager() *RoomManagerImpl {
	return &RoomManagerImpl{rooms: make(map[domain.RoomID]core.RoomService)}
}

func (f *RoomManagerImpl) Create(room *domain.Room, owner core.SessionID) core.RoomService {
	svc := core.NewRoomService(room, owner)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[room.ID] = svc
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Str("name", string(room.Name)).Msg("room created")
	return svc
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) Delete(id domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room deleted")
}

// ListPublic excludes private rooms; it backs both the get-rooms event
// and the REST listing.
func (f *RoomManagerImpl) ListPublic() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		meta := r.Meta()
		if meta.IsPrivate {
			continue
		}
		out = append(out, core.RoomInfo{
			ID:          id,
			Name:        meta.Name,
			MemberCount: r.MemberCount(),
			HasPassword: meta.HasPassword(),
		})
	}
	return out
}

func (f *RoomManagerImpl) Stats() (rooms, members int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rooms = len(f.rooms)
	for _, r := range f.rooms {
		members += r.MemberCount()
	}
	return rooms, members
}
