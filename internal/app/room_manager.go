package app

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/domain"
)

const DefaultDanmakuHistory = 30

// RoomManager is the directory of live rooms, keyed by id and by invite code.
type RoomManager struct {
	mu       sync.RWMutex
	byID     map[domain.RoomID]*Room
	byInvite map[domain.InviteCode]*Room

	newCode func() string
	history int
	now     func() time.Time
}

func NewRoomManager(history int) (*RoomManager, error) {
	gen, err := nanoid.CustomASCII(domain.InviteAlphabet, domain.InviteCodeLen)
	if err != nil {
		return nil, fmt.Errorf("invite code generator: %w", err)
	}
	if history <= 0 {
		history = DefaultDanmakuHistory
	}
	return &RoomManager{
		byID:     make(map[domain.RoomID]*Room),
		byInvite: make(map[domain.InviteCode]*Room),
		newCode:  gen,
		history:  history,
		now:      time.Now,
	}, nil
}

// Create registers a room owned by owner. It fails with DuplicateRoom while the owner has a live room.
func (m *RoomManager) Create(owner domain.User, s domain.RoomSettings) (*Room, error) {
	id := domain.RoomOf(owner.ID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; ok {
		return nil, core.DuplicateRoom
	}
	code := domain.InviteCode(m.newCode())
	for {
		if _, taken := m.byInvite[code]; !taken {
			break
		}
		code = domain.InviteCode(m.newCode())
	}
	room := newRoom(id, owner.NickName, code, s, m.history, m.now())
	m.byID[id] = room
	m.byInvite[code] = room
	log.Info().Str("module", "app.rooms").Uint("room", uint(id)).Str("invite", string(code)).Msg("room created")
	return room, nil
}

func (m *RoomManager) Get(id domain.RoomID) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byID[id]
	return r, ok
}

func (m *RoomManager) ByInvite(code domain.InviteCode) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byInvite[domain.InviteCode(strings.ToUpper(string(code)))]
	return r, ok
}

// Lookup resolves a query that is either an invite code or a numeric room id.
func (m *RoomManager) Lookup(query string) (*Room, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, false
	}
	if r, ok := m.ByInvite(domain.InviteCode(query)); ok {
		return r, true
	}
	id, err := strconv.ParseUint(query, 10, 64)
	if err != nil {
		return nil, false
	}
	return m.Get(domain.RoomID(id))
}

// Remove unregisters room if it is still the registered instance for its id.
func (m *RoomManager) Remove(room *Room) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.byID[room.ID()]; !ok || cur != room {
		return false
	}
	delete(m.byID, room.ID())
	delete(m.byInvite, room.InviteCode())
	log.Info().Str("module", "app.rooms").Uint("room", uint(room.ID())).Msg("room removed")
	return true
}

func (m *RoomManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// List returns every live room ordered by creation.
func (m *RoomManager) List() []*Room {
	m.mu.RLock()
	out := make([]*Room, 0, len(m.byID))
	for _, r := range m.byID {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].created.Equal(out[j].created) {
			return out[i].id < out[j].id
		}
		return out[i].created.Before(out[j].created)
	})
	return out
}

// PublicRooms lists rooms that are public and currently enterable.
func (m *RoomManager) PublicRooms() []domain.RoomInfo {
	out := []domain.RoomInfo{}
	for _, r := range m.List() {
		if !r.settings.IsPublic {
			continue
		}
		if info := r.Info(false); info.Enterable {
			out = append(out, info)
		}
	}
	return out
}
