package main

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

// RoomManager owns the process-wide set of rooms and the session map used to
// find a connection's room on disconnect without scanning all rooms. Its
// mutex guards only the two maps; each room serializes its own mutations.
type RoomManager struct {
	cfg      *Config
	clock    clockwork.Clock
	provider questionProvider

	mu       sync.Mutex
	rooms    map[string]*room
	sessions map[string]string // connection id -> room code
}

func newRoomManager(cfg *Config, clock clockwork.Clock, provider questionProvider) *RoomManager {
	return &RoomManager{
		cfg:      cfg,
		clock:    clock,
		provider: provider,
		rooms:    make(map[string]*room),
		sessions: make(map[string]string),
	}
}

func (rm *RoomManager) getOrCreate(code string) *room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if r, ok := rm.rooms[code]; ok {
		return r
	}

	r := newRoom(code, rm.clock.Now())
	rm.rooms[code] = r
	logf(rm.cfg, "ROOMS: Created room %s", code)
	return r
}

func (rm *RoomManager) room(code string) *room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	return rm.rooms[code]
}

func (rm *RoomManager) remove(code string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.rooms[code]; ok {
		delete(rm.rooms, code)
		logf(rm.cfg, "ROOMS: Deleted room %s", code)
	}
}

// track records which room a connection belongs to, set on join.
func (rm *RoomManager) track(connID, code string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.sessions[connID] = code
}

// dropSession clears a connection's room mapping and returns the room code it
// was in, or "" if untracked.
func (rm *RoomManager) dropSession(connID string) string {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	code := rm.sessions[connID]
	delete(rm.sessions, connID)
	return code
}

// reaperLoop periodically ends rooms that have been idle longer than the
// configured room timeout, covering rooms abandoned without clean disconnects.
func (rm *RoomManager) reaperLoop() {
	ticker := rm.clock.NewTicker(rm.cfg.roomTimeout / 2)
	for range ticker.Chan() {
		cutoff := rm.clock.Now().Add(-rm.cfg.roomTimeout)

		rm.mu.Lock()
		stale := make([]*room, 0)
		for _, r := range rm.rooms {
			stale = append(stale, r)
		}
		rm.mu.Unlock()

		for _, r := range stale {
			r.mu.Lock()
			last := r.lastActive
			if !last.Before(cutoff) {
				r.mu.Unlock()
				continue
			}

			r.stopGameLocked()
			for c := range r.clients {
				c.closeSend()
				_ = c.conn.Close()
				delete(r.clients, c)
			}
			code := r.code
			r.mu.Unlock()

			rm.remove(code)
			logf(rm.cfg, "ROOMS: Reaped idle room %s", code)
		}
	}
}
