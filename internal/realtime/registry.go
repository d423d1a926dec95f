package realtime

import (
	"sync"

	"github.com/keyforge/keyforge/internal/model"
	"github.com/keyforge/keyforge/internal/pkg/errs"
)

// Participant is the ephemeral record for one joined connection. The role
// is fixed at join time for the connection's lifetime.
type Participant struct {
	ConnID string
	Token  string
	UserID string
	Role   model.Role
	Sink   Sink
}

// Registry is the in-memory session state: conn -> participant plus the
// derived rooms (token -> members). All mutation is serialized behind one
// lock; membership reads for broadcast take a snapshot. Nothing here blocks
// on I/O.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Participant
	rooms map[string]map[string]*Participant
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Participant),
		rooms: make(map[string]map[string]*Participant),
	}
}

// Register inserts the participant and adds it to its token's room. A
// connection may hold at most one active join; a second registration for
// the same conn id is rejected.
func (r *Registry) Register(p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[p.ConnID]; ok {
		return errs.ErrConflict
	}
	r.conns[p.ConnID] = p
	room := r.rooms[p.Token]
	if room == nil {
		room = make(map[string]*Participant)
		r.rooms[p.Token] = room
	}
	room[p.ConnID] = p
	return nil
}

func (r *Registry) Get(connID string) *Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[connID]
}

// Unregister removes the participant and its room membership, deleting the
// room when it empties. Returns the token the connection was part of, or
// false if it was never registered.
func (r *Registry) Unregister(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	delete(r.conns, connID)
	if room, ok := r.rooms[p.Token]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.rooms, p.Token)
		}
	}
	return p.Token, true
}

// RoomMembers returns a snapshot of the room's participants.
func (r *Registry) RoomMembers(token string) []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[token]
	members := make([]*Participant, 0, len(room))
	for _, p := range room {
		members = append(members, p)
	}
	return members
}

// Broadcast delivers an envelope to every member of the room except the
// given connection. Membership is snapshotted under the lock; delivery
// happens outside it. Returns the number of successful deliveries.
func (r *Registry) Broadcast(token, exceptConnID string, ev Envelope) int {
	members := r.RoomMembers(token)
	delivered := 0
	for _, p := range members {
		if p.ConnID == exceptConnID {
			continue
		}
		if p.Sink.Deliver(ev) {
			delivered++
		}
	}
	return delivered
}
