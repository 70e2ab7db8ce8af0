package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harvey0995/GhostBridge/internal/core"
	"github.com/harvey0995/GhostBridge/internal/domain"
)

// sessionEntry is the registry-owned record for one live connection.
// Device stays nil until the client registers an identity.
type sessionEntry struct {
	Room     domain.RoomID
	Device   *domain.Device
	Conn     core.SignalConnection
	Cancel   context.CancelFunc
	JoinedAt time.Time
}

// Registry is the single owner of connection state. Rooms are not stored
// anywhere; the Room field on each entry is the only membership record, so a
// room exists exactly as long as some entry references it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (r *Registry) Bind(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Conn: conn, Cancel: cancel, JoinedAt: time.Now()}
	incConnections()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound session")
}

// Unbind removes the connection and its room association. Safe to call for
// unknown or already-removed sids; duplicate disconnects are expected from a
// flaky transport. Returns the entry that was removed, if any.
func (r *Registry) Unbind(sid core.SessionID) (room domain.RoomID, device *domain.Device, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return "", nil, false
	}
	delete(r.sessions, sid)
	decConnections()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return entry.Room, entry.Device, true
}

func (r *Registry) SetDevice(sid core.SessionID, dev *domain.Device) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.Device = dev
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).
		Str("device_type", dev.DeviceType).Str("device_name", dev.DeviceName).Msg("registered device")
	return true
}

func (r *Registry) Device(sid core.SessionID) (*domain.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.Device == nil {
		return nil, false
	}
	return entry.Device, true
}

// Touch refreshes the device activity timestamp, a no-op for unregistered or
// unknown sessions.
func (r *Registry) Touch(sid core.SessionID, at string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok && entry.Device != nil {
		entry.Device.LastActivity = at
	}
}

// SetRoom overwrites the connection's room association. Any string is
// accepted, including ones never seen before. Returns the previous room so
// the caller can notify its remaining members.
func (r *Registry) SetRoom(sid core.SessionID, room domain.RoomID) (prev domain.RoomID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return "", false
	}
	prev = entry.Room
	entry.Room = room
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("updated room")
	return prev, true
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.Room == "" {
		return "", false
	}
	return entry.Room, true
}

func (r *Registry) Conn(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.sessions[sid]; ok {
		return entry.Conn, true
	}
	return nil, false
}

type regSnap struct {
	SID  core.SessionID
	Conn core.SignalConnection
}

// MembersOfRoom enumerates the secondary index: every live connection whose
// room equals id. Unknown rooms yield an empty slice, not an error.
func (r *Registry) MembersOfRoom(id domain.RoomID) []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.Room == id {
			out = append(out, regSnap{SID: sid, Conn: e.Conn})
		}
	}
	return out
}

func (r *Registry) CountOfRoom(id domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.sessions {
		if e.Room == id {
			n++
		}
	}
	return n
}

// All returns every live connection, in no particular order.
func (r *Registry) All() []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		out = append(out, regSnap{SID: sid, Conn: e.Conn})
	}
	return out
}

// Others returns every live connection except the given one.
func (r *Registry) Others(sid core.SessionID) []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.sessions))
	for other, e := range r.sessions {
		if other != sid {
			out = append(out, regSnap{SID: other, Conn: e.Conn})
		}
	}
	return out
}

// Devices snapshots registered device identities only; connections that never
// sent register-device are excluded, matching the original device list.
func (r *Registry) Devices() []domain.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Device, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.Device != nil {
			out = append(out, *e.Device)
		}
	}
	return out
}

// DevicesOfRoom snapshots the registered identities of a room's members.
func (r *Registry) DevicesOfRoom(id domain.RoomID) []domain.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Device, 0)
	for _, e := range r.sessions {
		if e.Room == id && e.Device != nil {
			out = append(out, *e.Device)
		}
	}
	return out
}

func (r *Registry) DeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.sessions {
		if e.Device != nil {
			n++
		}
	}
	return n
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel tears down the session's transport context. The read pump observes
// the cancellation and drives the normal disconnect path.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
