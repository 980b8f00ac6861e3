// Package registry tracks which transport handle each connected player is
// using, which room they occupy, and the timers that guard reconnection and
// room lifetimes.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Record is the live connection record of one identity.
type Record struct {
	PlayerID     string
	TransportID  string
	RoomID       string
	LastActiveAt time.Time
}

// Registry is safe for concurrent use. Absence is never an error: lookups
// on unknown identities return empty results.
type Registry struct {
	clock  clockwork.Clock
	log    *zap.Logger
	safety time.Duration

	mu         sync.Mutex
	records    map[string]*Record
	reconnect  map[string]*Task
	roomTimers map[string]map[string]*Task
}

// New creates a registry. safety bounds how long a reconnect timer may
// outlive its due time before the sweep evicts it.
func New(clock clockwork.Clock, log *zap.Logger, safety time.Duration) *Registry {
	return &Registry{
		clock:      clock,
		log:        log,
		safety:     safety,
		records:    make(map[string]*Record),
		reconnect:  make(map[string]*Task),
		roomTimers: make(map[string]map[string]*Task),
	}
}

func (r *Registry) record(playerID string) *Record {
	rec, ok := r.records[playerID]
	if !ok {
		rec = &Record{PlayerID: playerID}
		r.records[playerID] = rec
	}
	return rec
}

// Attach binds playerID to transportID, replacing any previous handle.
func (r *Registry) Attach(playerID, transportID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(playerID)
	rec.TransportID = transportID
	rec.LastActiveAt = r.clock.Now()
}

// Detach clears the transport handle of playerID if it is still transportID
// (an empty transportID matches any handle). The record itself is dropped
// when it no longer binds a room. It reports whether a handle was cleared.
func (r *Registry) Detach(playerID, transportID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[playerID]
	if !ok || rec.TransportID == "" {
		return false
	}
	if transportID != "" && rec.TransportID != transportID {
		return false
	}
	rec.TransportID = ""
	if rec.RoomID == "" {
		delete(r.records, playerID)
	}
	return true
}

// Lookup returns the current transport handle of playerID.
func (r *Registry) Lookup(playerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[playerID]
	if !ok || rec.TransportID == "" {
		return "", false
	}
	return rec.TransportID, true
}

// Touch refreshes the last-activity timestamp of playerID.
func (r *Registry) Touch(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[playerID]; ok {
		rec.LastActiveAt = r.clock.Now()
	}
}

// Snapshot returns a copy of the record of playerID.
func (r *Registry) Snapshot(playerID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[playerID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// BindRoom records that playerID occupies roomID. An empty roomID unbinds.
func (r *Registry) BindRoom(playerID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if roomID == "" {
		rec, ok := r.records[playerID]
		if !ok {
			return
		}
		rec.RoomID = ""
		if rec.TransportID == "" {
			delete(r.records, playerID)
		}
		return
	}
	r.record(playerID).RoomID = roomID
}

// ClaimRoom binds playerID to roomID unless they already occupy a different
// room, in which case it returns that room and false.
func (r *Registry) ClaimRoom(playerID, roomID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(playerID)
	if rec.RoomID != "" && rec.RoomID != roomID {
		return rec.RoomID, false
	}
	rec.RoomID = roomID
	return roomID, true
}

// UnbindRoom clears the binding of playerID only if it still points at roomID.
func (r *Registry) UnbindRoom(playerID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[playerID]
	if !ok || rec.RoomID != roomID {
		return
	}
	rec.RoomID = ""
	if rec.TransportID == "" {
		delete(r.records, playerID)
	}
}

// CurrentRoom returns the room playerID occupies.
func (r *Registry) CurrentRoom(playerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[playerID]
	if !ok || rec.RoomID == "" {
		return "", false
	}
	return rec.RoomID, true
}

// ArmReconnectTimer schedules onExpire after d unless the player reconnects.
// Any earlier reconnect timer for the same player is canceled.
func (r *Registry) ArmReconnectTimer(playerID string, d time.Duration, onExpire func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnect[playerID].Cancel()

	var task *Task
	task = Schedule(r.clock, d, "reconnect", func() {
		r.mu.Lock()
		if r.reconnect[playerID] == task {
			delete(r.reconnect, playerID)
		}
		r.mu.Unlock()
		onExpire()
	})
	r.reconnect[playerID] = task
}

// CancelReconnectTimer stops the pending reconnect timer of playerID. It
// reports whether a pending timer was stopped.
func (r *Registry) CancelReconnectTimer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.reconnect[playerID]
	if !ok {
		return false
	}
	delete(r.reconnect, playerID)
	return task.Cancel()
}

// HasReconnectTimer reports whether playerID is inside a grace window.
func (r *Registry) HasReconnectTimer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.reconnect[playerID]
	return ok && task.Pending()
}

// ArmRoomTimer schedules onExpire for roomID under reason, replacing any
// timer already armed for the same reason.
func (r *Registry) ArmRoomTimer(roomID string, d time.Duration, reason string, onExpire func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timers, ok := r.roomTimers[roomID]
	if !ok {
		timers = make(map[string]*Task)
		r.roomTimers[roomID] = timers
	}
	timers[reason].Cancel()

	var task *Task
	task = Schedule(r.clock, d, reason, func() {
		r.mu.Lock()
		if ts := r.roomTimers[roomID]; ts != nil && ts[reason] == task {
			delete(ts, reason)
			if len(ts) == 0 {
				delete(r.roomTimers, roomID)
			}
		}
		r.mu.Unlock()
		onExpire()
	})
	timers[reason] = task
}

// CancelRoomTimer stops every timer armed for roomID.
func (r *Registry) CancelRoomTimer(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range r.roomTimers[roomID] {
		task.Cancel()
	}
	delete(r.roomTimers, roomID)
}

// CancelRoomTimerReason stops the timer armed for roomID under reason.
func (r *Registry) CancelRoomTimerReason(roomID, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	timers := r.roomTimers[roomID]
	task, ok := timers[reason]
	if !ok {
		return false
	}
	delete(timers, reason)
	if len(timers) == 0 {
		delete(r.roomTimers, roomID)
	}
	return task.Cancel()
}

// RoomTimerArmed reports whether roomID has a pending timer for reason.
func (r *Registry) RoomTimerArmed(roomID, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.roomTimers[roomID][reason]
	return ok && task.Pending()
}

// Sweep evicts reconnect timers whose due time passed more than the safety
// bound ago without firing. It returns the number evicted.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	evicted := 0
	for playerID, task := range r.reconnect {
		if !task.Pending() || now.Sub(task.Due()) > r.safety {
			task.Cancel()
			delete(r.reconnect, playerID)
			evicted++
			r.log.Warn("evicted stale reconnect timer", zap.String("player_id", playerID))
		}
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Stats returns counts for health reporting.
func (r *Registry) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	connected := 0
	for _, rec := range r.records {
		if rec.TransportID != "" {
			connected++
		}
	}
	return map[string]int{
		"records":          len(r.records),
		"connected":        connected,
		"reconnect_timers": len(r.reconnect),
		"rooms_with_timer": len(r.roomTimers),
	}
}
