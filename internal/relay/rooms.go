package relay

import "sync"

// Subscriber is a connection handle that can receive fan-out frames
type Subscriber interface {
	// ID returns a stable identifier for the connection
	ID() string
	// Send delivers one frame to the connection. Implementations must be
	// safe for concurrent use; a failed send only affects this subscriber.
	Send(frame []byte) error
}

// Rooms is the room-membership registry: a mapping from room key to the set
// of subscribed connections. Add, remove and snapshot are atomic with respect
// to each other, so a concurrent publish never observes a half-updated
// membership set. Rooms exist implicitly: created on first join, gone when
// the last member leaves. Nothing here is persisted.
type Rooms struct {
	mu sync.RWMutex
	// members maps room key -> subscriber ID -> subscriber
	members map[string]map[string]Subscriber
	// joined maps subscriber ID -> set of room keys, for disconnect cleanup
	joined map[string]map[string]struct{}
}

// NewRooms creates an empty registry
func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[string]Subscriber),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Add joins sub to room. Idempotent: adding twice has the same effect as once.
func (r *Rooms) Add(room string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[room] == nil {
		r.members[room] = make(map[string]Subscriber)
	}
	r.members[room][sub.ID()] = sub

	if r.joined[sub.ID()] == nil {
		r.joined[sub.ID()] = make(map[string]struct{})
	}
	r.joined[sub.ID()][room] = struct{}{}
}

// Remove leaves room. Removing a member that never joined is a no-op.
func (r *Rooms) Remove(room string, subID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(room, subID)
}

// RemoveAll removes the subscriber from every room it had joined.
// Called on disconnect; no explicit cleanup call is required by callers.
func (r *Rooms) RemoveAll(subID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[subID] {
		r.removeLocked(room, subID)
	}
}

func (r *Rooms) removeLocked(room string, subID string) {
	if set := r.members[room]; set != nil {
		delete(set, subID)
		if len(set) == 0 {
			delete(r.members, room)
		}
	}
	if rooms := r.joined[subID]; rooms != nil {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, subID)
		}
	}
}

// Members returns a snapshot of the current subscribers of room.
// The snapshot is taken atomically; fan-out iterates it without holding the lock.
func (r *Rooms) Members(room string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[room]
	if len(set) == 0 {
		return nil
	}
	out := make([]Subscriber, 0, len(set))
	for _, sub := range set {
		out = append(out, sub)
	}
	return out
}

// Count returns the number of subscribers currently in room
func (r *Rooms) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[room])
}

// Stats returns the member count per live room
func (r *Rooms) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.members))
	for room, set := range r.members {
		out[room] = len(set)
	}
	return out
}
