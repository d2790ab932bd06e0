package main

import "net"

// transport is one client's outbound half. The TCP listener and the
// WebSocket bridge both produce these, so everything above the socket layer
// is transport-agnostic. Implementations must be safe for concurrent writes.
type transport interface {
	WriteFrame(data []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// Player is a registered connection. The transport handle is the identity
// key; the display name is self-reported and not guaranteed unique.
type Player struct {
	conn transport
	name string
}

// Registry owns the set of live players, keyed by their transport handle.
// It is not internally synchronized: every method must be called with the
// session mutex held. Callers that need to send should snapshot first and
// write after releasing the lock.
type Registry struct {
	players map[transport]*Player
	order   []*Player
}

func newRegistry() *Registry {
	return &Registry{
		players: make(map[transport]*Player),
	}
}

// register creates a player identity for a connection. A connection that
// already has one is rejected, as is an empty display name.
func (r *Registry) register(conn transport, name string) (*Player, error) {
	if name == "" {
		return nil, errInvalidName
	}
	if _, ok := r.players[conn]; ok {
		return nil, errDuplicateJoin
	}

	p := &Player{conn: conn, name: name}
	r.players[conn] = p
	r.order = append(r.order, p)

	return p, nil
}

// lookup returns the player for a connection, or nil if it never joined.
func (r *Registry) lookup(conn transport) *Player {
	return r.players[conn]
}

// remove drops a player from the registry. Idempotent.
func (r *Registry) remove(p *Player) {
	if _, ok := r.players[p.conn]; !ok {
		return
	}
	delete(r.players, p.conn)

	dst := r.order[:0]
	for _, q := range r.order {
		if q != p {
			dst = append(dst, q)
		}
	}
	r.order = dst
}

func (r *Registry) contains(p *Player) bool {
	q, ok := r.players[p.conn]
	return ok && q == p
}

func (r *Registry) count() int {
	return len(r.players)
}

// snapshot returns a point-in-time copy of the live players, in join order,
// skipping exclude if non-nil. Safe to iterate after the lock is released;
// later mutations are never observed through it.
func (r *Registry) snapshot(exclude *Player) []*Player {
	out := make([]*Player, 0, len(r.order))
	for _, p := range r.order {
		if p == exclude {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *Registry) names() []string {
	out := make([]string, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, p.name)
	}
	return out
}

// byName resolves a display name to the first matching live player.
func (r *Registry) byName(name string) *Player {
	for _, p := range r.order {
		if p.name == name {
			return p
		}
	}
	return nil
}
