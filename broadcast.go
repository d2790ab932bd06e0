// Delivery layer. Recipient sets are snapshotted under the session mutex and
// written to after it is released, so a slow peer never blocks unrelated
// connections. A recipient that cannot be reached after bounded retries is
// evicted; that eviction is the only disconnect detection on the send side.

package main

import "time"

const (
	sendAttempts = 3
	sendBackoff  = 100 * time.Millisecond
)

// trySend attempts delivery with bounded retries, backing off briefly
// between attempts. Returns false only once every attempt has failed.
func (s *Session) trySend(p *Player, frame []byte) bool {
	for attempt := 0; attempt < sendAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(sendBackoff)
		}
		if err := p.conn.WriteFrame(frame); err == nil {
			return true
		}
	}
	return false
}

// send delivers one frame to one player, evicting them on failure.
func (s *Session) send(p *Player, frame []byte) bool {
	if s.trySend(p, frame) {
		return true
	}
	s.evict(p, "send failed")
	return false
}

func (s *Session) notify(p *Player, text string) {
	s.send(p, infoFrame(text))
}

// deliver writes a frame to an already-snapshotted recipient set. Evictions
// happen after the full pass, so every reachable recipient hears about a
// departure in the same order.
func (s *Session) deliver(targets []*Player, frame []byte) {
	var failed []*Player
	for _, p := range targets {
		if !s.trySend(p, frame) {
			failed = append(failed, p)
		}
	}
	for _, p := range failed {
		s.evict(p, "send failed")
	}
}

func (s *Session) broadcastAll(frame []byte, exclude *Player) {
	s.mu.Lock()
	targets := s.registry.snapshot(exclude)
	s.mu.Unlock()

	s.deliver(targets, frame)
}

func (s *Session) broadcastLobby(frame []byte, exclude *Player) {
	s.mu.Lock()
	members := s.rooms.lobbyMembers()
	targets := make([]*Player, 0, len(members))
	for _, p := range members {
		if p != exclude {
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()

	s.deliver(targets, frame)
}

func (s *Session) broadcastRoom(roomID int, frame []byte, exclude *Player) {
	s.mu.Lock()
	members := s.rooms.members(roomID)
	targets := make([]*Player, 0, len(members))
	for _, p := range members {
		if p != exclude {
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()

	s.deliver(targets, frame)
}

// evict closes a player's connection and purges them from every shared
// structure, then tells everyone else. Idempotent and safe from any
// goroutine; the cleanup is the same whether triggered by a failed send, a
// failed read, or a vote.
func (s *Session) evict(p *Player, reason string) {
	s.mu.Lock()
	if !s.registry.contains(p) {
		s.mu.Unlock()
		return
	}
	s.registry.remove(p)
	s.rooms.leave(p)
	s.ballot.discard(p)
	delete(s.ready, p)
	if s.impostor == p {
		s.impostor = nil
	}
	s.mu.Unlock()

	_ = p.conn.Close()
	logf(s.cfg, "EVICT: %q (%s)", p.name, reason)

	s.broadcastAll(infoFrame(p.name+" has disconnected."), nil)
	s.onRemoval()
}
