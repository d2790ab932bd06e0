// Session state machine. One session per process, one mutex over all of its
// shared state. The mutex is held only to read or mutate state, never across
// a network write: anything that needs to send snapshots recipients first and
// writes after unlocking (see broadcast.go).
//
// Phase timers are goroutines that sleep and then call the transition
// function for the phase they were started in. They carry the epoch counter
// observed at start; every transition increments it, so a stale timer firing
// after something faster already advanced the phase is a guarded no-op.

package main

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type phase int

const (
	phaseLobby phase = iota
	phaseRoleAssign
	phaseDiscussion
	phaseVoting
	phaseGameOver
)

func (p phase) String() string {
	switch p {
	case phaseLobby:
		return "lobby"
	case phaseRoleAssign:
		return "role_assign"
	case phaseDiscussion:
		return "discussion"
	case phaseVoting:
		return "voting"
	case phaseGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

type Session struct {
	cfg *Config

	mu       sync.Mutex
	registry *Registry
	rooms    *Rooms
	ballot   *Ballot
	phase    phase
	epoch    int
	round    int
	impostor *Player
	topic    string
	dealt    bool
	ready    map[*Player]bool
}

func newSession(cfg *Config) *Session {
	return &Session{
		cfg:      cfg,
		registry: newRegistry(),
		rooms:    newRooms(),
		ballot:   newBallot(),
		ready:    make(map[*Player]bool),
	}
}

// dispatch routes one decoded frame from a connection's reader goroutine.
func (s *Session) dispatch(conn transport, msg Message) {
	if msg.Type == msgJoinRoom {
		s.handleJoinGame(conn, msg.str("player_name"))
		return
	}

	s.mu.Lock()
	p := s.registry.lookup(conn)
	s.mu.Unlock()

	if p == nil {
		if msg.Type == msgPing {
			_ = conn.WriteFrame(encodeFrame(msgPong, nil))
			return
		}
		_ = conn.WriteFrame(infoFrame("Join with a player name first."))
		return
	}

	switch msg.Type {
	case msgPing:
		s.send(p, encodeFrame(msgPong, nil))
	case msgReady:
		s.handleReady(p)
	case msgJoinLobby:
		s.handleJoinLobby(p)
	case msgJoin:
		s.handleJoinRoom(p, msg)
	case msgChat:
		s.handleChat(p, msg.str("message"))
	case msgVote:
		s.handleVote(p, msg.str("target"))
	}
}

// disconnect is called when a connection's reader loop ends for any reason.
func (s *Session) disconnect(conn transport) {
	s.mu.Lock()
	p := s.registry.lookup(conn)
	s.mu.Unlock()

	if p == nil {
		_ = conn.Close()
		return
	}
	s.evict(p, "connection closed")
}

// handleJoinGame registers a connection under a display name and places it
// in the lobby.
func (s *Session) handleJoinGame(conn transport, name string) {
	s.mu.Lock()
	if s.phase != phaseLobby {
		s.mu.Unlock()
		_ = conn.WriteFrame(infoFrame("A game is in progress; try again later."))
		return
	}

	p, err := s.registry.register(conn, name)
	if err != nil {
		s.mu.Unlock()
		switch err {
		case errInvalidName:
			_ = conn.WriteFrame(infoFrame("A player name is required to join."))
		default:
			_ = conn.WriteFrame(infoFrame("You have already joined."))
		}
		return
	}
	s.rooms.joinLobby(p)
	names := s.registry.names()
	s.mu.Unlock()

	logf(s.cfg, "GAME: Player %q joined from %s", name, conn.RemoteAddr())

	greeting := fmt.Sprintf("Welcome, %s. Players: %s.", name, strings.Join(names, ", "))
	s.send(p, encodeFrame(msgLobbyJoined, fields{"message": greeting}))
	s.broadcastAll(infoFrame(name+" joined."), p)
}

// handleReady marks a player ready. Once every registered player is ready
// the session moves to role assignment; the check and the phase flip share
// one critical section, so a burst of simultaneous READY frames starts the
// game exactly once.
func (s *Session) handleReady(p *Player) {
	s.mu.Lock()
	if s.phase != phaseLobby {
		s.mu.Unlock()
		s.notify(p, "A game is already running.")
		return
	}
	if s.ready[p] {
		s.mu.Unlock()
		return
	}
	s.ready[p] = true

	start := len(s.ready) == s.registry.count()
	var ep int
	if start {
		s.phase = phaseRoleAssign
		s.epoch++
		ep = s.epoch
	}
	s.mu.Unlock()

	s.broadcastAll(infoFrame(p.name+" is ready."), nil)

	if start {
		s.startRound(ep)
	}
}

// handleJoinLobby returns a player to the lobby. Idempotent.
func (s *Session) handleJoinLobby(p *Player) {
	s.mu.Lock()
	s.rooms.joinLobby(p)
	s.mu.Unlock()

	s.notify(p, "You are in the lobby.")
}

// handleJoinRoom moves a player into a discussion room of their choosing.
func (s *Session) handleJoinRoom(p *Player, msg Message) {
	roomID, ok := msg.integer("room_id")

	s.mu.Lock()
	if s.phase != phaseDiscussion {
		s.mu.Unlock()
		s.notify(p, "Rooms are only open during discussion.")
		return
	}
	var err error
	if !ok {
		err = errInvalidRoom
	} else {
		err = s.rooms.joinRoom(p, roomID)
	}
	s.mu.Unlock()

	switch err {
	case nil:
		s.notify(p, fmt.Sprintf("Joined room %d.", roomID))
	case errInvalidRoom:
		s.notify(p, "Invalid room number.")
	case errRoomFull:
		s.notify(p, "Room is full. Choose another.")
	}
}

// handleChat relays a chat line to the sender's room-mates, or to the lobby
// when the sender has not picked a room.
func (s *Session) handleChat(p *Player, text string) {
	s.mu.Lock()
	roomID := s.rooms.roomOf(p)
	s.mu.Unlock()

	frame := infoFrame(p.name + ": " + text)
	if roomID != 0 {
		s.broadcastRoom(roomID, frame, p)
	} else {
		s.broadcastLobby(frame, p)
	}
}

// handleVote records one vote for a named active player. The round ends
// early once every active player has voted; the timer is only a backstop.
func (s *Session) handleVote(p *Player, targetName string) {
	s.mu.Lock()
	if s.phase != phaseVoting {
		s.mu.Unlock()
		s.notify(p, "There is no vote in progress.")
		return
	}
	target := s.registry.byName(targetName)
	if target == nil {
		s.mu.Unlock()
		s.notify(p, fmt.Sprintf("Cannot vote for %q: not an active player.", targetName))
		return
	}
	if err := s.ballot.cast(p, target); err != nil {
		s.mu.Unlock()
		s.notify(p, "You have already voted this round.")
		return
	}
	allVoted := s.ballot.count() == s.registry.count()
	ep := s.epoch
	s.mu.Unlock()

	s.broadcastAll(infoFrame(p.name+" voted."), nil)

	if allVoted {
		s.endVoting(ep)
	}
}

// startRound performs role assignment and opens the discussion phase.
// Called on the lobby-to-game transition and again after each round's grace
// period. The impostor persists across rounds of one game; the topic is
// re-rolled every round.
func (s *Session) startRound(epoch int) {
	s.mu.Lock()
	if s.epoch != epoch || s.phase != phaseRoleAssign {
		s.mu.Unlock()
		return
	}

	players := s.registry.snapshot(nil)
	if len(players) == 0 {
		s.resetLocked()
		s.mu.Unlock()
		return
	}

	if s.impostor == nil {
		s.impostor = players[randIndex(len(players))]
	}
	s.topic = topicList[randIndex(len(topicList))]
	s.dealt = true

	impostor := s.impostor
	topic := s.topic
	round := s.round
	s.mu.Unlock()

	logf(s.cfg, "GAME: Round %d starting with %d players, topic %q", round, len(players), topic)

	// Every role send attempt completes before anyone sees GAME_STARTED.
	crewFrame := encodeFrame(msgAssignRole, fields{"role": "crewmate", "topic": topic})
	impostorFrame := encodeFrame(msgAssignRole, fields{"role": "impostor", "topic": "(none)"})
	var failed []*Player
	for _, p := range players {
		frame := crewFrame
		if p == impostor {
			frame = impostorFrame
		}
		if !s.trySend(p, frame) {
			failed = append(failed, p)
		}
	}
	for _, p := range failed {
		s.evict(p, "send failed")
	}

	s.mu.Lock()
	// An eviction above may have ended the game already.
	if s.epoch != epoch || s.phase != phaseRoleAssign {
		s.mu.Unlock()
		return
	}
	s.phase = phaseDiscussion
	s.epoch++
	ep := s.epoch
	d := s.cfg.discussionTimeout
	// Re-read the roster: a failed role send above may have evicted
	// someone, and the start announcement must list only survivors.
	names := s.registry.names()
	rooms := maxRooms(s.registry.count())
	s.mu.Unlock()

	s.broadcastAll(encodeFrame(msgGameStarted, fields{"players": names}), nil)
	s.broadcastAll(infoFrame(fmt.Sprintf("Choose a room number (1 to %d) with: join <room>", rooms)), nil)

	go func() {
		time.Sleep(d)
		s.endDiscussion(ep)
	}()
}

// endDiscussion closes all rooms, returns everyone to the lobby, and opens
// the voting phase.
func (s *Session) endDiscussion(epoch int) {
	s.mu.Lock()
	if s.epoch != epoch || s.phase != phaseDiscussion {
		s.mu.Unlock()
		return
	}
	s.rooms.clear()
	s.ballot.reset()
	s.phase = phaseVoting
	s.epoch++
	ep := s.epoch
	d := s.cfg.voteTimeout
	s.mu.Unlock()

	s.broadcastAll(encodeFrame(msgJoinLobby, nil), nil)
	s.broadcastAll(infoFrame("Discussion is over. Vote with: vote <player>"), nil)

	go func() {
		time.Sleep(d)
		s.endVoting(ep)
	}()
}

// endVoting tallies the round, eliminates the plurality target if any votes
// were cast, and either ends the game or schedules the next round.
func (s *Session) endVoting(epoch int) {
	s.mu.Lock()
	if s.epoch != epoch || s.phase != phaseVoting {
		s.mu.Unlock()
		return
	}

	target, eliminated := s.ballot.tally()
	s.ballot.reset()

	if !eliminated {
		s.round++
		s.phase = phaseRoleAssign
		s.epoch++
		ep := s.epoch
		grace := s.cfg.roundGrace
		s.mu.Unlock()

		s.broadcastAll(encodeFrame(msgVoteResult, nil), nil)
		s.broadcastAll(infoFrame("No votes were cast; nobody was eliminated."), nil)

		go func() {
			time.Sleep(grace)
			s.startRound(ep)
		}()
		return
	}

	s.registry.remove(target)
	s.rooms.leave(target)
	delete(s.ready, target)
	wasImpostor := s.impostor == target
	if wasImpostor {
		s.impostor = nil
	}
	remaining := s.registry.count()

	var winner string
	var ep int
	var grace time.Duration
	switch {
	case wasImpostor:
		winner = "crewmates"
		s.phase = phaseGameOver
		s.epoch++
	case remaining <= 2:
		winner = "impostor"
		s.phase = phaseGameOver
		s.epoch++
	default:
		s.round++
		s.phase = phaseRoleAssign
		s.epoch++
		ep = s.epoch
		grace = s.cfg.roundGrace
	}
	s.mu.Unlock()

	logf(s.cfg, "GAME: %q voted out (impostor: %t)", target.name, wasImpostor)

	s.trySend(target, infoFrame("You have been voted out."))
	_ = target.conn.Close()

	s.broadcastAll(encodeFrame(msgVoteResult, fields{"voted_out": target.name}), nil)

	if winner != "" {
		s.finishGame(winner)
		return
	}

	go func() {
		time.Sleep(grace)
		s.startRound(ep)
	}()
}

// onRemoval re-evaluates the session after a player was purged outside the
// normal vote path. A departed impostor counts as eliminated once roles
// have gone out; a game that drops to two players ends in the impostor's
// favor; a lobby whose stragglers were the only non-ready players may now
// start.
func (s *Session) onRemoval() {
	s.mu.Lock()
	switch s.phase {
	case phaseLobby:
		if s.registry.count() > 0 && len(s.ready) == s.registry.count() {
			s.phase = phaseRoleAssign
			s.epoch++
			ep := s.epoch
			s.mu.Unlock()
			s.startRound(ep)
			return
		}

	case phaseRoleAssign, phaseDiscussion, phaseVoting:
		if s.phase == phaseRoleAssign && !s.dealt {
			// Nobody holds a role yet; the round start already underway
			// simply deals to the survivors.
			break
		}
		if s.impostor == nil {
			s.phase = phaseGameOver
			s.epoch++
			s.mu.Unlock()
			s.finishGame("crewmates")
			return
		}
		if s.registry.count() <= 2 {
			s.phase = phaseGameOver
			s.epoch++
			s.mu.Unlock()
			s.finishGame("impostor")
			return
		}
		if s.phase == phaseVoting && s.ballot.count() == s.registry.count() {
			ep := s.epoch
			s.mu.Unlock()
			s.endVoting(ep)
			return
		}
	}
	s.mu.Unlock()
}

// finishGame announces the winner and resets the session so the surviving
// connections can ready up for a fresh game from the lobby.
func (s *Session) finishGame(winner string) {
	logf(s.cfg, "GAME: Over, %s win", winner)

	s.broadcastAll(encodeFrame(msgEndGame, fields{"winner": winner}), nil)

	s.mu.Lock()
	if s.phase == phaseGameOver {
		s.resetLocked()
	}
	s.mu.Unlock()
}

// resetLocked clears all per-game state and returns the session to the
// lobby. Registered connections survive.
func (s *Session) resetLocked() {
	s.phase = phaseLobby
	s.epoch++
	s.round = 0
	s.impostor = nil
	s.topic = ""
	s.dealt = false
	s.ballot.reset()
	clear(s.ready)
	s.rooms.clear()
}

// sessionView is the read-only snapshot served by the status listener.
type sessionView struct {
	Phase   string           `json:"phase"`
	Round   int              `json:"round"`
	Players []string         `json:"players"`
	Ready   int              `json:"ready"`
	Rooms   map[int][]string `json:"rooms"`
}

func (s *Session) view() sessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sessionView{
		Phase:   s.phase.String(),
		Round:   s.round,
		Players: s.registry.names(),
		Ready:   len(s.ready),
		Rooms:   s.rooms.occupancy(),
	}
}
