package main

// Rooms partitions players between the lobby and numbered discussion rooms
// of at most two occupants. A player is always in exactly one place: the
// lobby, or a single room. Like the registry, all methods require the
// session mutex.
type Rooms struct {
	rooms    map[int][]*Player
	location map[*Player]int // 0 means lobby
}

const roomCapacity = 2

func newRooms() *Rooms {
	return &Rooms{
		rooms:    make(map[int][]*Player),
		location: make(map[*Player]int),
	}
}

// maxRooms bounds the room ids advertised to players at the start of a
// discussion phase: ceil(playerCount / 2). Rooms are advertised, not
// assigned; players self-select.
func maxRooms(playerCount int) int {
	return (playerCount + 1) / 2
}

// joinLobby moves a player out of any room and into the lobby. Idempotent.
func (rm *Rooms) joinLobby(p *Player) {
	rm.removeFromRoom(p)
	rm.location[p] = 0
}

// joinRoom moves a player into the given room, leaving the lobby or their
// old room. Fails if the id is not a positive integer or the room is full.
func (rm *Rooms) joinRoom(p *Player, roomID int) error {
	if roomID <= 0 {
		return errInvalidRoom
	}
	if cur, ok := rm.location[p]; ok && cur == roomID {
		return nil
	}
	if len(rm.rooms[roomID]) >= roomCapacity {
		return errRoomFull
	}

	rm.removeFromRoom(p)
	rm.rooms[roomID] = append(rm.rooms[roomID], p)
	rm.location[p] = roomID

	return nil
}

// leave forgets a player entirely (eviction or elimination).
func (rm *Rooms) leave(p *Player) {
	rm.removeFromRoom(p)
	delete(rm.location, p)
}

// roomOf reports which room holds the player; 0 is the lobby.
func (rm *Rooms) roomOf(p *Player) int {
	return rm.location[p]
}

// members returns a copy of a room's occupants.
func (rm *Rooms) members(roomID int) []*Player {
	out := make([]*Player, 0, roomCapacity)
	return append(out, rm.rooms[roomID]...)
}

// lobbyMembers returns the players currently in the lobby.
func (rm *Rooms) lobbyMembers() []*Player {
	var out []*Player
	for p, loc := range rm.location {
		if loc == 0 {
			out = append(out, p)
		}
	}
	return out
}

// clear empties every room, returning all players to the lobby. Used when a
// discussion phase ends.
func (rm *Rooms) clear() {
	for p := range rm.location {
		rm.location[p] = 0
	}
	clear(rm.rooms)
}

// occupancy reports the current occupant names per room id.
func (rm *Rooms) occupancy() map[int][]string {
	out := make(map[int][]string, len(rm.rooms))
	for id, members := range rm.rooms {
		names := make([]string, 0, len(members))
		for _, p := range members {
			names = append(names, p.name)
		}
		out[id] = names
	}
	return out
}

// removeFromRoom takes a player out of their room, if any, deleting the
// room once its last occupant departs so the id can be reused.
func (rm *Rooms) removeFromRoom(p *Player) {
	roomID, ok := rm.location[p]
	if !ok || roomID == 0 {
		return
	}

	members := rm.rooms[roomID]
	dst := members[:0]
	for _, q := range members {
		if q != p {
			dst = append(dst, q)
		}
	}

	if len(dst) == 0 {
		delete(rm.rooms, roomID)
	} else {
		rm.rooms[roomID] = dst
	}
}
