package main

import (
	"errors"
	"testing"
)

func TestMaxRooms(t *testing.T) {
	for players, want := range map[int]int{1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 6: 3, 7: 4} {
		if got := maxRooms(players); got != want {
			t.Errorf("maxRooms(%d) = %d, want %d", players, got, want)
		}
	}
}

func TestRoomCapacity(t *testing.T) {
	rm := newRooms()
	a := &Player{name: "a"}
	b := &Player{name: "b"}
	c := &Player{name: "c"}

	if err := rm.joinRoom(a, 1); err != nil {
		t.Fatalf("first occupant rejected: %v", err)
	}
	if err := rm.joinRoom(b, 1); err != nil {
		t.Fatalf("second occupant rejected: %v", err)
	}
	if err := rm.joinRoom(c, 1); !errors.Is(err, errRoomFull) {
		t.Fatalf("expected errRoomFull, got %v", err)
	}
	if rm.roomOf(c) == 1 {
		t.Error("rejected player ended up in the room anyway")
	}
}

func TestInvalidRoomID(t *testing.T) {
	rm := newRooms()
	p := &Player{name: "p"}

	for _, id := range []int{0, -1, -100} {
		if err := rm.joinRoom(p, id); !errors.Is(err, errInvalidRoom) {
			t.Errorf("joinRoom(%d): expected errInvalidRoom, got %v", id, err)
		}
	}
}

func TestJoinLobbyIdempotent(t *testing.T) {
	rm := newRooms()
	p := &Player{name: "p"}

	if err := rm.joinRoom(p, 2); err != nil {
		t.Fatal(err)
	}

	rm.joinLobby(p)
	first := rm.roomOf(p)
	rm.joinLobby(p)
	second := rm.roomOf(p)

	if first != 0 || second != 0 {
		t.Errorf("expected lobby both times, got %d then %d", first, second)
	}
	if len(rm.occupancy()) != 0 {
		t.Errorf("expected no rooms left, got %v", rm.occupancy())
	}
}

func TestEmptyRoomDeleted(t *testing.T) {
	rm := newRooms()
	a := &Player{name: "a"}
	b := &Player{name: "b"}

	_ = rm.joinRoom(a, 3)
	_ = rm.joinRoom(b, 3)
	rm.leave(a)

	if members := rm.members(3); len(members) != 1 || members[0] != b {
		t.Fatalf("expected b alone in room 3, got %v", members)
	}

	rm.leave(b)
	if _, exists := rm.occupancy()[3]; exists {
		t.Error("room 3 should be deleted once emptied")
	}

	// The freed id is reusable.
	if err := rm.joinRoom(a, 3); err != nil {
		t.Errorf("reusing freed room id failed: %v", err)
	}
}

func TestMoveBetweenRooms(t *testing.T) {
	rm := newRooms()
	a := &Player{name: "a"}
	b := &Player{name: "b"}

	_ = rm.joinRoom(a, 1)
	_ = rm.joinRoom(b, 1)
	if err := rm.joinRoom(a, 2); err != nil {
		t.Fatalf("moving rooms failed: %v", err)
	}

	if rm.roomOf(a) != 2 {
		t.Errorf("a should be in room 2, is in %d", rm.roomOf(a))
	}
	if members := rm.members(1); len(members) != 1 || members[0] != b {
		t.Errorf("room 1 should hold only b, got %v", members)
	}

	// Now room 1 has space again.
	c := &Player{name: "c"}
	if err := rm.joinRoom(c, 1); err != nil {
		t.Errorf("room 1 should have a free slot: %v", err)
	}
}

func TestClearReturnsEveryoneToLobby(t *testing.T) {
	rm := newRooms()
	players := []*Player{{name: "a"}, {name: "b"}, {name: "c"}, {name: "d"}}
	for _, p := range players {
		rm.joinLobby(p)
	}
	_ = rm.joinRoom(players[0], 1)
	_ = rm.joinRoom(players[1], 1)
	_ = rm.joinRoom(players[2], 2)

	rm.clear()

	for _, p := range players {
		if rm.roomOf(p) != 0 {
			t.Errorf("%s still in room %d after clear", p.name, rm.roomOf(p))
		}
	}
	if len(rm.occupancy()) != 0 {
		t.Errorf("rooms survived clear: %v", rm.occupancy())
	}
	if got := len(rm.lobbyMembers()); got != len(players) {
		t.Errorf("expected %d lobby members, got %d", len(players), got)
	}
}
