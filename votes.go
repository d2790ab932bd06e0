package main

import (
	"crypto/rand"
	"sort"
)

// Ballot collects at most one vote per player per voting round. Guarded by
// the session mutex like the other shared structures.
type Ballot struct {
	votes map[*Player]*Player
}

func newBallot() *Ballot {
	return &Ballot{
		votes: make(map[*Player]*Player),
	}
}

// cast records a vote. A second vote from the same player is rejected and
// does not overwrite the first.
func (b *Ballot) cast(voter, target *Player) error {
	if _, ok := b.votes[voter]; ok {
		return errAlreadyVoted
	}
	b.votes[voter] = target
	return nil
}

// discard removes a departed player both as voter and as target.
func (b *Ballot) discard(p *Player) {
	delete(b.votes, p)
	for voter, target := range b.votes {
		if target == p {
			delete(b.votes, voter)
		}
	}
}

func (b *Ballot) count() int {
	return len(b.votes)
}

func (b *Ballot) reset() {
	clear(b.votes)
}

// tally computes the elimination target by plurality. Ties are broken
// uniformly at random among the targets sharing the maximum count. Returns
// false when no votes were cast, in which case nobody is eliminated.
func (b *Ballot) tally() (*Player, bool) {
	if len(b.votes) == 0 {
		return nil, false
	}

	counts := make(map[*Player]int)
	for _, target := range b.votes {
		counts[target]++
	}

	top := 0
	for _, n := range counts {
		if n > top {
			top = n
		}
	}

	leaders := make([]*Player, 0, len(counts))
	for target, n := range counts {
		if n == top {
			leaders = append(leaders, target)
		}
	}
	// Deterministic order before the random pick, since map iteration
	// order would otherwise leak into the distribution.
	sort.Slice(leaders, func(i, j int) bool { return leaders[i].name < leaders[j].name })

	return leaders[randIndex(len(leaders))], true
}

// randIndex picks a uniform index in [0, n) using crypto/rand.
func randIndex(n int) int {
	if n <= 1 {
		return 0
	}

	// Rejection sampling to avoid modulo bias.
	limit := 256 - (256 % n)
	for {
		var b [1]byte
		if _, err := rand.Read(b[:]); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		if int(b[0]) < limit {
			return int(b[0]) % n
		}
	}
}
