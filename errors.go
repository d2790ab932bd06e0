/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"log"
	"time"
)

var (
	errDuplicateJoin = errors.New("connection already has a player identity")
	errInvalidName   = errors.New("player name must not be empty")
	errRoomFull      = errors.New("room already has two occupants")
	errInvalidRoom   = errors.New("room id must be a positive integer")
	errAlreadyVoted  = errors.New("player has already voted this round")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}
