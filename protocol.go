// Wire protocol for the game: newline-delimited UTF-8 JSON frames, each with
// a required "type" discriminator. The set of fields carried by each type is
// not hardcoded; it comes from an embedded schema keyed by type, and encode
// serializes every listed field, null when the caller supplied nothing.
// Anything that fails to decode is dropped by the caller, never fatal.

package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed message_protocol.json
var rawSchema []byte

// Messages coming from clients
const (
	msgJoinRoom  = "JOIN_ROOM"
	msgJoinLobby = "JOIN_LOBBY"
	msgReady     = "READY"
	msgJoin      = "JOIN"
	msgChat      = "CHAT"
	msgVote      = "VOTE"
	msgPing      = "PING"
)

// Messages sent to clients
const (
	msgLobbyJoined = "LOBBY_JOINED"
	msgInfo        = "INFO"
	msgAssignRole  = "ASSIGN_ROLE"
	msgGameStarted = "GAME_STARTED"
	msgVoteResult  = "VOTE_RESULT"
	msgEndGame     = "END_GAME"
	msgPong        = "PONG"
)

type schemaEntry struct {
	Fields []string `json:"fields"`
}

var messageTypes = func() map[string]schemaEntry {
	m := make(map[string]schemaEntry)
	if err := json.Unmarshal(rawSchema, &m); err != nil {
		panic("invalid embedded message schema: " + err.Error())
	}
	return m
}()

type fields map[string]any

// Message is one decoded inbound frame.
type Message struct {
	Type   string
	Fields fields
}

// str returns the named field if it decoded as a string.
func (m Message) str(name string) string {
	s, _ := m.Fields[name].(string)
	return s
}

// integer returns the named field if it decoded as a whole number.
func (m Message) integer(name string) (int, bool) {
	f, ok := m.Fields[name].(float64)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// encodeFrame serializes one outbound frame, newline delimiter included.
// Every field the schema lists for this type is present in the output;
// missing fields serialize as null. Unknown types are a programming error,
// since the schema is static.
func encodeFrame(msgType string, f fields) []byte {
	entry, ok := messageTypes[msgType]
	if !ok {
		panic(fmt.Sprintf("unknown message type %q", msgType))
	}

	out := make(map[string]any, len(entry.Fields)+1)
	out["type"] = msgType
	for _, name := range entry.Fields {
		out[name] = f[name]
	}

	data, err := json.Marshal(out)
	if err != nil {
		panic(fmt.Sprintf("unencodable %s frame: %v", msgType, err))
	}

	return append(data, '\n')
}

// decodeFrame parses one inbound frame. Malformed JSON, a missing type
// discriminator, and types absent from the schema are all reported as
// errors; callers discard the frame and keep reading.
func decodeFrame(data []byte) (Message, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("malformed frame: %w", err)
	}

	msgType, ok := raw["type"].(string)
	if !ok {
		return Message{}, fmt.Errorf("frame has no type discriminator")
	}
	if _, known := messageTypes[msgType]; !known {
		return Message{}, fmt.Errorf("unknown message type %q", msgType)
	}

	delete(raw, "type")

	return Message{Type: msgType, Fields: raw}, nil
}

func infoFrame(text string) []byte {
	return encodeFrame(msgInfo, fields{"message": text})
}
