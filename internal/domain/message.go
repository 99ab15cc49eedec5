package domain

import "time"

// RawMessage is a single chat message as produced by a message source.
type RawMessage struct {
	Timestamp time.Time `json:"timestamp"` // timezone-aware message time
	SenderID  *int64    `json:"sender_id"` // nullable sender identifier
	Text      string    `json:"text"`      // message body; empty means invalid
}

// Mention is one occurrence of a recognized ticker symbol within one message.
// Symbol is the uppercase canonical form; catalog lookups lowercase it.
type Mention struct {
	Message RawMessage
	Symbol  string
}
