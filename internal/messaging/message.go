// Package messaging implements the inbox store: an append-only,
// lock-serialized sequence of messages per (team, agent), the
// durable half of the messaging core described by the system this
// module implements.
package messaging

import "time"

// Message is one entry in an agent's inbox. Text is opaque UTF-8; the
// store never parses or mutates it. Once Read flips true it must
// never revert.
type Message struct {
	From      string  `json:"from"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
	Read      bool    `json:"read"`
	Summary   *string `json:"summary,omitempty"`
	Color     *string `json:"color,omitempty"`
}

// NowISO returns the current UTC instant at millisecond precision,
// e.g. "2026-07-31T12:00:00.000Z".
func NowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// New builds a Message with the current timestamp and read=false.
func New(from, text string) Message {
	return Message{From: from, Text: text, Timestamp: NowISO(), Read: false}
}

// WithSummary returns a copy of m with Summary set.
func (m Message) WithSummary(summary string) Message {
	m.Summary = &summary
	return m
}

// WithColor returns a copy of m with Color set.
func (m Message) WithColor(color string) Message {
	m.Color = &color
	return m
}
