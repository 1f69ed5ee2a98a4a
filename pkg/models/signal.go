// Package models defines the shared data types for the correlation engine.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SignalSource identifies where a signal was fetched from.
type SignalSource string

const (
	// SourceTrackerIssue marks a signal that originated as a tracker issue.
	SourceTrackerIssue SignalSource = "tracker-issue"
	// SourceChatThread marks a signal that originated as a chat thread or message.
	SourceChatThread SignalSource = "chat-thread"
)

// Signal is an immutable snapshot of a unit of discussion: a chat
// thread/message or a tracker issue. Signals are fetched and normalized by
// external collaborators; the engine never mutates them.
type Signal struct {
	Source    SignalSource `json:"source"`
	SourceID  string       `json:"source_id"`
	Title     string       `json:"title,omitempty"`
	Body      string       `json:"body"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Permalink string       `json:"permalink,omitempty"`
}

// Key returns the signal's identity within the run, unique across sources.
func (s *Signal) Key() string {
	return string(s.Source) + ":" + s.SourceID
}

// Text returns the canonical text representation used for hashing, embedding,
// and lexical scoring: the title (when present) followed by the body.
func (s *Signal) Text() string {
	title := strings.TrimSpace(s.Title)
	body := strings.TrimSpace(s.Body)
	if title == "" {
		return body
	}
	if body == "" {
		return title
	}
	return title + "\n\n" + body
}

// ContentHash returns the sha256 hex digest of the signal's canonical text.
// A cached embedding is reusable only while this hash is unchanged.
func (s *Signal) ContentHash() string {
	sum := sha256.Sum256([]byte(s.Text()))
	return hex.EncodeToString(sum[:])
}

// IsIssue reports whether the signal is a tracker issue.
func (s *Signal) IsIssue() bool {
	return s.Source == SourceTrackerIssue
}

// LastActivity returns the most recent known activity timestamp, falling
// back to the creation time when the signal was never updated.
func (s *Signal) LastActivity() time.Time {
	if !s.UpdatedAt.IsZero() {
		return s.UpdatedAt
	}
	return s.CreatedAt
}
