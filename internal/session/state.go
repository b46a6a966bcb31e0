package session

import (
	"fmt"

	"github.com/liteapi-travel/label-matcher-async/internal/confidence"
	"github.com/liteapi-travel/label-matcher-async/internal/export"
	"github.com/liteapi-travel/label-matcher-async/internal/reference"
)

// State is the controller's lifecycle state.
type State int

const (
	Idle State = iota
	AwaitingReference
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingReference:
		return "awaiting_reference"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MatchRecord is an accepted match kept for export.
type MatchRecord struct {
	Row        reference.Row
	Caption    string
	Confidence float64
	Tier       confidence.Tier
	Seq        uint64
}

// SessionContext is the single session owned by a Controller. Only the
// controller's worker goroutine reads or writes it.
type SessionContext struct {
	State     State
	Results   []MatchRecord
	Reference *reference.Index

	seq uint64
}

func (s *SessionContext) appendRecord(rec MatchRecord) MatchRecord {
	s.seq++
	rec.Seq = s.seq
	s.Results = append(s.Results, rec)
	return rec
}

// drain empties the results and returns what was there.
func (s *SessionContext) drain() []MatchRecord {
	out := s.Results
	s.Results = nil
	return out
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	State         State
	Results       int
	ReferenceRows int
}

// Reply is what the controller answers to a request.
type Reply struct {
	Text string

	// Outcome is set when an image went through classification.
	Outcome *confidence.Outcome
	// Records and Artifact are set when a session was ended.
	Records  []MatchRecord
	Artifact *export.Artifact
}

func text(format string, args ...any) Reply {
	return Reply{Text: fmt.Sprintf(format, args...)}
}

func exportRecords(records []MatchRecord) []export.Record {
	out := make([]export.Record, len(records))
	for i, rec := range records {
		out[i] = export.Record{Values: rec.Row.Values(), Caption: rec.Caption}
	}
	return out
}
