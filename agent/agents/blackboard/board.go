package blackboard

import (
	"fmt"
	"time"
)

// LogEntry is one timestamped line of the board's audit trail.
type LogEntry struct {
	At      time.Time
	Message string
}

func (e LogEntry) String() string {
	return fmt.Sprintf("[%s] %s", e.At.Format("15:04:05"), e.Message)
}

// Board is the shared state handed from stage to stage. Stages receive a
// Board by value and return a new one; they never mutate their input.
type Board struct {
	Goal           string
	ResearchNotes  []string
	Draft          string
	ReviewFeedback string
	FinalOutput    string
	Log            []LogEntry
}

func NewBoard(goal string) Board {
	return Board{Goal: goal}
}

// clone returns a Board that shares no backing arrays with b.
func (b Board) clone() Board {
	out := b
	out.ResearchNotes = append([]string(nil), b.ResearchNotes...)
	out.Log = append([]LogEntry(nil), b.Log...)
	return out
}

func (b Board) withNote(note string) Board {
	out := b.clone()
	out.ResearchNotes = append(out.ResearchNotes, note)
	return out
}

func (b Board) withLog(at time.Time, format string, args ...any) Board {
	out := b.clone()
	out.Log = append(out.Log, LogEntry{At: at, Message: fmt.Sprintf(format, args...)})
	return out
}

// Approved reports whether the reviewer signed off on the draft.
func (b Board) Approved() bool {
	return b.FinalOutput != ""
}

// Lines renders the log as "[HH:MM:SS] message" strings.
func (b Board) Lines() []string {
	out := make([]string, 0, len(b.Log))
	for _, e := range b.Log {
		out = append(out, e.String())
	}
	return out
}
