package memory

import (
	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

const DefaultMaxRecent = 10

// Trim bounds conv to its leading system message plus the last maxRecent
// messages. Conversations of at most maxRecent+1 messages are returned
// unchanged. The result never aliases conv, and Trim(Trim(c, n), n) equals
// Trim(c, n).
func Trim(conv []contractx.Message, maxRecent int) []contractx.Message {
	if maxRecent < 0 {
		maxRecent = 0
	}
	if len(conv) <= maxRecent+1 {
		return contractx.CloneMessages(conv)
	}

	out := make([]contractx.Message, 0, maxRecent+1)
	if conv[0].Role == contractx.RoleSystem {
		out = append(out, conv[0])
	}
	out = append(out, conv[len(conv)-maxRecent:]...)
	return contractx.CloneMessages(out)
}

// Manager applies Trim with a fixed window.
type Manager struct {
	MaxRecent int
}

func NewManager(maxRecent int) Manager {
	if maxRecent <= 0 {
		maxRecent = DefaultMaxRecent
	}
	return Manager{MaxRecent: maxRecent}
}

func (m Manager) Trim(conv []contractx.Message) []contractx.Message {
	return Trim(conv, m.MaxRecent)
}
