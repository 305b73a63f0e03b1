package chat

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

// toolCallSignature is the tool name plus a short hash of its arguments.
// json.Marshal sorts map keys, so equal arguments hash equally.
func toolCallSignature(c contractx.ToolCallRequest) string {
	raw, _ := json.Marshal(c.Arguments)
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%x", c.ToolName, h[:8])
}

// detectLoop reports whether the last window signatures repeat a pattern of
// length 1 or 2.
func detectLoop(sigs []string, window int) bool {
	if window <= 0 || len(sigs) < window {
		return false
	}
	tail := sigs[len(sigs)-window:]

	for patternLen := 1; patternLen <= 2; patternLen++ {
		if window%patternLen != 0 {
			continue
		}
		match := true
		for i := patternLen; i < window && match; i++ {
			match = tail[i] == tail[i%patternLen]
		}
		if match {
			return true
		}
	}
	return false
}
