package session

import (
	"fmt"
	"strings"
)

const (
	messageLimit = 2000
	renderCap    = 1900
)

// RenderQueue formats the pending queue for a chat message. The head is
// marked as playing when playback is active; output is capped under the
// platform message limit.
func RenderQueue(s *Session) string {
	queue := s.Queue()
	if len(queue) == 0 {
		return "Queue is empty."
	}

	playing := s.IsPlaying()

	var b strings.Builder
	b.WriteString("**Queue:**")
	for i, rec := range queue {
		line := fmt.Sprintf("\n%d. %s", i+1, rec.SourceURL)
		if i == 0 && playing {
			line += " (playing)"
		}
		if b.Len()+len(line) > renderCap {
			b.WriteString(fmt.Sprintf("\n... and %d more", len(queue)-i))
			break
		}
		b.WriteString(line)
	}
	return b.String()
}
