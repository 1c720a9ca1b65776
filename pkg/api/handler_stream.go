package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tarsiersync/forgecode/pkg/session"
)

// streamPollInterval is how often the SSE relay re-checks the session for
// new exchanges. The hot loop persists the session after every iteration
// (pkg/session.Loop.Turn), so polling the in-memory/on-disk session is
// sufficient to observe progress without a dedicated publish-subscribe bus.
const streamPollInterval = 250 * time.Millisecond

// timelineEvent is the SSE payload for a newly visible exchange, standing
// in for the teacher's WebSocket timeline_event.created message.
type timelineEvent struct {
	ExchangeID string `json:"exchange_id"`
	Kind       string `json:"kind"`
	NodeIndex  int    `json:"node_index,omitempty"`
	Content    string `json:"content,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// streamHandler handles GET /api/v1/sessions/:id/stream: a Server-Sent
// Events relay of timeline events, the better fit for a one-directional
// server push to a thin editor client (the teacher instead relays over
// WebSocket for its own two-way dashboard).
func (s *Server) streamHandler(c *gin.Context) {
	sessionID := c.Param("id")
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	sent := 0
	ctx := c.Request.Context()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			clone := sess.Clone()
			for ; sent < len(clone.Exchanges); sent++ {
				e := clone.Exchanges[sent]
				if e.Hidden {
					continue
				}
				c.SSEvent("timeline", timelineEvent{
					ExchangeID: e.ID,
					Kind:       string(e.Kind),
					NodeIndex:  e.NodeIndex,
					Content:    e.Content,
					CreatedAt:  e.CreatedAt.Format(time.RFC3339),
				})
			}
			c.Writer.Flush()

			if isTerminal(clone.Status) {
				c.SSEvent("done", gin.H{"status": clone.Status})
				c.Writer.Flush()
				return
			}
		}
	}
}

func isTerminal(status session.Status) bool {
	switch status {
	case session.StatusCompleted, session.StatusCancelled, session.StatusFailed:
		return true
	default:
		return false
	}
}
