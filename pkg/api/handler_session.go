package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tarsiersync/forgecode/pkg/ledger"
	"github.com/tarsiersync/forgecode/pkg/session"
)

// createSessionHandler handles POST /api/v1/sessions: it creates a fresh
// session over the requested root directory with the default tool catalog
// and search parameters, and enqueues no work until the first turn arrives.
func (s *Server) createSessionHandler(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	def := s.cfg.Defaults
	sel := def.Selector.ToSelector()
	sess := s.sessions.Create(
		req.ProblemStatement, req.RootDirectory, req.RepoName,
		def.MaxExpansions, def.MaxDepth, def.MaxIterations,
		s.cfg.Tools, sel,
	)

	if err := s.sessions.Persist(sess); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func toSessionResponse(sess *session.Session) *SessionResponse {
	clone := sess.Clone()
	return &SessionResponse{
		ID:               clone.ID,
		RootDirectory:    clone.RootDirectory,
		RepoName:         clone.RepoName,
		ProblemStatement: clone.ProblemStatement,
		Status:           clone.Status,
	}
}

// submitTurnHandler handles POST /api/v1/sessions/:id/turns: it runs the
// session's hot loop for one human message and blocks until the loop
// reaches a terminal state, is cancelled, or the request context is
// cancelled by the client disconnecting.
func (s *Server) submitTurnHandler(c *gin.Context) {
	sessionID := c.Param("id")

	var req SubmitTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	ctx := s.turns.start(c.Request.Context(), sessionID)
	defer s.turns.finish(sessionID)

	result, err := s.loop.Turn(ctx, sess, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}

	s.recordTurn(c, sessionID, req.Message, result)

	c.JSON(http.StatusOK, &TurnResponse{
		SessionID:    sessionID,
		ExchangeID:   result.ExchangeID,
		Status:       result.Status,
		FinalMessage: result.FinalMessage,
	})
}

// recordTurn best-effort records a ledger tool_interaction row summarizing
// the turn, so the trace endpoints have something to list even though the
// inference engine's own per-call recording is out of this surface's scope.
func (s *Server) recordTurn(c *gin.Context, sessionID, message string, result session.TurnResult) {
	if s.store == nil {
		return
	}
	input, _ := json.Marshal(map[string]string{"message": message})
	output, _ := json.Marshal(map[string]string{
		"status":        string(result.Status),
		"final_message": result.FinalMessage,
	})
	_ = s.store.RecordToolInteraction(c.Request.Context(), ledger.ToolInteraction{
		ID:              result.ExchangeID,
		SessionID:       sessionID,
		InteractionType: "turn",
		ToolType:        "session_turn",
		ToolInput:       input,
		ToolResult:      output,
	})
}

// cancelSessionHandler handles POST /api/v1/sessions/:id/cancel: it fires
// the cancellation for whatever turn is currently running against this
// session, if any (§4.J).
func (s *Server) cancelSessionHandler(c *gin.Context) {
	sessionID := c.Param("id")

	cancelled := s.turns.cancelTurn(sessionID)

	c.JSON(http.StatusOK, &CancelResponse{
		SessionID: sessionID,
		Cancelled: cancelled,
		Message:   cancelMessage(cancelled),
	})
}

func cancelMessage(cancelled bool) string {
	if cancelled {
		return "cancellation requested"
	}
	return "no turn in progress"
}
