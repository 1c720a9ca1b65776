package api

// CreateSessionRequest is the HTTP request body for POST /api/v1/sessions.
type CreateSessionRequest struct {
	ProblemStatement string `json:"problem_statement" binding:"required"`
	RootDirectory    string `json:"root_directory" binding:"required"`
	RepoName         string `json:"repo_name,omitempty"`
}

// SubmitTurnRequest is the HTTP request body for
// POST /api/v1/sessions/:id/turns.
type SubmitTurnRequest struct {
	Message string `json:"message" binding:"required"`
}
