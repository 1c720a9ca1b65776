// Package mcts implements the Monte-Carlo-Tree-Search decision engine:
// the action-node tree (component E) and its selector scoring (component
// F). A SearchTree is single-owner per hot loop (§5) — it is not safe for
// concurrent mutation from more than one goroutine.
package mcts

import (
	"github.com/tarsiersync/forgecode/pkg/outline"
)

// Reward scores an observation against the goal. The numeric scale is
// intentionally unnormalized (§9 open question: "no documented ceiling");
// 75/90/100 are the thresholds the source treats as high/very-high/
// finished-penalty-eligible.
type Reward struct {
	Value         int    `json:"value"`
	Justification string `json:"justification"`
}

const (
	// RewardHighThreshold and friends mirror the source's hardcoded
	// thresholds (§9); they are not normalized against Value's range.
	RewardHighThreshold     = 75
	RewardVeryHighThreshold = 90
	FinishedRewardThreshold = 100
)

// LLMUsageStats records token accounting for the LLM call that produced
// this node's action.
type LLMUsageStats struct {
	InputTokens    int `json:"input_tokens"`
	OutputTokens   int `json:"output_tokens"`
	TotalTokens    int `json:"total_tokens"`
	ThinkingTokens int `json:"thinking_tokens"`
}

// VariableKind is the closed set of UserContext variable kinds.
type VariableKind int

const (
	VariableFile VariableKind = iota
	VariableSelection
	VariableCodeSymbol
)

func (k VariableKind) String() string {
	switch k {
	case VariableFile:
		return "File"
	case VariableSelection:
		return "Selection"
	case VariableCodeSymbol:
		return "CodeSymbol"
	default:
		return "Unknown"
	}
}

// UserContextVariable snapshots one file/selection/symbol referenced by a
// node. BaseContent is the source of truth for filesystem reset (§3, §6).
type UserContextVariable struct {
	FsFilePath    string           `json:"fs_file_path"`
	Kind          VariableKind     `json:"kind"`
	StartPosition outline.Position `json:"start_position"`
	EndPosition   outline.Position `json:"end_position"`
	BaseContent   string           `json:"base_content"`
	PatchFromRoot string           `json:"patch_from_root,omitempty"`
}

// UserContext is the set of file/selection/symbol variables a node
// carries forward.
type UserContext struct {
	Variables []UserContextVariable `json:"variables"`
}

// FileBaseContent returns the recorded base_content for fsFilePath, used
// by the filesystem reset protocol (§6).
func (u UserContext) FileBaseContent(fsFilePath string) (string, bool) {
	for _, v := range u.Variables {
		if v.FsFilePath == fsFilePath {
			return v.BaseContent, true
		}
	}
	return "", false
}

// ActionNode is a single node in the search tree. Index is dense and
// stable for the tree's lifetime (§3). Nodes are mutated exactly twice in
// their normal lifecycle: once on simulation (action/observation set),
// once per backpropagation pass (visits/value updated) — except when the
// loop re-enters the same index, which resets action/observation/reward
// while preserving identity (§3 "Node" lifecycle).
type ActionNode struct {
	Index                int                           `json:"index"`
	Action               *outline.ActionToolParameters `json:"action,omitempty"`
	Feedback             string                        `json:"feedback,omitempty"`
	IsDuplicate          bool                           `json:"is_duplicate"`
	Reward               *Reward                       `json:"reward,omitempty"`
	Visits               int                            `json:"visits"`
	Value                float64                        `json:"value"`
	RewardValue          float64                        `json:"reward_value"`
	MaxExpansions        int                            `json:"max_expansions"`
	TimeTakenSeconds     *float64                       `json:"time_taken_seconds,omitempty"`
	LLMUsageStats        *LLMUsageStats                 `json:"llm_usage_stats,omitempty"`
	Observation          *outline.ActionObservation     `json:"observation,omitempty"`
	UserContext          UserContext                    `json:"user_context"`
	Message              string                         `json:"message,omitempty"`
	IsActiveOnTrajectory bool                           `json:"is_active_on_trajectory"`
}

// defaultMaxExpansions mirrors a node freshly allocated with no explicit
// override; callers of AddNode typically set it from the tree's own
// MaxExpansions.
const defaultMaxExpansions = 1

// NewActionNode allocates a node with the given index and the defaults a
// freshly-expanded node carries before simulation. is_active_on_trajectory
// defaults to true when absent, per §4.E serialization note.
func NewActionNode(index int) *ActionNode {
	return &ActionNode{
		Index:                index,
		MaxExpansions:        defaultMaxExpansions,
		IsActiveOnTrajectory: true,
	}
}

// IsTerminalObservation reports whether this node's observation marks the
// branch as exhausted.
func (n *ActionNode) IsTerminalObservation() bool {
	return n.Observation != nil && n.Observation.Terminal
}

// IsFinished reports whether this node is a completed AttemptCompletion
// leaf — has an observation and its action is AttemptCompletion; a reward
// is not required.
func (n *ActionNode) IsFinished() bool {
	if n.Action == nil || n.Observation == nil {
		return false
	}
	toolType, ok := n.Action.ToToolType()
	if !ok {
		return false
	}
	return toolType == outline.ToolAttemptCompletion
}

// HasGitPath reports whether this node carries any file-scoped user
// context variable — used by the finished-trajectory penalty (§4.F) to
// decide whether a node is even eligible for that penalty.
func (n *ActionNode) HasGitPath() bool {
	return len(n.UserContext.Variables) > 0
}

// Reset clears action/observation/reward while preserving index and
// structural identity, used when the hot loop re-enters the same index
// (§3 Node lifecycle).
func (n *ActionNode) Reset() {
	n.Action = nil
	n.Observation = nil
	n.Reward = nil
	n.RewardValue = 0
	n.IsDuplicate = false
	n.Feedback = ""
	n.Message = ""
}
