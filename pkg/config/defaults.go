package config

// Defaults contains system-wide search/session defaults applied when a
// session is created without overriding them (§4.E/§4.F/§4.I).
type Defaults struct {
	// LLMProvider is the name of the LLMProviderConfig used when a
	// session doesn't name one explicitly.
	LLMProvider string `yaml:"llm_provider,omitempty"`

	// MaxExpansions caps how many children a single search-tree node may
	// have before it counts as fully expanded (§4.E).
	MaxExpansions int `yaml:"max_expansions,omitempty" validate:"omitempty,min=1"`

	// MaxDepth bounds how deep a single trajectory may go (§4.E).
	MaxDepth int `yaml:"max_depth,omitempty" validate:"omitempty,min=1"`

	// MaxIterations bounds how many hot-loop iterations a single Turn
	// call may run before yielding StatusAwaitingUser (§4.I).
	MaxIterations int `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`

	// MaxReasoningNodes is loaded and validated but not read by the hot
	// loop, whose reasoning budget is the fixed maxReasoningNodes
	// constant (200) in pkg/session (§4.I).
	MaxReasoningNodes int `yaml:"max_reasoning_nodes,omitempty" validate:"omitempty,min=1"`

	// ReasoningEnabled is loaded from YAML (env override:
	// SIDECAR_ENABLE_REASONING); no package reads it, and nothing in this
	// module sets session.Loop.ReasoningEngine.
	ReasoningEnabled bool `yaml:"reasoning_enabled,omitempty"`

	// Selector carries the UCT scoring weights (§4.F); a zero value
	// means "use mcts.NewDefaultSelector()".
	Selector *SelectorConfig `yaml:"selector,omitempty"`

	// Tools is the default tool catalog offered to the inference engine
	// when a session doesn't name its own (§6).
	Tools []string `yaml:"tools,omitempty"`
}

// SelectorConfig mirrors mcts.Selector's fields for YAML configurability;
// kept as a separate type (rather than importing mcts.Selector directly
// into the YAML struct) so the zero value ("unset" in YAML) is
// distinguishable from the zero value of a float64 weight.
type SelectorConfig struct {
	ExplorationConstant *float64 `yaml:"exploration_constant,omitempty"`

	DepthWeight  *float64 `yaml:"depth_weight,omitempty"`
	DepthBonus   *float64 `yaml:"depth_bonus_factor,omitempty"`
	DepthPenalty *float64 `yaml:"depth_penalty_factor,omitempty"`

	HighValueLeafBonusConstant        *float64 `yaml:"high_value_leaf_bonus_constant,omitempty"`
	HighValueBadChildrenBonusConstant *float64 `yaml:"high_value_bad_children_bonus_constant,omitempty"`
	HighValueChildPenaltyConstant     *float64 `yaml:"high_value_child_penalty_constant,omitempty"`
	HighValueParentBonusConstant      *float64 `yaml:"high_value_parent_bonus_constant,omitempty"`
	FinishedTrajectoryPenaltyConstant *float64 `yaml:"finished_trajectory_penalty_constant,omitempty"`
	ExpectCorrectionBonusConstant     *float64 `yaml:"expect_correction_bonus_constant,omitempty"`
	DuplicateActionPenaltyConstant    *float64 `yaml:"duplicate_action_penalty_constant,omitempty"`
	DuplicateChildPenaltyConstant     *float64 `yaml:"duplicate_child_penalty_constant,omitempty"`
}

// DefaultDefaults returns the built-in session/search defaults.
func DefaultDefaults() *Defaults {
	return &Defaults{
		MaxExpansions:     50,
		MaxDepth:          30,
		MaxIterations:     200,
		MaxReasoningNodes: 200,
		ReasoningEnabled:  false,
		Tools: []string{
			"ListFiles", "FindFiles", "SearchFileContentWithRegex", "OpenFile",
			"CodeEditing", "TerminalCommand", "LSPDiagnostics", "TestRunner",
			"AttemptCompletion", "AskFollowupQuestions",
		},
	}
}
