package mcts

import (
	"math"
	"sort"
)

// Selector scores expandable nodes with a UCT-style formula and picks the
// best one (§4.F). NewDefaultSelector fills every weight with the source's
// constants; a zero Selector is usable but scores every weighted term as 0.
type Selector struct {
	ExplorationConstant float64 `json:"exploration_constant"`

	DepthWeight  float64 `json:"depth_weight"`
	DepthBonus   float64 `json:"depth_bonus_factor"`
	DepthPenalty float64 `json:"depth_penalty_factor"`

	HighValueLeafBonusConstant         float64 `json:"high_value_leaf_bonus_constant"`
	HighValueBadChildrenBonusConstant  float64 `json:"high_value_bad_children_bonus_constant"`
	HighValueChildPenaltyConstant      float64 `json:"high_value_child_penalty_constant"`
	HighValueParentBonusConstant       float64 `json:"high_value_parent_bonus_constant"`
	FinishedTrajectoryPenaltyConstant  float64 `json:"finished_trajectory_penalty_constant"`
	ExpectCorrectionBonusConstant      float64 `json:"expect_correction_bonus_constant"`
	DuplicateActionPenaltyConstant     float64 `json:"duplicate_action_penalty_constant"`
	DuplicateChildPenaltyConstant      float64 `json:"duplicate_child_penalty_constant"`
}

// NewDefaultSelector returns a Selector with the source's hardcoded
// constants (§4.F), suitable when no config overrides them.
func NewDefaultSelector() *Selector {
	return &Selector{
		ExplorationConstant: 1.41421356237, // sqrt(2)

		DepthWeight:  0.8,
		DepthBonus:   200.0,
		DepthPenalty: 50.0,

		HighValueLeafBonusConstant:        50.0,
		HighValueBadChildrenBonusConstant: 100.0,
		HighValueChildPenaltyConstant:     50.0,
		HighValueParentBonusConstant:      50.0,
		FinishedTrajectoryPenaltyConstant: 50.0,
		ExpectCorrectionBonusConstant:     50.0,
		DuplicateActionPenaltyConstant:    100.0,
		DuplicateChildPenaltyConstant:     50.0,
	}
}

// NodeVisits returns a node's visit count, treating an absent node as
// zero visits (the node hasn't been simulated yet).
func (t *SearchTree) NodeVisits(index int) int {
	n, ok := t.GetNode(index)
	if !ok {
		return 0
	}
	return n.Visits
}

// calculateExploitation is the mean observed reward at index: value/visits,
// or 0 for an unvisited node.
func (t *SearchTree) calculateExploitation(index int) float64 {
	n, ok := t.GetNode(index)
	if !ok || n.Visits == 0 {
		return 0
	}
	return n.Value / float64(n.Visits)
}

// calculateExploration is the classic UCT exploration term using the
// parent's visit count, guarding against log(0) and division by zero for
// an unvisited node (treated as maximally worth exploring).
func (t *SearchTree) calculateExploration(index int) float64 {
	n, ok := t.GetNode(index)
	if !ok {
		return 0
	}
	if n.Visits == 0 {
		return t.Selector.ExplorationConstant
	}
	parentVisits := n.Visits
	if p, ok := t.ParentNode(index); ok {
		parentVisits = p.Visits
	}
	if parentVisits == 0 {
		parentVisits = 1
	}
	return t.Selector.ExplorationConstant * math.Sqrt(math.Log(float64(parentVisits))/float64(n.Visits))
}

// calculateDepthBonus rewards depth, but only at depth 0 — a quirk
// preserved from the source as-is (§9 open question resolution).
func (t *SearchTree) calculateDepthBonus(index int) float64 {
	depth := t.Depth(index)
	if depth != 0 {
		return 0
	}
	return t.Selector.DepthBonus * t.Selector.DepthWeight
}

// calculateDepthPenalty discourages runaway depth, scaled linearly.
func (t *SearchTree) calculateDepthPenalty(index int) float64 {
	depth := t.Depth(index)
	return -t.Selector.DepthPenalty * t.Selector.DepthWeight * float64(depth)
}

// calculateHighValueLeafBonus rewards a childless, high-reward node —
// it is worth revisiting/expanding further.
func (t *SearchTree) calculateHighValueLeafBonus(index int) float64 {
	n, ok := t.GetNode(index)
	if !ok || n.Reward == nil {
		return 0
	}
	if len(t.ChildrenIndices(index)) != 0 {
		return 0
	}
	if n.Reward.Value < RewardHighThreshold {
		return 0
	}
	return t.Selector.HighValueLeafBonusConstant
}

// calculateHighValueBadChildrenBonus rewards a high-value node all of
// whose children scored poorly — it suggests exploring a sibling action
// from this node instead of descending further. The 5.0 multiplier on the
// fraction of bad children mirrors the source's literal constant.
func (t *SearchTree) calculateHighValueBadChildrenBonus(index int) float64 {
	n, ok := t.GetNode(index)
	if !ok || n.Reward == nil || n.Reward.Value < RewardHighThreshold {
		return 0
	}
	children := t.Children(index)
	if len(children) == 0 {
		return 0
	}
	var bad int
	for _, c := range children {
		if c.Reward != nil && c.Reward.Value < RewardHighThreshold {
			bad++
		}
	}
	if bad == 0 {
		return 0
	}
	fraction := float64(bad) / float64(len(children))
	return t.Selector.HighValueBadChildrenBonusConstant * fraction * 5.0
}

// calculateHighValueChildPenalty discourages re-expanding a node whose
// best child is already high value — the child is the better candidate.
func (t *SearchTree) calculateHighValueChildPenalty(index int) float64 {
	children := t.Children(index)
	for _, c := range children {
		if c.Reward != nil && c.Reward.Value >= RewardVeryHighThreshold {
			return -t.Selector.HighValueChildPenaltyConstant
		}
	}
	return 0
}

// calculateHighValueParentBonus rewards a node whose parent already
// scored high — continuing a promising line.
func (t *SearchTree) calculateHighValueParentBonus(index int) float64 {
	parent, ok := t.ParentNode(index)
	if !ok || parent.Reward == nil {
		return 0
	}
	if parent.Reward.Value < RewardHighThreshold {
		return 0
	}
	return t.Selector.HighValueParentBonusConstant
}

// calculateFinishedTrajectoryPenalty heavily discourages re-expanding a
// node on a trajectory that already reached a perfect-scoring completion,
// using the source's hardcoded 100 threshold (distinct from
// FinishedRewardThreshold only in name; kept literal per the source).
func (t *SearchTree) calculateFinishedTrajectoryPenalty(index int) float64 {
	n, ok := t.GetNode(index)
	if !ok || !n.HasGitPath() {
		return 0
	}
	for _, finished := range t.FinishedNodes() {
		if finished.Reward == nil {
			continue
		}
		if finished.Reward.Value >= 100 {
			if t.isAncestor(index, finished.Index) {
				return -t.Selector.FinishedTrajectoryPenaltyConstant
			}
		}
	}
	return 0
}

func (t *SearchTree) isAncestor(ancestor, node int) bool {
	cur := node
	for {
		if cur == ancestor {
			return true
		}
		p, ok := t.Parent(cur)
		if !ok {
			return false
		}
		cur = p
	}
}

// calculateExpectCorrectionBonus rewards a node whose observation flagged
// that the agent should follow up with a correction.
func (t *SearchTree) calculateExpectCorrectionBonus(index int) float64 {
	n, ok := t.GetNode(index)
	if !ok || n.Observation == nil || !n.Observation.ExpectCorrection {
		return 0
	}
	return t.Selector.ExpectCorrectionBonusConstant
}

// calculateDuplicateActionPenalty heavily discourages selecting a node
// that was itself flagged a duplicate of a sibling action.
func (t *SearchTree) calculateDuplicateActionPenalty(index int) float64 {
	if t.IsNodeDuplicate(index) {
		return -t.Selector.DuplicateActionPenaltyConstant
	}
	return 0
}

// calculateDuplicateChildPenalty discourages expanding a node whose
// existing children are already mostly duplicates of each other.
func (t *SearchTree) calculateDuplicateChildPenalty(index int) float64 {
	children := t.Children(index)
	if len(children) == 0 {
		return 0
	}
	var dup int
	for _, c := range children {
		if c.IsDuplicate {
			dup++
		}
	}
	if dup == 0 {
		return 0
	}
	return -t.Selector.DuplicateChildPenaltyConstant * float64(dup) / float64(len(children))
}

// Score combines every term into index's UCT-derived selection score
// (§4.F). Higher is better.
func (t *SearchTree) Score(index int) float64 {
	return t.calculateExploitation(index) +
		t.calculateExploration(index) +
		t.calculateDepthBonus(index) +
		t.calculateDepthPenalty(index) +
		t.calculateHighValueLeafBonus(index) +
		t.calculateHighValueBadChildrenBonus(index) +
		t.calculateHighValueChildPenalty(index) +
		t.calculateHighValueParentBonus(index) +
		t.calculateFinishedTrajectoryPenalty(index) +
		t.calculateExpectCorrectionBonus(index) +
		t.calculateDuplicateActionPenalty(index) +
		t.calculateDuplicateChildPenalty(index)
}

// Select returns the highest-scoring node among root's expandable
// frontier (§4.E "selection safety": duplicates, fully-expanded, and
// terminal-observation nodes are never selected). Ties break toward the
// lower index for determinism. Returns (0, false) if nothing is
// expandable.
func (t *SearchTree) Select(root int) (int, bool) {
	candidates := t.ExpandableNode(root)
	if len(candidates) == 0 {
		return 0, false
	}
	sort.Ints(candidates)

	best := candidates[0]
	bestScore := t.Score(best)
	for _, idx := range candidates[1:] {
		score := t.Score(idx)
		if score > bestScore {
			best, bestScore = idx, score
		}
	}
	return best, true
}
