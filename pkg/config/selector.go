package config

import "github.com/tarsiersync/forgecode/pkg/mcts"

// ToSelector builds an *mcts.Selector from cfg, starting from the
// source's hardcoded constants (mcts.NewDefaultSelector) and overriding
// only the fields cfg sets explicitly. A nil cfg returns the defaults
// unmodified.
func (cfg *SelectorConfig) ToSelector() *mcts.Selector {
	sel := mcts.NewDefaultSelector()
	if cfg == nil {
		return sel
	}

	overrides := []struct {
		src *float64
		dst *float64
	}{
		{cfg.ExplorationConstant, &sel.ExplorationConstant},
		{cfg.DepthWeight, &sel.DepthWeight},
		{cfg.DepthBonus, &sel.DepthBonus},
		{cfg.DepthPenalty, &sel.DepthPenalty},
		{cfg.HighValueLeafBonusConstant, &sel.HighValueLeafBonusConstant},
		{cfg.HighValueBadChildrenBonusConstant, &sel.HighValueBadChildrenBonusConstant},
		{cfg.HighValueChildPenaltyConstant, &sel.HighValueChildPenaltyConstant},
		{cfg.HighValueParentBonusConstant, &sel.HighValueParentBonusConstant},
		{cfg.FinishedTrajectoryPenaltyConstant, &sel.FinishedTrajectoryPenaltyConstant},
		{cfg.ExpectCorrectionBonusConstant, &sel.ExpectCorrectionBonusConstant},
		{cfg.DuplicateActionPenaltyConstant, &sel.DuplicateActionPenaltyConstant},
		{cfg.DuplicateChildPenaltyConstant, &sel.DuplicateChildPenaltyConstant},
	}
	for _, o := range overrides {
		if o.src != nil {
			*o.dst = *o.src
		}
	}
	return sel
}
