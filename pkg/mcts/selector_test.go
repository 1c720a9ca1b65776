package mcts

import (
	"testing"

	"github.com/tarsiersync/forgecode/pkg/outline"
)

func TestCalculateExploitationIsMeanReward(t *testing.T) {
	tree := NewSearchTree("root problem", 3, 10, 50, NewDefaultSelector())
	n, _ := tree.Expand(0, searchParams(t, "foo"))
	n.Visits = 4
	n.Value = 200
	if got := tree.calculateExploitation(n.Index); got != 50 {
		t.Fatalf("exploitation = %v, want 50", got)
	}
}

func TestCalculateExploitationZeroForUnvisited(t *testing.T) {
	tree := NewSearchTree("root problem", 3, 10, 50, NewDefaultSelector())
	n, _ := tree.Expand(0, searchParams(t, "foo"))
	if got := tree.calculateExploitation(n.Index); got != 0 {
		t.Fatalf("exploitation = %v, want 0", got)
	}
}

func TestCalculateDepthBonusOnlyAtDepthZero(t *testing.T) {
	tree := NewSearchTree("root problem", 3, 10, 50, NewDefaultSelector())
	child, _ := tree.Expand(0, searchParams(t, "foo"))
	if got := tree.calculateDepthBonus(0); got == 0 {
		t.Fatalf("expected nonzero depth bonus at depth 0")
	}
	if got := tree.calculateDepthBonus(child.Index); got != 0 {
		t.Fatalf("expected zero depth bonus at depth 1, got %v", got)
	}
}

func TestCalculateDuplicateActionPenaltyAppliesToDuplicateNode(t *testing.T) {
	tree := NewSearchTree("root problem", 3, 10, 50, NewDefaultSelector())
	a, _ := tree.Expand(0, searchParams(t, "foo"))
	a.Observation = &outline.ActionObservation{Message: "found"}
	dup, _ := tree.Expand(0, searchParams(t, "foo"))

	if !dup.IsDuplicate {
		t.Fatalf("expected second identical expand to be marked duplicate")
	}
	if got := tree.calculateDuplicateActionPenalty(dup.Index); got >= 0 {
		t.Fatalf("expected negative penalty for duplicate node, got %v", got)
	}
	if got := tree.calculateDuplicateActionPenalty(a.Index); got != 0 {
		t.Fatalf("expected zero penalty for non-duplicate node, got %v", got)
	}
}

func TestCalculateHighValueLeafBonusRequiresChildlessAndHighReward(t *testing.T) {
	tree := NewSearchTree("root problem", 3, 10, 50, NewDefaultSelector())
	n, _ := tree.Expand(0, searchParams(t, "foo"))
	n.Reward = &Reward{Value: 80}
	if got := tree.calculateHighValueLeafBonus(n.Index); got == 0 {
		t.Fatalf("expected nonzero bonus for a high-reward leaf")
	}

	_ = tree.AddChild(n.Index, NewActionNode(tree.GetNewNodeIndex()))
	if got := tree.calculateHighValueLeafBonus(n.Index); got != 0 {
		t.Fatalf("expected zero bonus once the node has children, got %v", got)
	}
}

func TestSelectExcludesNonExpandableAndIsDeterministic(t *testing.T) {
	tree := NewSearchTree("root problem", 2, 10, 50, NewDefaultSelector())
	dup, _ := tree.Expand(0, searchParams(t, "foo"))
	dup.IsDuplicate = true
	plain, _ := tree.Expand(0, searchParams(t, "bar"))

	picked, ok := tree.Select(0)
	if !ok {
		t.Fatalf("expected a selectable node")
	}
	if picked == dup.Index {
		t.Fatalf("selection must never pick a duplicate node")
	}
	if picked != plain.Index && picked != 0 {
		t.Fatalf("unexpected selection: %d", picked)
	}
}

func TestSelectReturnsFalseWhenNothingExpandable(t *testing.T) {
	tree := NewSearchTree("root problem", 1, 10, 50, NewDefaultSelector())
	root, _ := tree.GetNode(0)
	root.Observation = &outline.ActionObservation{Terminal: true}

	_, ok := tree.Select(0)
	if ok {
		t.Fatalf("expected no expandable node once the root is a terminal observation")
	}
}
