package mcts

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tarsiersync/forgecode/pkg/outline"
)

// SearchTree is the MCTS tree: an arena of ActionNodes plus parent/child
// index maps, owned exclusively by a single hot loop (§5). The zero value
// is not usable; build one with NewSearchTree.
type SearchTree struct {
	indexToNode    map[int]*ActionNode
	nodeToChildren map[int][]int
	nodeToParent   map[int]int

	RootIndex          int
	MaxExpansions      int
	MaxDepth           int
	MaxIterations      int
	MaxFinishedNodes   *int
	RewardThreshold    *float64
	MinFinishedNodes   *int
	MaxSearchTry       *int
	Selector           *Selector
	Tools              []outline.ToolType
	RootDirectory      string
	RepoName           string
	RepoBaseCommitHash string
	LogDirectory       string
	AgentSettings      map[string]string

	nextIndex int
}

// NewSearchTree creates a tree with a single root node carrying the
// problem statement as its message (§3 "Tree" lifecycle).
func NewSearchTree(problemStatement string, maxExpansions, maxDepth, maxIterations int, selector *Selector) *SearchTree {
	t := &SearchTree{
		indexToNode:    make(map[int]*ActionNode),
		nodeToChildren: make(map[int][]int),
		nodeToParent:   make(map[int]int),
		MaxExpansions:  maxExpansions,
		MaxDepth:       maxDepth,
		MaxIterations:  maxIterations,
		Selector:       selector,
	}
	root := NewActionNode(0)
	root.Message = problemStatement
	root.MaxExpansions = maxExpansions
	t.indexToNode[0] = root
	t.nextIndex = 1
	return t
}

// GetNewNodeIndex allocates and reserves the next dense index without
// creating a node, for callers that build the node before registering it.
func (t *SearchTree) GetNewNodeIndex() int {
	idx := t.nextIndex
	t.nextIndex++
	return idx
}

// Root returns the tree's root node.
func (t *SearchTree) Root() *ActionNode { return t.indexToNode[t.RootIndex] }

// GetNode returns the node at index, if present.
func (t *SearchTree) GetNode(index int) (*ActionNode, bool) {
	n, ok := t.indexToNode[index]
	return n, ok
}

// Parent returns index's parent, if it has one (the root has none).
func (t *SearchTree) Parent(index int) (int, bool) {
	p, ok := t.nodeToParent[index]
	return p, ok
}

// ParentNode returns index's parent node, if any.
func (t *SearchTree) ParentNode(index int) (*ActionNode, bool) {
	p, ok := t.Parent(index)
	if !ok {
		return nil, false
	}
	return t.GetNode(p)
}

// ChildrenIndices returns index's children in insertion order.
func (t *SearchTree) ChildrenIndices(index int) []int {
	children := t.nodeToChildren[index]
	out := make([]int, len(children))
	copy(out, children)
	return out
}

// Children returns index's child nodes in insertion order, skipping any
// index whose node has gone missing (should never happen given AddChild's
// invariants, but defensive against a corrupted load).
func (t *SearchTree) Children(index int) []*ActionNode {
	indices := t.nodeToChildren[index]
	out := make([]*ActionNode, 0, len(indices))
	for _, ci := range indices {
		if n, ok := t.indexToNode[ci]; ok {
			out = append(out, n)
		}
	}
	return out
}

// AddNode registers node at its own Index, with no parent — used only for
// the root or when restoring from a serialized tree.
func (t *SearchTree) AddNode(node *ActionNode) {
	t.indexToNode[node.Index] = node
	if node.Index >= t.nextIndex {
		t.nextIndex = node.Index + 1
	}
}

// AddChild registers child under parentIndex, maintaining the parent/child
// maps as strict inverses (§3 invariant: "parent/child maps are
// inverses; no cycles").
func (t *SearchTree) AddChild(parentIndex int, child *ActionNode) error {
	if _, ok := t.indexToNode[parentIndex]; !ok {
		return fmt.Errorf("mcts: parent index %d not found", parentIndex)
	}
	t.indexToNode[child.Index] = child
	t.nodeToParent[child.Index] = parentIndex
	t.nodeToChildren[parentIndex] = append(t.nodeToChildren[parentIndex], child.Index)
	if child.Index >= t.nextIndex {
		t.nextIndex = child.Index + 1
	}
	return nil
}

// Depth returns the number of edges from the root to index (0 for root).
func (t *SearchTree) Depth(index int) int {
	depth := 0
	cur := index
	for {
		p, ok := t.Parent(cur)
		if !ok {
			return depth
		}
		depth++
		cur = p
	}
}

// Trajectory returns the root-to-n path (root first), per §4.E.
func (t *SearchTree) Trajectory(index int) []*ActionNode {
	var chain []int
	cur := index
	for {
		chain = append(chain, cur)
		p, ok := t.Parent(cur)
		if !ok {
			break
		}
		cur = p
	}
	out := make([]*ActionNode, len(chain))
	for i := range chain {
		out[i] = t.indexToNode[chain[len(chain)-1-i]]
	}
	return out
}

// IsDuplicateCandidate reports whether candidate matches an existing
// sibling under parentIndex by (tool type, canonical input string) (§4.E).
func (t *SearchTree) IsDuplicateCandidate(parentIndex int, candidate outline.ActionToolParameters) bool {
	candType, ok := candidate.ToToolType()
	if !ok {
		return false
	}
	for _, child := range t.Children(parentIndex) {
		if child.Action == nil {
			continue
		}
		childType, ok := child.Action.ToToolType()
		if !ok {
			continue
		}
		if childType == candType && child.Action.CanonicalString() == candidate.CanonicalString() {
			return true
		}
	}
	return false
}

// Expand either returns an existing unexecuted child (observation absent
// and not duplicate) of parentIndex, or allocates a new one carrying
// candidate, marking it duplicate if IsDuplicateCandidate says so (§4.E).
func (t *SearchTree) Expand(parentIndex int, candidate outline.ActionToolParameters) (*ActionNode, bool) {
	for _, child := range t.Children(parentIndex) {
		if child.Observation == nil && !child.IsDuplicate {
			return child, false
		}
	}

	isDup := t.IsDuplicateCandidate(parentIndex, candidate)
	node := NewActionNode(t.GetNewNodeIndex())
	node.Action = &candidate
	node.MaxExpansions = t.MaxExpansions
	node.IsDuplicate = isDup
	if parent, ok := t.GetNode(parentIndex); ok {
		node.UserContext = parent.UserContext
	}
	_ = t.AddChild(parentIndex, node)
	return node, true
}

// ResetChildrenForNode drops all of index's outgoing edges but never
// deletes the child nodes themselves — indices remain stable (§4.E).
func (t *SearchTree) ResetChildrenForNode(index int) {
	for _, childIdx := range t.nodeToChildren[index] {
		delete(t.nodeToParent, childIdx)
	}
	delete(t.nodeToChildren, index)
}

// IsNodeFullyExpanded reports whether index has at least MaxExpansions
// children already.
func (t *SearchTree) IsNodeFullyExpanded(index int) bool {
	node, ok := t.GetNode(index)
	if !ok {
		return false
	}
	return len(t.nodeToChildren[index]) >= node.MaxExpansions
}

// IsNodeDuplicate reports index's duplicate flag, defaulting to true (the
// "worst case", per the source) if the node is missing.
func (t *SearchTree) IsNodeDuplicate(index int) bool {
	node, ok := t.GetNode(index)
	if !ok {
		return true
	}
	return node.IsDuplicate
}

// ExpandableNode recursively collects, from root, every index eligible
// for expansion: not a terminal observation, not fully expanded, not a
// duplicate (§4.E / §4.F "Nodes whose... are excluded from the frontier").
func (t *SearchTree) ExpandableNode(root int) []int {
	node, ok := t.GetNode(root)
	if !ok {
		return nil
	}
	var out []int
	if !node.IsTerminalObservation() && !t.IsNodeFullyExpanded(root) && !t.IsNodeDuplicate(root) {
		out = append(out, root)
	}
	for _, child := range t.nodeToChildren[root] {
		out = append(out, t.ExpandableNode(child)...)
	}
	return out
}

// FinishedNodes returns every node whose action is AttemptCompletion and
// that has an observation, scored or not.
func (t *SearchTree) FinishedNodes() []*ActionNode {
	var out []*ActionNode
	for _, idx := range t.sortedIndices() {
		if n := t.indexToNode[idx]; n.IsFinished() {
			out = append(out, n)
		}
	}
	return out
}

func (t *SearchTree) sortedIndices() []int {
	indices := make([]int, 0, len(t.indexToNode))
	for idx := range t.indexToNode {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

// Simulate assigns reward to the node produced by a simulation step.
// Per invariant 2: reward is set iff observation is set iff the node is
// not a duplicate. Callers must not call Simulate for duplicate nodes or
// nodes without an observation (§4.H "skipped when the node is a
// duplicate or has no observation").
func (t *SearchTree) Simulate(index int, reward Reward) error {
	node, ok := t.GetNode(index)
	if !ok {
		return fmt.Errorf("mcts: node %d not found", index)
	}
	if node.IsDuplicate || node.Observation == nil {
		return fmt.Errorf("mcts: node %d cannot be simulated (duplicate=%v observation-set=%v)", index, node.IsDuplicate, node.Observation != nil)
	}
	r := reward
	node.Reward = &r
	node.RewardValue = float64(reward.Value)
	return nil
}

// Backpropagate walks from index up to the root, incrementing Visits and
// accumulating Value by the leaf's reward at every ancestor (inclusive of
// index itself).
func (t *SearchTree) Backpropagate(index int) {
	node, ok := t.GetNode(index)
	if !ok || node.Reward == nil {
		return
	}
	value := float64(node.Reward.Value)
	cur := index
	for {
		n, ok := t.GetNode(cur)
		if !ok {
			return
		}
		n.Visits++
		n.Value += value
		parent, ok := t.Parent(cur)
		if !ok {
			return
		}
		cur = parent
	}
}

// CalculateMeanReward walks from index up to the root via Parent,
// averaging value/visits (or 0 if unvisited) at each ancestor, and
// returns the mean across that single chain.
func (t *SearchTree) CalculateMeanReward(index int) float64 {
	var sum float64
	var count int
	cur := index
	for {
		n, ok := t.GetNode(cur)
		if !ok {
			break
		}
		if n.Visits > 0 {
			sum += n.Value / float64(n.Visits)
		}
		count++
		parent, ok := t.Parent(cur)
		if !ok {
			break
		}
		cur = parent
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// CalculateTreeReward walks the root -> first-child chain only (not the
// whole tree), averaging value/visits (or 0 if unvisited) per node
// along that single chain.
func (t *SearchTree) CalculateTreeReward() float64 {
	var sum float64
	var count int
	cur := t.RootIndex
	for {
		n, ok := t.GetNode(cur)
		if !ok {
			break
		}
		if n.Visits > 0 {
			sum += n.Value / float64(n.Visits)
		}
		count++
		children := t.nodeToChildren[cur]
		if len(children) == 0 {
			break
		}
		cur = children[0]
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// RenderTree writes an indented ASCII rendering of the tree rooted at
// index, one line per node showing its action summary, visit count, and
// reward — the reasoning-mode budget surface (SPEC_FULL.md supplemented
// feature), grounded on the source's print_tree/print_node.
func (t *SearchTree) RenderTree(w io.Writer, index int) {
	t.renderNode(w, index, 0)
}

func (t *SearchTree) renderNode(w io.Writer, index, depth int) {
	node, ok := t.GetNode(index)
	if !ok {
		return
	}
	prefix := strings.Repeat("  ", depth)

	label := "(root)"
	if node.Action != nil {
		if toolType, ok := node.Action.ToToolType(); ok {
			label = toolType.String()
		} else {
			label = "errored: " + node.Action.ErrorReason
		}
	}

	reward := "unscored"
	if node.Reward != nil {
		reward = fmt.Sprintf("reward=%d", node.Reward.Value)
	}

	flags := ""
	if node.IsDuplicate {
		flags += " duplicate"
	}
	if node.IsTerminalObservation() {
		flags += " terminal"
	}

	fmt.Fprintf(w, "%s[%d] %s visits=%d %s%s\n", prefix, index, label, node.Visits, reward, flags)
	for _, child := range t.nodeToChildren[index] {
		t.renderNode(w, child, depth+1)
	}
}

// --- JSON round trip (§4.E: "Must round-trip losslessly to JSON (indices
// as string keys in object maps)"). ---

type searchTreeWire struct {
	IndexToNode        map[string]*ActionNode `json:"index_to_node"`
	NodeToChildren     map[string][]int       `json:"node_to_children"`
	NodeToParent       map[string]int         `json:"node_to_parent"`
	RootIndex          int                    `json:"root_index"`
	MaxExpansions      int                    `json:"max_expansions"`
	MaxDepth           int                    `json:"max_depth"`
	MaxIterations      int                    `json:"max_iterations"`
	MaxFinishedNodes   *int                   `json:"max_finished_nodes,omitempty"`
	RewardThreshold    *float64               `json:"reward_threshold,omitempty"`
	MinFinishedNodes   *int                   `json:"min_finished_nodes,omitempty"`
	MaxSearchTry       *int                   `json:"max_search_try,omitempty"`
	Selector           *Selector              `json:"selector,omitempty"`
	Tools              []outline.ToolType     `json:"tools,omitempty"`
	RootDirectory      string                 `json:"root_directory"`
	RepoName           string                 `json:"repo_name"`
	RepoBaseCommitHash string                 `json:"repo_base_commit_hash"`
	LogDirectory       string                 `json:"log_directory"`
	AgentSettings      map[string]string      `json:"agent_settings,omitempty"`
}

func (t *SearchTree) MarshalJSON() ([]byte, error) {
	wire := searchTreeWire{
		IndexToNode:        make(map[string]*ActionNode, len(t.indexToNode)),
		NodeToChildren:     make(map[string][]int, len(t.nodeToChildren)),
		NodeToParent:       make(map[string]int, len(t.nodeToParent)),
		RootIndex:          t.RootIndex,
		MaxExpansions:      t.MaxExpansions,
		MaxDepth:           t.MaxDepth,
		MaxIterations:      t.MaxIterations,
		MaxFinishedNodes:   t.MaxFinishedNodes,
		RewardThreshold:    t.RewardThreshold,
		MinFinishedNodes:   t.MinFinishedNodes,
		MaxSearchTry:       t.MaxSearchTry,
		Selector:           t.Selector,
		Tools:              t.Tools,
		RootDirectory:      t.RootDirectory,
		RepoName:           t.RepoName,
		RepoBaseCommitHash: t.RepoBaseCommitHash,
		LogDirectory:       t.LogDirectory,
		AgentSettings:      t.AgentSettings,
	}
	for idx, node := range t.indexToNode {
		wire.IndexToNode[fmt.Sprintf("%d", idx)] = node
	}
	for idx, children := range t.nodeToChildren {
		wire.NodeToChildren[fmt.Sprintf("%d", idx)] = children
	}
	for idx, parent := range t.nodeToParent {
		wire.NodeToParent[fmt.Sprintf("%d", idx)] = parent
	}
	return json.Marshal(wire)
}

func (t *SearchTree) UnmarshalJSON(data []byte) error {
	var wire searchTreeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t.indexToNode = make(map[int]*ActionNode, len(wire.IndexToNode))
	t.nodeToChildren = make(map[int][]int, len(wire.NodeToChildren))
	t.nodeToParent = make(map[int]int, len(wire.NodeToParent))
	for key, node := range wire.IndexToNode {
		idx, err := parseIndexKey(key)
		if err != nil {
			return err
		}
		if !node.IsActiveOnTrajectory {
			// is_active_on_trajectory defaults to true when absent; a
			// round-tripped node that omitted the field decodes to the
			// zero value (false), so re-default it here (§4.E).
			node.IsActiveOnTrajectory = true
		}
		t.indexToNode[idx] = node
		if idx >= t.nextIndex {
			t.nextIndex = idx + 1
		}
	}
	for key, children := range wire.NodeToChildren {
		idx, err := parseIndexKey(key)
		if err != nil {
			return err
		}
		t.nodeToChildren[idx] = children
	}
	for key, parent := range wire.NodeToParent {
		idx, err := parseIndexKey(key)
		if err != nil {
			return err
		}
		t.nodeToParent[idx] = parent
	}
	t.RootIndex = wire.RootIndex
	t.MaxExpansions = wire.MaxExpansions
	t.MaxDepth = wire.MaxDepth
	t.MaxIterations = wire.MaxIterations
	t.MaxFinishedNodes = wire.MaxFinishedNodes
	t.RewardThreshold = wire.RewardThreshold
	t.MinFinishedNodes = wire.MinFinishedNodes
	t.MaxSearchTry = wire.MaxSearchTry
	t.Selector = wire.Selector
	t.Tools = wire.Tools
	t.RootDirectory = wire.RootDirectory
	t.RepoName = wire.RepoName
	t.RepoBaseCommitHash = wire.RepoBaseCommitHash
	t.LogDirectory = wire.LogDirectory
	t.AgentSettings = wire.AgentSettings
	return nil
}

func parseIndexKey(key string) (int, error) {
	var idx int
	if _, err := fmt.Sscanf(key, "%d", &idx); err != nil {
		return 0, fmt.Errorf("mcts: bad index key %q: %w", key, err)
	}
	return idx, nil
}
