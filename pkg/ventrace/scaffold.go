package ventrace

import "sort"

// Scaffold is the plan for a single MCMC proposal: which nodes resample
// (the DRG), which absorb, which are AAA, and which form the brush
// (§3, §4.E).
type Scaffold struct {
	// drg is the downstream random graph: nodes slated for resampling.
	drg map[*Node]bool

	// fanIn is, for each DRG node, the number of in-scaffold children
	// that will eventually call regenInternal on it — computed once at
	// build time. counters is the working counter detach decrements
	// from fanIn down to zero and regen increments from zero back up to
	// fanIn; it is reset between the two passes of one round trip
	// (§4.G, §4.H "regenCount transitions").
	fanIn    map[*Node]int
	counters map[*Node]int

	absorbing map[*Node]bool
	aaa       map[*Node]bool
	brush     map[*Node]bool

	// aaaMakers is the set of SP-maker nodes that own at least one aaa
	// child in this scaffold (§4.D "AAA contract").
	aaaMakers map[*Node]bool

	// principals is the original set of nodes the proposal was built
	// around. A principal with no in-scaffold consumer of its own (e.g. an
	// isolated predict with nothing downstream) has fanIn zero and would
	// never be reached by the border-driven extractParents/regenParentsOf
	// cascade alone, so Detach/Regen give every principal an explicit
	// entry point in addition to walking the border (§4.E, §4.G, §4.H).
	principals map[*Node]bool

	// border holds the absorbing and AAA nodes in a fixed, stable
	// topological order so detach and regen process them identically
	// (§4.E "Border", §5 "Ordering").
	border []*Node

	lkernels map[*Node]LKernel

	hasAAANodes bool
}

func newScaffold() *Scaffold {
	return &Scaffold{
		drg:       make(map[*Node]bool),
		fanIn:     make(map[*Node]int),
		counters:  make(map[*Node]int),
		absorbing: make(map[*Node]bool),
		aaa:       make(map[*Node]bool),
		brush:     make(map[*Node]bool),
		aaaMakers:  make(map[*Node]bool),
		lkernels:   make(map[*Node]LKernel),
		principals: make(map[*Node]bool),
	}
}

// Principals returns the nodes the scaffold was built around, in a fixed
// order (§4.E, §5 "Ordering").
func (s *Scaffold) Principals() []*Node {
	out := make([]*Node, 0, len(s.principals))
	for n := range s.principals {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// IsResampling reports whether node is in the DRG.
func (s *Scaffold) IsResampling(node *Node) bool { return s.drg[node] }

// resetForDetach primes the working counters to each DRG node's total
// fan-in, so extractParents can count down to zero.
func (s *Scaffold) resetForDetach() {
	for n, f := range s.fanIn {
		s.counters[n] = f
	}
}

// resetForRegen zeroes the working counters so regenInternal can count
// up from zero on the first reference.
func (s *Scaffold) resetForRegen() {
	for n := range s.fanIn {
		s.counters[n] = 0
	}
}

func (s *Scaffold) decCounter(n *Node) int {
	s.counters[n]--
	return s.counters[n]
}

func (s *Scaffold) incCounter(n *Node) int {
	s.counters[n]++
	return s.counters[n]
}

// IsAbsorbing reports whether node is on the absorbing border.
func (s *Scaffold) IsAbsorbing(node *Node) bool { return s.absorbing[node] }

// IsAAA reports whether node is an application tagged AAA (its maker is
// recorded separately in aaaMakers).
func (s *Scaffold) IsAAA(node *Node) bool { return s.aaa[node] }

// IsBrush reports whether node was structurally torn down because its
// owning family's request count hit zero during detach (§4.E, §4.G).
func (s *Scaffold) IsBrush(node *Node) bool { return s.brush[node] }

func (s *Scaffold) markBrush(node *Node) { s.brush[node] = true }

// Border returns the fixed traversal order detach (reverse) and regen
// (forward) both use (§4.G, §4.H, §5).
func (s *Scaffold) Border() []*Node { return s.border }

// HasLKernel reports whether an override kernel is installed for node.
func (s *Scaffold) HasLKernel(node *Node) bool {
	_, ok := s.lkernels[node]
	return ok
}

// LKernelFor retrieves the override kernel installed for node.
func (s *Scaffold) LKernelFor(node *Node) LKernel { return s.lkernels[node] }

// RegisterLKernel installs an override kernel for node (used by
// Trace.MakeConsistent to install a DeterministicLKernel, §4.I).
func (s *Scaffold) RegisterLKernel(node *Node, k LKernel) { s.lkernels[node] = k }

// spOf dereferences an application node's operator to the SP it invokes,
// via the operator's SPRef value and the trace's maker registry (§3
// "SPRecord", "Other nodes reference this record via an SPRef value").
func (tr *Trace) spOf(appNode *Node) (*SP, *SPRecord) {
	opVal := appNode.operatorNode.Value()
	if opVal == nil {
		return nil, nil
	}
	ref, err := opVal.AsSPRef()
	if err != nil {
		return nil, nil
	}
	rec, ok := tr.madeSPRecords[ref.MakerNode()]
	if !ok {
		return nil, nil
	}
	return rec.SP, rec
}

// BuildScaffold computes the scaffold for a proposal over the given sets
// of principal nodes (§4.E). useDeltaKernels is accepted for interface
// symmetry with the kernel layer and is otherwise ignored: the scaffold
// does not record it, and the core never chooses delta kernels itself.
// Kernels install override kernels with RegisterLKernel after the
// scaffold is built.
func (tr *Trace) BuildScaffold(setsOfPNodes []map[*Node]bool, useDeltaKernels bool) (*Scaffold, error) {
	s := newScaffold()
	type queueItem struct{ node *Node }
	var queue []queueItem

	for _, set := range setsOfPNodes {
		for n := range set {
			s.principals[n] = true
			if !s.drg[n] {
				s.drg[n] = true
				queue = append(queue, queueItem{n})
			}
		}
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		node := item.node

		for _, child := range node.Children() {
			if s.IsResampling(child) || s.absorbing[child] || s.aaa[child] {
				continue
			}

			if child.Type() == NodeLookup {
				s.drg[child] = true
				queue = append(queue, queueItem{child})
				continue
			}

			if tr.isAAAApplication(node, child) {
				s.aaa[child] = true
				s.aaaMakers[node] = true
				s.hasAAANodes = true
				s.border = append(s.border, child)
				continue
			}

			if tr.canAbsorbProposal(child, node) {
				s.absorbing[child] = true
				s.border = append(s.border, child)
				continue
			}

			s.drg[child] = true
			queue = append(queue, queueItem{child})
		}
	}

	// fan-in: how many in-scaffold nodes reference each DRG node as a
	// parent. Computed as a post-pass over the finished classification
	// rather than incrementally, since a node's full child set is only
	// known once BFS has finished discovering all of it.
	for n := range s.drg {
		for child := range n.children {
			if s.drg[child] || s.absorbing[child] || s.aaa[child] {
				s.fanIn[n]++
			}
		}
	}

	sort.Slice(s.border, func(i, j int) bool { return s.border[i].ID() < s.border[j].ID() })
	return s, nil
}

// isAAAApplication reports whether child is an application whose operator
// is parent, parent is (already) in the DRG as an SP-maker output, and
// the made SP declares an AE kernel (§4.E step 3).
func (tr *Trace) isAAAApplication(parent, child *Node) bool {
	if child.Type() != NodeOutput && child.Type() != NodeRequest {
		return false
	}
	if child.operatorNode != parent {
		return false
	}
	rec, ok := tr.madeSPRecords[parent]
	if !ok {
		return false
	}
	return rec.SP.HasAEKernel
}

// canAbsorbProposal reports whether child can absorb a proposal flowing
// in from parent without being resampled (§4.E step 2).
func (tr *Trace) canAbsorbProposal(child, parent *Node) bool {
	switch child.Type() {
	case NodeConstant:
		return true
	case NodeRequest:
		sp, _ := tr.spOf(child)
		if sp == nil {
			return true
		}
		return sp.RequestPSP.CanAbsorb(tr, child, parent)
	case NodeOutput:
		sp, _ := tr.spOf(child)
		if sp == nil {
			return true
		}
		return sp.OutputPSP.CanAbsorb(tr, child, parent)
	default:
		return true
	}
}
