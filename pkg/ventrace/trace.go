package ventrace

import (
	"fmt"
	"sort"

	"go.uber.org/atomic"
)

// DirectiveID identifies one top-level assume/predict/observe directive
// (§6).
type DirectiveID uint64

// Trace is the live dataflow graph plus the bookkeeping an MCMC kernel
// needs to pick coherent proposals (§4.I). A Trace is single-threaded
// (§5): every method here must be called from one goroutine at a time.
// Independent Traces may be driven concurrently by independent owners
// (see pkg/chainrunner).
type Trace struct {
	globalEnv *Environment
	rng       *traceRNG
	logger    *Logger

	// nextNodeID hands out stable ids (§4.C, §5 tie-break rule). Atomic
	// because ids are read from scaffold construction, which may be
	// invoked while other bookkeeping reads are in flight even though
	// mutation itself is single-threaded (see DESIGN.md).
	nextNodeID atomic.Uint64

	unconstrainedChoices map[*Node]bool
	constrainedChoices   map[*Node]bool
	arbitraryErgodicKernels map[*Node]bool

	// scopes maps a canonical scope key to a canonical block key to the
	// set of unconstrained-choice nodes in that block (§3 "Scope/Block").
	scopes map[string]map[string]map[*Node]bool

	madeSPRecords map[*Node]*SPRecord
	numRequests   map[*Node]int
	esrRoots      map[*Node][]*Node

	observedValues          map[*Node]*Value
	unpropagatedObservations map[*Node]bool

	families map[DirectiveID]*Node
	// directiveOf is the inverse of families. Family teardown consults
	// it so that tearing down one family never tears down another
	// directive's root (extractFamilySubtree).
	directiveOf  map[*Node]DirectiveID
	directiveSym map[DirectiveID]string
	nextDirectiveID uint64
}

// TraceOption configures a new Trace.
type TraceOption func(*Trace)

// WithSeed seeds the trace's RNG deterministically instead of from the
// clock (§5 "RNG").
func WithSeed(seed int64) TraceOption {
	return func(tr *Trace) { tr.rng = newSeededRNG(seed) }
}

// WithLogger installs a structured logger (§SPEC_FULL.md AMBIENT STACK).
func WithLogger(l *Logger) TraceOption {
	return func(tr *Trace) {
		if l != nil {
			tr.logger = l
		}
	}
}

// NewTrace builds an empty trace with a fresh global environment.
func NewTrace(opts ...TraceOption) *Trace {
	tr := &Trace{
		globalEnv:                NewEnvironment(nil),
		rng:                      newTraceRNG(),
		logger:                   NewDisabledLogger(),
		unconstrainedChoices:     make(map[*Node]bool),
		constrainedChoices:       make(map[*Node]bool),
		arbitraryErgodicKernels:  make(map[*Node]bool),
		scopes:                   make(map[string]map[string]map[*Node]bool),
		madeSPRecords:            make(map[*Node]*SPRecord),
		numRequests:              make(map[*Node]int),
		esrRoots:                 make(map[*Node][]*Node),
		observedValues:           make(map[*Node]*Value),
		unpropagatedObservations: make(map[*Node]bool),
		families:                 make(map[DirectiveID]*Node),
		directiveOf:              make(map[*Node]DirectiveID),
		directiveSym:             make(map[DirectiveID]string),
	}
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}

// RNG returns the trace's single PRNG (§5).
func (tr *Trace) RNG() RNG { return tr.rng }

// GlobalEnv returns the top-level environment directives bind into.
func (tr *Trace) GlobalEnv() *Environment { return tr.globalEnv }

// Logger returns the trace's structured logger (never nil — defaults to a
// disabled one), so external collaborators (pkg/mcmc, pkg/chainrunner) can
// log accept/reject decisions and weights at the same Debug level the
// trace façade itself uses for directive execution (SPEC_FULL.md AMBIENT
// STACK).
func (tr *Trace) Logger() *Logger { return tr.logger }

// BindBuiltin registers a pre-existing SP under a global symbol, as a
// Constant node that is its own maker node (mirrors
// ConcreteTrace's constructor wiring builtin SPs, original_source
// concrete_trace.cxx).
func (tr *Trace) BindBuiltin(sym string, sp *SP) *Node {
	node := tr.newNode(NodeConstant, tr.globalEnv)
	rec := NewSPRecord(sp, nil)
	if sp.HasAux && sp.NewAux != nil {
		rec.Aux = sp.NewAux()
	}
	rec.makerNode = node
	tr.madeSPRecords[node] = rec
	node.SetValue(NewSPRefValue(NewSPRef(node)))
	node.isActive = true
	node.pinned = true
	tr.globalEnv.Bind(sym, node)
	return node
}

func (tr *Trace) newNode(t NodeType, env *Environment) *Node {
	id := NodeID(tr.nextNodeID.Inc())
	return newNode(id, t, env)
}

// --- registries (mirrors ConcreteTrace's register*/unregister* methods,
// original_source concrete_trace.cxx) ---

func (tr *Trace) registerAEKernel(node *Node) { tr.arbitraryErgodicKernels[node] = true }
func (tr *Trace) unregisterAEKernel(node *Node) { delete(tr.arbitraryErgodicKernels, node) }

const defaultScope = "default"

func scopeKey(scope *Value) string {
	if scope == nil {
		return defaultScope
	}
	if sym, err := scope.AsSymbol(); err == nil {
		return "sym:" + sym
	}
	return fmt.Sprintf("hash:%x", scope.Hash())
}

func blockKeyForNode(node *Node) string { return fmt.Sprintf("node:%d", node.ID()) }

// blockKey must agree with blockKeyForNode's raw "node:%d" strings, since
// SampleBlock hands a block picked from those literal keys back to callers
// wrapped as a symbol Value, which then round-trips through blockKey to
// reach Select/GetNodesInBlock: no "sym:" prefix here, unlike scopeKey,
// which never has to round-trip a synthetic key this way.
func blockKey(block *Value) string {
	if sym, err := block.AsSymbol(); err == nil {
		return sym
	}
	return fmt.Sprintf("hash:%x", block.Hash())
}

// registerUnconstrainedChoice adds node to the global unconstrained set
// and to its singleton block in the default scope (§3 "Scope/Block"
// invariant: default scope uses the node itself as block).
func (tr *Trace) registerUnconstrainedChoice(node *Node) {
	tr.unconstrainedChoices[node] = true
	tr.registerChoiceInScope(defaultScope, blockKeyForNode(node), node)
}

func (tr *Trace) registerChoiceInScope(scope, block string, node *Node) {
	blocks, ok := tr.scopes[scope]
	if !ok {
		blocks = make(map[string]map[*Node]bool)
		tr.scopes[scope] = blocks
	}
	set, ok := blocks[block]
	if !ok {
		set = make(map[*Node]bool)
		blocks[block] = set
	}
	set[node] = true
}

func (tr *Trace) unregisterUnconstrainedChoice(node *Node) {
	tr.unregisterChoiceInScope(defaultScope, blockKeyForNode(node), node)
	delete(tr.unconstrainedChoices, node)
}

func (tr *Trace) unregisterChoiceInScope(scope, block string, node *Node) {
	blocks, ok := tr.scopes[scope]
	if !ok {
		return
	}
	set, ok := blocks[block]
	if !ok {
		return
	}
	delete(set, node)
	if len(set) == 0 {
		delete(blocks, block)
	}
	if len(blocks) == 0 {
		delete(tr.scopes, scope)
	}
}

// registerConstrainedChoice moves node from unconstrained to constrained,
// failing with ErrDoubleConstrain if already constrained (§7).
func (tr *Trace) registerConstrainedChoice(node *Node) error {
	if tr.constrainedChoices[node] {
		return ErrDoubleConstrain
	}
	tr.constrainedChoices[node] = true
	tr.unregisterUnconstrainedChoice(node)
	return nil
}

func (tr *Trace) unregisterConstrainedChoice(node *Node) {
	delete(tr.constrainedChoices, node)
}

// addESREdge wires root -> output as an ESR edge and bumps numRequests
// (§4.C, §3 invariant 4).
func (tr *Trace) addESREdge(root, output *Node) {
	tr.numRequests[root]++
	root.addChild(output)
	output.esrParents = append(output.esrParents, root)
	tr.esrRoots[output] = append(tr.esrRoots[output], root)
}

func (tr *Trace) popLastESRParent(output *Node) *Node {
	roots := tr.esrRoots[output]
	root := roots[len(roots)-1]
	tr.esrRoots[output] = roots[:len(roots)-1]
	output.esrParents = output.esrParents[:len(output.esrParents)-1]
	root.removeChild(output)
	tr.numRequests[root]--
	return root
}

// processMadeSP converts a freshly-minted SP-record value into the
// trace's SPRef convention, or — when regenerating a restored maker
// node whose record already exists — reattaches its cloned aux from db
// (§4.H "processMadeSP", §9 "Cyclic ownership").
func (tr *Trace) processMadeSP(node *Node, db *DB) error {
	val := node.Value()

	if val.Kind() == KindSPRecord {
		rec, _ := val.AsSPRecord()
		rec.makerNode = node
		if rec.SP.HasAux && rec.SP.NewAux != nil && rec.Aux == nil {
			rec.Aux = rec.SP.NewAux()
		}
		if rec.SP.HasAEKernel {
			tr.registerAEKernel(node)
		}
		tr.madeSPRecords[node] = rec
		node.SetValue(NewSPRefValue(NewSPRef(node)))
		return nil
	}

	ref, err := val.AsSPRef()
	if err != nil || ref.MakerNode() != node {
		return nil
	}
	rec, ok := tr.madeSPRecords[node]
	if !ok {
		return fmt.Errorf("processMadeSP: missing record for restored maker node %d", node.ID())
	}
	if aux, ok2 := db.SPAuxClone(node); ok2 {
		rec.Aux = aux
	}
	if rec.SP.HasAEKernel {
		tr.registerAEKernel(node)
	}
	return nil
}

// AEInfer runs one arbitrary-ergodic transition for every maker node
// currently registered with an AE kernel (§4.D "AAA contract"). It is not
// part of detach/regen's accept/reject machinery: each call mutates the
// made SP's aux directly and unconditionally, the way a collapsed Gibbs
// update would. pkg/mcmc invokes this after every accepted MH step,
// whichever block that step targeted.
func (tr *Trace) AEInfer() error {
	for node := range tr.arbitraryErgodicKernels {
		rec, ok := tr.madeSPRecords[node]
		if !ok || rec.SP.AEInfer == nil {
			continue
		}
		if err := rec.SP.AEInfer(rec.Aux, tr.rng); err != nil {
			return err
		}
	}
	return nil
}

// GetMadeSP looks up the SPRecord made by makerNode.
func (tr *Trace) GetMadeSP(makerNode *Node) (*SPRecord, bool) {
	rec, ok := tr.madeSPRecords[makerNode]
	return rec, ok
}

// NumRequests returns the number of distinct Output nodes whose
// esrParents contains root (§3 invariant 4).
func (tr *Trace) NumRequests(root *Node) int { return tr.numRequests[root] }

// ScopeNames returns the set of scope keys with at least one block. Exposed
// for inspection/testing; kernels should use SampleBlock/GetNodesInBlock.
func (tr *Trace) ScopeNames() []string {
	out := make([]string, 0, len(tr.scopes))
	for k := range tr.scopes {
		out = append(out, k)
	}
	return out
}

// Blocks returns the number of blocks registered in scope.
func (tr *Trace) Blocks(scope *Value) int {
	return len(tr.scopes[scopeKey(scope)])
}

// SampleBlock picks a block uniformly at random within scope (§4.I).
func (tr *Trace) SampleBlock(scope *Value) (*Value, error) {
	blocks, ok := tr.scopes[scopeKey(scope)]
	if !ok || len(blocks) == 0 {
		return nil, fmt.Errorf("scope %v has no blocks", scope)
	}
	keys := make([]string, 0, len(blocks))
	for k := range blocks {
		keys = append(keys, k)
	}
	// Deterministic order before the random pick, so the RNG draw is the
	// only source of nondeterminism (§5) — map iteration order must never
	// leak into which block gets picked for a given RNG stream.
	sort.Strings(keys)
	idx := tr.rng.Intn(len(keys))
	return NewSymbol(keys[idx]), nil
}

// Select returns the set of nodes directly registered to (scope, block).
func (tr *Trace) Select(scope, block *Value) map[*Node]bool {
	blocks, ok := tr.scopes[scopeKey(scope)]
	if !ok {
		return nil
	}
	return blocks[blockKey(block)]
}

// GetNodesInBlock returns the transitive closure of (scope, block)'s
// directly-registered nodes across ESR edges (§4.I). Scope/block
// include/exclude annotations on intermediate applications are not
// consulted: the closure follows ESR edges only, and no other package
// supplies such annotations.
func (tr *Trace) GetNodesInBlock(scope, block *Value) map[*Node]bool {
	roots := tr.Select(scope, block)
	out := make(map[*Node]bool, len(roots))
	var visit func(n *Node)
	visit = func(n *Node) {
		if out[n] {
			return
		}
		out[n] = true
		for _, esrRoot := range tr.esrRoots[n] {
			visit(esrRoot)
		}
	}
	for n := range roots {
		visit(n)
	}
	return out
}
