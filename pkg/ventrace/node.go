package ventrace

// NodeType tags the four node variants of §3.
type NodeType uint8

const (
	// NodeConstant holds a value fixed at creation.
	NodeConstant NodeType = iota
	// NodeLookup references a binding in an environment.
	NodeLookup
	// NodeRequest is the request-PSP side of an application.
	NodeRequest
	// NodeOutput is the output-PSP side of an application.
	NodeOutput
)

func (t NodeType) String() string {
	switch t {
	case NodeConstant:
		return "constant"
	case NodeLookup:
		return "lookup"
	case NodeRequest:
		return "request"
	case NodeOutput:
		return "output"
	default:
		return "unknown"
	}
}

// EdgeType identifies why one node points at another; traversal code must
// switch on this, never on pointer identity alone (§4.C).
type EdgeType uint8

const (
	EdgeOperator EdgeType = iota
	EdgeOperand
	EdgeRequest
	EdgeLookup
	EdgeESR
)

// NodeID is a stable, monotonically assigned identifier. Ties in
// traversal order (scaffold border, brush) are broken by NodeID, never by
// map iteration or pointer value (§4.E, §5).
type NodeID uint64

// Node is a vertex of the trace graph (§3).
type Node struct {
	id       NodeID
	nodeType NodeType

	value *Value

	isActive      bool
	isConstrained bool
	// spOwnsValue records whether the owning SP must unincorporate this
	// node's value on teardown (false for references/lookups, true for
	// ordinary random or deterministic application outputs).
	spOwnsValue bool

	// Application wiring (Request and Output nodes).
	operatorNode *Node
	operandNodes []*Node
	// requestNode is the back-edge from an Output to its paired Request.
	requestNode *Node
	// outputNode is the forward edge from a Request to its paired
	// Output, so evalRequests can wire ESR edges straight to the
	// output while only holding the request node (§4.H "evalRequests").
	outputNode *Node
	// esrParents are the roots of ESR families this Output node pulled
	// in, in request order (invariant 3, §3).
	esrParents []*Node

	// env is the lexical environment the application/lookup was built in.
	env *Environment

	// sourceNode is set for Lookup nodes (the node being looked up) and
	// for ESR-reference Output nodes (the single esr-parent they defer
	// to, §4.D).
	sourceNode *Node

	// children are nodes that reference this node via any edge type.
	children map[*Node]struct{}

	// observedValue is set once Observe() records a pending observation
	// (§6); it is only consumed by MakeConsistent/constrain.
	observedValue  *Value
	hasObservation bool

	// pinned marks a node that must never be torn down by brush/family
	// teardown regardless of its live child count — set on builtins
	// bound directly into the global environment (§4.G, §9).
	pinned bool
}

func newNode(id NodeID, t NodeType, env *Environment) *Node {
	return &Node{
		id:       id,
		nodeType: t,
		env:      env,
		children: make(map[*Node]struct{}),
	}
}

// ID returns the node's stable identifier.
func (n *Node) ID() NodeID { return n.id }

// Type returns the node's variant.
func (n *Node) Type() NodeType { return n.nodeType }

// Env returns the lexical environment the node was created in. Compound
// (user-defined) SPs in pkg/psp use this to capture a closure environment
// at the point a lambda expression is evaluated (§4.B, §4.D).
func (n *Node) Env() *Environment { return n.env }

// Value returns the node's current value (invariant 5: non-nil iff active).
func (n *Node) Value() *Value { return n.value }

// SetValue installs a new value on the node.
func (n *Node) SetValue(v *Value) { n.value = v }

// IsActive reports whether the node is part of the live trace graph.
func (n *Node) IsActive() bool { return n.isActive }

// IsConstrained reports whether the node is a constrained random choice.
func (n *Node) IsConstrained() bool { return n.isConstrained }

// IsObservation reports whether Observe() has recorded a pending or
// already-applied observation on this node.
func (n *Node) IsObservation() bool { return n.hasObservation }

// IsReference reports whether this node merely forwards another node's
// value: a Lookup, or an ESR-reference Output.
func (n *Node) IsReference() bool {
	return n.nodeType == NodeLookup || n.sourceNode != nil
}

// OperatorNode returns the operator of a Request/Output application node.
func (n *Node) OperatorNode() *Node { return n.operatorNode }

// OperandNodes returns the ordered operands of a Request/Output
// application node.
func (n *Node) OperandNodes() []*Node { return n.operandNodes }

// ESRParents returns the roots of the ESR families an Output node has
// pulled in, in request order (§3 invariant 3).
func (n *Node) ESRParents() []*Node { return n.esrParents }

// addChild records that child references n via some edge.
func (n *Node) addChild(child *Node) {
	n.children[child] = struct{}{}
}

// removeChild undoes addChild.
func (n *Node) removeChild(child *Node) {
	delete(n.children, child)
}

// Children returns the set of nodes that reference n.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.children))
	for c := range n.children {
		out = append(out, c)
	}
	return out
}

// addApplicationEdges wires operator/operand/request/output edges for one
// application (§4.C). Called once, from evalFamily, before apply().
func addApplicationEdges(operator *Node, operands []*Node, request *Node, output *Node) {
	operator.addChild(request)
	operator.addChild(output)
	for _, o := range operands {
		o.addChild(request)
		o.addChild(output)
	}
	request.addChild(output)

	output.operatorNode = operator
	output.operandNodes = operands
	output.requestNode = request
	request.operatorNode = operator
	request.operandNodes = operands
	request.outputNode = output
}

// registerReference marks n as forwarding source's value (used by Lookup
// nodes and ESR-reference Output nodes, §4.D).
func (n *Node) registerReference(source *Node) {
	n.sourceNode = source
}
