package ventrace

import "math"

// Directive is the outcome of a top-level assume/predict/observe/forget
// call: the directive's id and the node it grew or tore down (§6, §4.I).
type Directive struct {
	ID   DirectiveID
	Node *Node
}

func (tr *Trace) nextDirective() DirectiveID {
	tr.nextDirectiveID++
	return DirectiveID(tr.nextDirectiveID)
}

// Assume evaluates exp against the global environment, binds its value to
// sym for subsequent expressions, and records a new directive (§6
// "assume", §4.I).
func (tr *Trace) Assume(sym string, exp *Value) (*Directive, error) {
	_, node, err := tr.evalFamily(exp, tr.globalEnv)
	if err != nil {
		tr.logger.Error("assume failed", map[string]interface{}{"symbol": sym, "error": err.Error()})
		return nil, err
	}
	tr.globalEnv.Bind(sym, node)
	id := tr.nextDirective()
	tr.families[id] = node
	tr.directiveOf[node] = id
	tr.directiveSym[id] = sym
	tr.logger.Debug("assume", map[string]interface{}{"directive": uint64(id), "symbol": sym})
	return &Directive{ID: id, Node: node}, nil
}

// Predict evaluates exp against the global environment and records a new
// directive without binding a symbol (§6 "predict").
func (tr *Trace) Predict(exp *Value) (*Directive, error) {
	_, node, err := tr.evalFamily(exp, tr.globalEnv)
	if err != nil {
		tr.logger.Error("predict failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	id := tr.nextDirective()
	tr.families[id] = node
	tr.directiveOf[node] = id
	tr.logger.Debug("predict", map[string]interface{}{"directive": uint64(id)})
	return &Directive{ID: id, Node: node}, nil
}

// Observe evaluates exp, then marks the resulting node with a pending
// observation of value; the constraint itself is only applied once
// MakeConsistent runs (§6 "observe", §4.I).
func (tr *Trace) Observe(exp *Value, value *Value) (*Directive, error) {
	_, node, err := tr.evalFamily(exp, tr.globalEnv)
	if err != nil {
		tr.logger.Error("observe failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	node.observedValue = value
	node.hasObservation = true
	tr.observedValues[node] = value
	tr.unpropagatedObservations[node] = true

	id := tr.nextDirective()
	tr.families[id] = node
	tr.directiveOf[node] = id
	tr.logger.Debug("observe", map[string]interface{}{"directive": uint64(id)})
	return &Directive{ID: id, Node: node}, nil
}

// Forget tears down the family a directive built, releasing every
// resource it held (§6 "forget", §4.G). A directive root has no
// downstream scaffold border of its own (nothing regenInternal'd it into
// existence), so there is no proposal to detach/regen here — it is a
// direct structural teardown, the same walk unevalFamily uses to collapse
// a brush family whose last reference just dropped. The directive id may
// not be reused.
func (tr *Trace) Forget(id DirectiveID) error {
	root, ok := tr.families[id]
	if !ok {
		return &AssertionViolation{Invariant: "forget: unknown directive id"}
	}

	if root.IsObservation() {
		delete(tr.observedValues, root)
		delete(tr.unpropagatedObservations, root)
	}

	if err := tr.unevalFamilyRoot(root); err != nil {
		return err
	}

	delete(tr.families, id)
	delete(tr.directiveOf, root)
	delete(tr.directiveSym, id)
	tr.logger.Debug("forget", map[string]interface{}{"directive": uint64(id)})
	return nil
}

// unevalFamilyRoot tears a directive's own root down the way unevalFamily
// tears down a brush family (§4.G "unevalFamily"). The db is a scratch
// store: a forgotten or frozen directive is never restored, so nothing
// reads it back.
func (tr *Trace) unevalFamilyRoot(root *Node) error {
	return tr.extractFamilySubtree(root, newScaffold(), NewDB())
}

// Freeze tears down a directive's family and turns its root node into a
// plain constant holding its current value, permanently removing it from
// further inference (§6 "freeze"). The root keeps its identity, so
// lookups that already reference it keep reading the frozen value. Typically used once a chain has converged on a value the
// caller wants to treat as fixed background state.
func (tr *Trace) Freeze(id DirectiveID) error {
	root, ok := tr.families[id]
	if !ok {
		return &AssertionViolation{Invariant: "freeze: unknown directive id"}
	}
	val := root.Value()

	if err := tr.unevalFamilyRoot(root); err != nil {
		return err
	}

	root.nodeType = NodeConstant
	root.operatorNode = nil
	root.operandNodes = nil
	root.requestNode = nil
	root.esrParents = nil
	root.sourceNode = nil
	root.SetValue(val)
	root.isActive = true
	tr.logger.Debug("freeze", map[string]interface{}{"directive": uint64(id)})
	return nil
}

// Report returns the current value of a directive's root node (§6
// "report").
func (tr *Trace) Report(id DirectiveID) (*Value, error) {
	root, ok := tr.families[id]
	if !ok {
		return nil, &AssertionViolation{Invariant: "report: unknown directive id"}
	}
	return root.Value(), nil
}

// MakeConsistent applies every pending observation recorded by Observe:
// for each, it builds a singleton scaffold around the observation node,
// detaches it, installs a DeterministicLKernel driving it to the observed
// value, regenerates, and constrains. A regen weight of -Inf means the
// observed value is impossible under the current state and is reported
// as ErrUnpropagatedObservation (§4.I "MakeConsistent", spec.md line 165).
func (tr *Trace) MakeConsistent() error {
	for node := range tr.unpropagatedObservations {
		if err := tr.applyObservation(node); err != nil {
			return err
		}
		delete(tr.unpropagatedObservations, node)
	}
	return nil
}

func (tr *Trace) applyObservation(node *Node) error {
	scaffold, err := tr.BuildScaffold([]map[*Node]bool{{node: true}}, false)
	if err != nil {
		return err
	}
	_, db, err := tr.Detach(scaffold)
	if err != nil {
		return err
	}
	scaffold.RegisterLKernel(node, &DeterministicLKernel{Value: node.observedValue})
	xi, err := tr.Regen(scaffold, false, db)
	if err != nil {
		return err
	}
	if math.IsInf(xi, -1) {
		tr.logger.Error("observation has zero probability under current state", map[string]interface{}{"node": uint64(node.ID())})
		return ErrUnpropagatedObservation
	}
	if _, err := tr.constrain(node, db); err != nil {
		return err
	}
	tr.logger.Debug("observation propagated", map[string]interface{}{"node": uint64(node.ID()), "xi": xi})
	return nil
}
