package ventrace

import "fmt"

// evalFamily recursively constructs a trace subgraph from exp, the way
// evaluating a small Lisp would (§4.H "evalFamily"). exp is either a
// self-evaluating datum, a symbol (resolved against env), or an Array
// value representing an application (§6 "Expression grammar"). The
// special form (quote X), spelled as a two-element array whose first
// slot is the symbol "quote", returns X verbatim without evaluating it.
func (tr *Trace) evalFamily(exp *Value, env *Environment) (float64, *Node, error) {
	if exp.Kind() == KindArray {
		elems, _ := exp.AsArray()
		if len(elems) == 0 {
			return 0, nil, fmt.Errorf("evalFamily: empty application")
		}
		if len(elems) == 2 {
			if sym, err := elems[0].AsSymbol(); err == nil && sym == "quote" {
				node := tr.newNode(NodeConstant, env)
				node.SetValue(elems[1])
				node.isActive = true
				return 0, node, nil
			}
		}

		var w float64
		ow, operatorNode, err := tr.evalFamily(elems[0], env)
		w += ow
		if err != nil {
			return w, nil, err
		}
		operandNodes := make([]*Node, len(elems)-1)
		for i, oe := range elems[1:] {
			oew, on, err := tr.evalFamily(oe, env)
			w += oew
			if err != nil {
				return w, nil, err
			}
			operandNodes[i] = on
		}

		request := tr.newNode(NodeRequest, env)
		output := tr.newNode(NodeOutput, env)
		addApplicationEdges(operatorNode, operandNodes, request, output)

		aw, err := tr.apply(request, output, nil, false, nil)
		w += aw
		return w, output, err
	}

	if exp.Kind() == KindSymbol {
		sym, _ := exp.AsSymbol()
		source, err := env.FindSymbol(sym)
		if err != nil {
			return 0, nil, err
		}
		node := tr.newNode(NodeLookup, env)
		node.registerReference(source)
		node.SetValue(source.Value())
		node.isActive = true
		source.addChild(node)
		return 0, node, nil
	}

	node := tr.newNode(NodeConstant, env)
	node.SetValue(exp)
	node.isActive = true
	return 0, node, nil
}

// apply builds or regenerates one application: its request PSP, any ESR
// sub-traces the request asks for, then its output PSP (§4.H "apply").
// scaffold/db are nil for a plain fresh build (called from evalFamily
// directly) and non-nil when invoked from within a regen pass.
func (tr *Trace) apply(request, output *Node, scaffold *Scaffold, shouldRestore bool, db *DB) (float64, error) {
	w, err := tr.applyPSP(request, scaffold, shouldRestore, db)
	if err != nil {
		return w, err
	}
	for _, root := range output.esrParents {
		w2, err := tr.regenInternal(root, scaffold, shouldRestore, db)
		w += w2
		if err != nil {
			return w, err
		}
	}
	w2, err := tr.applyPSP(output, scaffold, shouldRestore, db)
	w += w2
	return w, err
}

// parentsOf returns the nodes node depends on for its own value — the
// edges a fan-in count or a teardown walk must follow. ESR edges are
// deliberately excluded: an esr-root's lifetime is governed by its own
// reference count (numRequests), tracked and torn down separately via
// unevalRequests/unevalFamily, not by scaffold fan-in (§4.C, §4.G).
func (tr *Trace) parentsOf(node *Node) []*Node {
	switch node.Type() {
	case NodeLookup:
		if node.sourceNode != nil {
			return []*Node{node.sourceNode}
		}
		return nil
	case NodeRequest:
		out := make([]*Node, 0, 1+len(node.operandNodes))
		if node.operatorNode != nil {
			out = append(out, node.operatorNode)
		}
		out = append(out, node.operandNodes...)
		return out
	case NodeOutput:
		out := make([]*Node, 0, 2+len(node.operandNodes))
		if node.operatorNode != nil {
			out = append(out, node.operatorNode)
		}
		out = append(out, node.operandNodes...)
		if node.requestNode != nil {
			out = append(out, node.requestNode)
		}
		return out
	default:
		return nil
	}
}

// buildArgs assembles the ephemeral view a PSP call needs (§4.D "Args").
func (tr *Trace) buildArgs(node *Node, rec *SPRecord) *Args {
	opVals := make([]*Value, len(node.operandNodes))
	for i, o := range node.operandNodes {
		opVals[i] = o.Value()
	}
	var aux SPAux
	if rec != nil {
		aux = rec.Aux
	}
	return &Args{Node: node, OperandValues: opVals, Aux: aux}
}

func pickPSP(node *Node, sp *SP) PSP {
	if node.Type() == NodeRequest {
		return sp.RequestPSP
	}
	return sp.OutputPSP
}

// evalRequests resolves every ESR and HSR a request PSP produced: ESRs
// sharing an already-registered family id are simply reattached; new
// ones are either restored from db (shouldRestore) or built fresh via
// evalFamily (§4.H "evalRequests").
func (tr *Trace) evalRequests(requestNode *Node, reqVal *Request, scaffold *Scaffold, shouldRestore bool, db *DB) (float64, error) {
	output := requestNode.outputNode
	_, rec := tr.spOf(requestNode)
	if rec == nil {
		return 0, fmt.Errorf("evalRequests: request node %d has no owning SP record", requestNode.ID())
	}

	var w float64
	for _, esr := range reqVal.ESRs {
		if existingRoot, ok := rec.FindFamily(esr.ID); ok {
			tr.addESREdge(existingRoot, output)
			continue
		}
		if shouldRestore {
			maker := rec.MakerNode()
			savedRoot, ok := db.FamilyRoot(maker, esr.ID)
			if !ok {
				return w, fmt.Errorf("evalRequests: missing saved family root for id %d", esr.ID)
			}
			if _, err := tr.restoreFamily(savedRoot, db); err != nil {
				return w, err
			}
			rec.RegisterFamily(esr.ID, savedRoot)
			tr.addESREdge(savedRoot, output)
			continue
		}
		fw, root, err := tr.evalFamily(esr.Exp, esr.Env)
		w += fw
		if err != nil {
			return w, err
		}
		rec.RegisterFamily(esr.ID, root)
		tr.addESREdge(root, output)
	}

	if rec.SP.HasHSRs {
		for _, hsr := range reqVal.HSRs {
			lw, err := tr.simulateLatents(rec, hsr, shouldRestore, db)
			w += lw
			if err != nil {
				return w, err
			}
		}
	}
	return w, nil
}

func (tr *Trace) simulateLatents(rec *SPRecord, hsr HSR, shouldRestore bool, db *DB) (float64, error) {
	hp, ok := rec.SP.OutputPSP.(HSRPSP)
	if !ok {
		return 0, nil
	}
	latentDB, ok := db.LatentDBFor(rec.SP)
	if !ok {
		latentDB = NewLatentDB()
		db.SaveLatentDB(rec.SP, latentDB)
	}
	return hp.SimulateLatents(rec.Aux, hsr, shouldRestore, latentDB, tr.rng)
}

// restoreFamily reactivates a previously torn-down family from db
// without recomputing any weight — the distilled spec follows the
// original source here, where a pure restore returns 0 and correctness
// relies on detach/regen always being called as a matched pair
// (SPEC_FULL.md "OPEN QUESTIONS" decision, spec.md §9).
func (tr *Trace) restoreFamily(root *Node, db *DB) (*Node, error) {
	switch root.Type() {
	case NodeConstant:
		v, ok := db.Value(root)
		if !ok {
			return nil, fmt.Errorf("restoreFamily: missing value for constant node %d", root.ID())
		}
		root.SetValue(v)
		root.isActive = true
		return root, nil

	case NodeLookup:
		root.SetValue(root.sourceNode.Value())
		root.sourceNode.addChild(root)
		root.isActive = true
		return root, nil

	case NodeRequest:
		if _, err := tr.restoreFamily(root.operatorNode, db); err != nil {
			return nil, err
		}
		for _, o := range root.operandNodes {
			if _, err := tr.restoreFamily(o, db); err != nil {
				return nil, err
			}
		}
		v, ok := db.Value(root)
		if !ok {
			return nil, fmt.Errorf("restoreFamily: missing value for request node %d", root.ID())
		}
		root.SetValue(v)
		_, rec := tr.spOf(root)
		args := tr.buildArgs(root, rec)
		rec.SP.RequestPSP.Incorporate(v, args)
		root.isActive = true
		if reqVal, err := v.AsRequest(); err == nil {
			if err := tr.restoreRequests(root, reqVal, db); err != nil {
				return nil, err
			}
		}
		return root, nil

	case NodeOutput:
		if _, err := tr.restoreFamily(root.operatorNode, db); err != nil {
			return nil, err
		}
		for _, o := range root.operandNodes {
			if _, err := tr.restoreFamily(o, db); err != nil {
				return nil, err
			}
		}
		if _, err := tr.restoreFamily(root.requestNode, db); err != nil {
			return nil, err
		}
		v, ok := db.Value(root)
		if !ok {
			return nil, fmt.Errorf("restoreFamily: missing value for output node %d", root.ID())
		}
		root.SetValue(v)
		_, rec := tr.spOf(root)
		args := tr.buildArgs(root, rec)
		if rec.SP.OutputPSP.IsESRReference() && len(root.esrParents) == 1 {
			root.registerReference(root.esrParents[0])
		} else {
			rec.SP.OutputPSP.Incorporate(v, args)
			if rec.SP.OutputPSP.IsRandom() && !root.IsConstrained() {
				tr.registerUnconstrainedChoice(root)
			}
		}
		root.isActive = true
		if ref, err := v.AsSPRef(); err == nil && ref.MakerNode() == root {
			if err := tr.processMadeSP(root, db); err != nil {
				return nil, err
			}
		}
		return root, nil

	default:
		return nil, fmt.Errorf("restoreFamily: unexpected node type %s", root.Type())
	}
}

// restoreRequests is restoreFamily's analogue of evalRequests: every ESR
// is resolved purely from db, recursively.
func (tr *Trace) restoreRequests(requestNode *Node, reqVal *Request, db *DB) error {
	output := requestNode.outputNode
	_, rec := tr.spOf(requestNode)
	for _, esr := range reqVal.ESRs {
		if existingRoot, ok := rec.FindFamily(esr.ID); ok {
			tr.addESREdge(existingRoot, output)
			continue
		}
		maker := rec.MakerNode()
		savedRoot, ok := db.FamilyRoot(maker, esr.ID)
		if !ok {
			return fmt.Errorf("restoreRequests: missing saved family root for id %d", esr.ID)
		}
		if _, err := tr.restoreFamily(savedRoot, db); err != nil {
			return err
		}
		rec.RegisterFamily(esr.ID, savedRoot)
		tr.addESREdge(savedRoot, output)
	}
	return nil
}

// constrain dereferences node through any reference chain to the
// underlying random choice, then forces it to the observed value,
// returning the log density of that value under the (already
// unincorporated) current state (§4.H "Constrain").
func (tr *Trace) constrain(node *Node, db *DB) (float64, error) {
	target := node
	for target.IsReference() {
		if target.sourceNode == nil {
			break
		}
		target = target.sourceNode
	}
	sp, rec := tr.spOf(target)
	if sp == nil || !sp.OutputPSP.IsRandom() {
		return 0, &ObservationError{NodeID: uint64(target.ID()), Reason: "target is not a random choice"}
	}
	if !sp.OutputPSP.CanAbsorb(tr, target, nil) {
		return 0, &ObservationError{NodeID: uint64(target.ID()), Reason: "target cannot absorb a constraint"}
	}
	args := tr.buildArgs(target, rec)
	sp.OutputPSP.Unincorporate(target.Value(), args)
	observed := node.observedValue
	ld, err := sp.OutputPSP.LogDensity(observed, args)
	if err != nil {
		return 0, err
	}
	target.SetValue(observed)
	target.isConstrained = true
	sp.OutputPSP.Incorporate(observed, args)
	if err := tr.registerConstrainedChoice(target); err != nil {
		return ld, err
	}
	target.hasObservation = true
	return ld, nil
}
