package ventrace

import "fmt"

// Regen is the symmetric inverse of Detach: it walks scaffold's border
// forward, re-simulating or restoring everything the matching detach
// removed, and returns the proposal's xi weight (§4.H).
func (tr *Trace) Regen(scaffold *Scaffold, shouldRestore bool, db *DB) (float64, error) {
	scaffold.resetForRegen()
	processedAAAMakers := make(map[*Node]bool)

	var w float64

	// A principal with no in-scaffold consumer of its own (fanIn zero)
	// would never be reached by regenParentsOf's cascade below; give it a
	// direct entry point too (see Scaffold.principals). regenInternal is
	// idempotent via its working counter, so calling it here for a
	// principal the border loop also reaches is harmless.
	for _, p := range scaffold.Principals() {
		w2, err := tr.regenInternal(p, scaffold, shouldRestore, db)
		w += w2
		if err != nil {
			return w, err
		}
	}

	for _, node := range scaffold.Border() {
		switch {
		case scaffold.IsAbsorbing(node):
			w2, err := tr.attachAbsorbing(node, scaffold, shouldRestore, db)
			w += w2
			if err != nil {
				return w, err
			}
		case scaffold.IsAAA(node):
			w2, err := tr.attachAAA(node, scaffold, shouldRestore, db, processedAAAMakers)
			w += w2
			if err != nil {
				return w, err
			}
		}
	}
	return w, nil
}

// regenInternal brings one DRG node back to life, recursing into its
// parents first. Counting (fan-in up from zero) ensures a node shared
// by multiple downstream references is only rebuilt once per regen pass
// (§4.H "regenInternal").
func (tr *Trace) regenInternal(node *Node, scaffold *Scaffold, shouldRestore bool, db *DB) (float64, error) {
	if node == nil || scaffold == nil || !scaffold.IsResampling(node) {
		return 0, nil
	}
	if scaffold.incCounter(node) != 1 {
		return 0, nil
	}

	w, err := tr.regenParentsOf(node, scaffold, shouldRestore, db)
	if err != nil {
		return w, err
	}

	if node.Type() == NodeLookup {
		node.SetValue(node.sourceNode.Value())
	} else {
		w2, err := tr.applyPSP(node, scaffold, shouldRestore, db)
		w += w2
		if err != nil {
			return w, err
		}
	}
	node.isActive = true
	return w, nil
}

func (tr *Trace) regenParentsOf(node *Node, scaffold *Scaffold, shouldRestore bool, db *DB) (float64, error) {
	var w float64
	for _, p := range tr.parentsOf(node) {
		w2, err := tr.regenInternal(p, scaffold, shouldRestore, db)
		w += w2
		if err != nil {
			return w, err
		}
	}
	return w, nil
}

// applyPSP (re)computes one node's value: a restore from db, a proposal
// through an installed LKernel, or a fresh draw from the node's PSP —
// then incorporates it and, for Request nodes, resolves the resulting
// ESRs/HSRs (§4.H "applyPSP").
func (tr *Trace) applyPSP(node *Node, scaffold *Scaffold, shouldRestore bool, db *DB) (float64, error) {
	if node.Type() == NodeConstant {
		if shouldRestore {
			if v, ok := db.Value(node); ok {
				node.SetValue(v)
			}
		}
		node.isActive = true
		return 0, nil
	}

	sp, rec := tr.spOf(node)
	if sp == nil {
		return 0, fmt.Errorf("applyPSP: node %d has no resolvable SP", node.ID())
	}
	psp := pickPSP(node, sp)
	args := tr.buildArgs(node, rec)

	if node.Type() == NodeOutput && psp.IsESRReference() {
		if len(node.esrParents) != 1 {
			return 0, fmt.Errorf("applyPSP: esr-reference output %d has %d esr-parents, want 1", node.ID(), len(node.esrParents))
		}
		src := node.esrParents[0]
		node.registerReference(src)
		node.SetValue(src.Value())
		node.isActive = true
		return 0, nil
	}

	var val *Value
	var w float64
	switch {
	case shouldRestore:
		v, ok := db.Value(node)
		if !ok {
			// This DRG member was never extracted during the matching
			// detach (its fan-in never dropped to zero there either,
			// e.g. it sits strictly between two border nodes that both
			// still reference it); its value never moved.
			v = node.Value()
		}
		val = v
		if rec != nil && rec.SP.HasHSRs {
			if hsrPSP, ok := psp.(HSRPSP); ok {
				if latentDB, ok2 := db.LatentDBFor(sp); ok2 {
					hsrPSP.RestoreAllLatents(rec.Aux, latentDB)
				}
			}
		}
	case scaffold != nil && scaffold.HasLKernel(node):
		lk := scaffold.LKernelFor(node)
		oldVal, _ := db.Value(node)
		nv, err := lk.Simulate(oldVal, args, nil, tr.rng)
		if err != nil {
			return 0, err
		}
		ww, err := lk.Weight(nv, oldVal, args, nil)
		if err != nil {
			return 0, err
		}
		val = nv
		w = ww
	default:
		nv, err := psp.Simulate(args, tr.rng)
		if err != nil {
			return 0, err
		}
		val = nv
	}

	node.SetValue(val)
	psp.Incorporate(val, args)

	if node.Type() == NodeOutput {
		node.spOwnsValue = true
		if isMadeSPValue(val, node) {
			if err := tr.processMadeSP(node, db); err != nil {
				return w, err
			}
		}
		if psp.IsRandom() && !node.IsConstrained() {
			tr.registerUnconstrainedChoice(node)
		}
	}

	if node.Type() == NodeRequest {
		if reqVal, err := val.AsRequest(); err == nil {
			rw, err := tr.evalRequests(node, reqVal, scaffold, shouldRestore, db)
			w += rw
			if err != nil {
				return w, err
			}
		}
	}

	return w, nil
}

func isMadeSPValue(val *Value, node *Node) bool {
	if val.Kind() == KindSPRecord {
		return true
	}
	if val.Kind() == KindSPRef {
		ref, err := val.AsSPRef()
		return err == nil && ref.MakerNode() == node
	}
	return false
}

func (tr *Trace) attachAbsorbing(node *Node, scaffold *Scaffold, shouldRestore bool, db *DB) (float64, error) {
	w, err := tr.regenParentsOf(node, scaffold, shouldRestore, db)
	if err != nil {
		return w, err
	}
	sp, rec := tr.spOf(node)
	psp := pickPSP(node, sp)
	args := tr.buildArgs(node, rec)
	ld, err := psp.LogDensity(node.Value(), args)
	if err != nil {
		return w, err
	}
	psp.Incorporate(node.Value(), args)
	w += ld
	return w, nil
}

func (tr *Trace) attachAAA(node *Node, scaffold *Scaffold, shouldRestore bool, db *DB, processed map[*Node]bool) (float64, error) {
	w, err := tr.regenParentsOf(node, scaffold, shouldRestore, db)
	if err != nil {
		return w, err
	}
	_, rec := tr.spOf(node)
	maker := rec.MakerNode()
	if processed[maker] {
		return w, nil
	}
	aaaPSP, ok := rec.SP.OutputPSP.(AAAPSP)
	if !ok {
		if rqAAA, ok2 := rec.SP.RequestPSP.(AAAPSP); ok2 {
			aaaPSP, ok = rqAAA, true
		}
	}
	if !ok {
		return w, ErrUnsupportedAAA
	}
	ld, err := aaaPSP.LogDensityOfCounts(rec.Aux)
	if err != nil {
		return w, err
	}
	w += ld
	processed[maker] = true
	return w, nil
}
