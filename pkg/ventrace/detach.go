package ventrace

// Detach tears down scaffold's border in reverse order, unwinding every
// DRG node it uniquely supports back into db, and returns the
// proposal's rho weight — the inverse of Regen (§4.G).
func (tr *Trace) Detach(scaffold *Scaffold) (float64, *DB, error) {
	db := NewDB()
	scaffold.resetForDetach()
	processedAAAMakers := make(map[*Node]bool)

	border := scaffold.Border()
	var w float64
	for i := len(border) - 1; i >= 0; i-- {
		node := border[i]
		switch {
		case scaffold.IsAbsorbing(node):
			w2, err := tr.unabsorb(node, scaffold, db)
			w += w2
			if err != nil {
				return w, db, err
			}
		case scaffold.IsAAA(node):
			w2, err := tr.detachAAA(node, scaffold, db, processedAAAMakers)
			w += w2
			if err != nil {
				return w, db, err
			}
		}
	}

	// A principal with no in-scaffold consumer (fanIn zero) is never
	// reached by extractParents' cascade above; give it a direct entry
	// point too (see Scaffold.principals).
	for _, p := range scaffold.Principals() {
		if !p.isActive {
			continue
		}
		w2, err := tr.extract(p, scaffold, db)
		w += w2
		if err != nil {
			return w, db, err
		}
	}
	return w, db, nil
}

// unabsorb releases an absorbing border node without removing its
// value: unincorporate, record the log density the current state
// implies, then release its parents' fan-in (§4.G "unabsorb").
func (tr *Trace) unabsorb(node *Node, scaffold *Scaffold, db *DB) (float64, error) {
	sp, rec := tr.spOf(node)
	psp := pickPSP(node, sp)
	args := tr.buildArgs(node, rec)
	psp.Unincorporate(node.Value(), args)
	ld, err := psp.LogDensity(node.Value(), args)
	if err != nil {
		return 0, err
	}
	w := ld
	w2, err := tr.extractParents(node, scaffold, db)
	w += w2
	return w, err
}

// detachAAA releases an AAA border node. The collapsed weight is
// charged once per maker, against the aux as it stood before any of its
// AAA children were touched this proposal, matching the clone Regen
// reads back via db.SPAuxClone on the rollback path.
func (tr *Trace) detachAAA(node *Node, scaffold *Scaffold, db *DB, processed map[*Node]bool) (float64, error) {
	sp, rec := tr.spOf(node)
	maker := rec.MakerNode()
	var w float64
	if !processed[maker] {
		aaaPSP, ok := sp.OutputPSP.(AAAPSP)
		if !ok {
			if rqAAA, ok2 := sp.RequestPSP.(AAAPSP); ok2 {
				aaaPSP, ok = rqAAA, true
			}
		}
		if !ok {
			return 0, ErrUnsupportedAAA
		}
		ld, err := aaaPSP.LogDensityOfCounts(rec.Aux)
		if err != nil {
			return 0, err
		}
		w += ld
		processed[maker] = true
	}
	w2, err := tr.extractParents(node, scaffold, db)
	w += w2
	return w, err
}

// extractParents decrements the fan-in counter of node's parents,
// extracting each the moment its last in-scaffold reference releases it
// (§4.G "extractParents").
func (tr *Trace) extractParents(node *Node, scaffold *Scaffold, db *DB) (float64, error) {
	var w float64
	for _, p := range tr.parentsOf(node) {
		if !scaffold.IsResampling(p) {
			continue
		}
		if scaffold.decCounter(p) == 0 {
			w2, err := tr.extract(p, scaffold, db)
			w += w2
			if err != nil {
				return w, err
			}
		}
	}
	return w, nil
}

// extract fully tears down a DRG-internal node: unincorporate (or
// unconstrain) its value, save it into db, clone and deregister its
// SPAux if it made one, unwind any requests it issued, then recurse
// into its own parents (§4.G "extract").
func (tr *Trace) extract(node *Node, scaffold *Scaffold, db *DB) (float64, error) {
	old := node.Value()
	var w float64

	if node.IsConstrained() {
		sp, rec := tr.spOf(node)
		psp := pickPSP(node, sp)
		args := tr.buildArgs(node, rec)
		psp.Unincorporate(old, args)
		node.isConstrained = false
		tr.unregisterConstrainedChoice(node)
	} else if node.Type() == NodeRequest || node.Type() == NodeOutput {
		sp, rec := tr.spOf(node)
		psp := pickPSP(node, sp)
		args := tr.buildArgs(node, rec)
		psp.Unincorporate(old, args)
		if node.Type() == NodeOutput && psp.IsRandom() {
			tr.unregisterUnconstrainedChoice(node)
		}
		if node.Type() == NodeRequest && rec != nil && rec.SP.HasHSRs {
			w += tr.detachLatentsForRequest(rec, old, db)
		}
	}

	db.SaveValue(node, old)

	if old != nil {
		if ref, err := old.AsSPRef(); err == nil && ref.MakerNode() == node {
			tr.teardownMadeSP(node, db)
		}
	}

	if node.Type() == NodeOutput {
		if err := tr.unevalRequests(node, scaffold, db); err != nil {
			return w, err
		}
	}

	node.isActive = false
	node.SetValue(nil)

	w2, err := tr.extractParents(node, scaffold, db)
	w += w2
	return w, err
}

// detachLatentsForRequest saves per-HSR latent state into db before a
// request node holding those HSRs is torn down, the detach-side
// counterpart of evalRequests' simulateLatents (§4.D "Optional HSR
// hooks", §4.F "SP instance (for latentDBs)"). Contributes to rho the
// same way DetachLatents' regen counterpart SimulateLatents contributes
// to xi.
func (tr *Trace) detachLatentsForRequest(rec *SPRecord, val *Value, db *DB) float64 {
	hp, ok := rec.SP.OutputPSP.(HSRPSP)
	if !ok {
		return 0
	}
	reqVal, err := val.AsRequest()
	if err != nil || len(reqVal.HSRs) == 0 {
		return 0
	}
	latentDB, ok := db.LatentDBFor(rec.SP)
	if !ok {
		latentDB = NewLatentDB()
		db.SaveLatentDB(rec.SP, latentDB)
	}
	var w float64
	for _, hsr := range reqVal.HSRs {
		w += hp.DetachLatents(rec.Aux, hsr, latentDB)
	}
	return w
}

func (tr *Trace) teardownMadeSP(node *Node, db *DB) {
	rec, ok := tr.madeSPRecords[node]
	if !ok {
		return
	}
	if rec.Aux != nil {
		db.SaveSPAuxClone(node, rec.Aux.Clone())
	}
	if rec.SP.HasAEKernel {
		tr.unregisterAEKernel(node)
	}
}

// unevalRequests releases every ESR edge an Output node holds; once a
// family's last reference is gone, the family itself is unevaluated
// (§4.G "unevalRequests", §3 "numRequests").
func (tr *Trace) unevalRequests(outputNode *Node, scaffold *Scaffold, db *DB) error {
	_, rec := tr.spOf(outputNode)
	for len(outputNode.esrParents) > 0 {
		root := tr.popLastESRParent(outputNode)
		if tr.numRequests[root] == 0 {
			if err := tr.unevalFamily(root, rec, scaffold, db); err != nil {
				return err
			}
		}
	}
	return nil
}

// unevalFamily tears down a whole SP-owned sub-trace because nothing
// references it anymore, saving its root into db so a matching restore
// can bring it back byte-for-byte (§4.E "brush", §4.G "unevalFamily").
func (tr *Trace) unevalFamily(root *Node, rec *SPRecord, scaffold *Scaffold, db *DB) error {
	if rec != nil {
		if id, ok := rec.FamilyIDFor(root); ok {
			db.SaveFamilyRoot(rec.MakerNode(), id, root)
			rec.ForgetFamily(id)
		}
	}
	return tr.extractFamilySubtree(root, scaffold, db)
}

// extractFamilySubtree recursively tears down a brush family. Unlike
// extract, it is not gated by scaffold fan-in (this subtree sits
// entirely outside the current DRG) — instead a parent is only
// recursed into once its own live child set is empty. Pinned builtins
// are never touched, and another directive's root (a global binding made
// by Assume) only loses the child edge; it is never torn down here.
func (tr *Trace) extractFamilySubtree(node *Node, scaffold *Scaffold, db *DB) error {
	if node == nil || !node.isActive {
		return nil
	}
	scaffold.markBrush(node)

	switch node.Type() {
	case NodeConstant:
		db.SaveValue(node, node.Value())

	case NodeLookup:
		if node.sourceNode != nil {
			node.sourceNode.removeChild(node)
		}

	case NodeRequest:
		sp, rec := tr.spOf(node)
		args := tr.buildArgs(node, rec)
		sp.RequestPSP.Unincorporate(node.Value(), args)
		db.SaveValue(node, node.Value())

	case NodeOutput:
		old := node.Value()
		sp, rec := tr.spOf(node)
		args := tr.buildArgs(node, rec)
		sp.OutputPSP.Unincorporate(old, args)
		if node.IsConstrained() {
			node.isConstrained = false
			tr.unregisterConstrainedChoice(node)
		} else if sp.OutputPSP.IsRandom() {
			tr.unregisterUnconstrainedChoice(node)
		}
		db.SaveValue(node, old)
		if ref, err := old.AsSPRef(); err == nil && ref.MakerNode() == node {
			tr.teardownMadeSP(node, db)
		}
		if err := tr.unevalRequests(node, scaffold, db); err != nil {
			return err
		}
	}

	node.isActive = false
	node.SetValue(nil)

	for _, p := range tr.parentsOf(node) {
		if p == nil || p.pinned {
			continue
		}
		p.removeChild(node)
		if _, isRoot := tr.directiveOf[p]; isRoot {
			continue
		}
		if len(p.children) == 0 && p.isActive {
			if err := tr.extractFamilySubtree(p, scaffold, db); err != nil {
				return err
			}
		}
	}
	return nil
}
