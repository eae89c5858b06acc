package ventrace

// FamilyID is a stable identifier minted by an SP (e.g. a hash of operand
// values for memoization) used as a key into an SPFamilies map (§3).
type FamilyID uint64

// ESR ("existing simulation request") asks the evaluator to build or
// share a sub-trace identified by id (§3).
type ESR struct {
	ID  FamilyID
	Exp *Value
	Env *Environment
}

// HSR ("hidden simulation request") is an opaque token an SP uses to
// simulate latent state private to that SP instance (§3).
type HSR interface{}

// Request is the value carried by a Request node: an ordered list of ESRs
// and HSRs (§3, §6).
type Request struct {
	ESRs []ESR
	HSRs []HSR
}

// SPAux is mutable, per-instance sufficient statistics held by a made SP
// (§3). Concrete SPs define their own aux types satisfying this interface;
// the core only needs to clone and restore them across detach/regen.
type SPAux interface {
	// Clone returns a deep copy, used by detach to snapshot the aux into
	// a DB before the first mutation of a proposal step (§4.F, §9).
	Clone() SPAux
}

// Args bundles everything a PSP method needs: the application node, its
// operand values, and the owning SP instance's SPAux.
// Args is an ephemeral view over the trace; per §5's resource discipline,
// a PSP must not retain it past the call that produced it.
type Args struct {
	Node          *Node
	OperandValues []*Value
	Aux           SPAux
}

// PSP is a primitive stochastic procedure: one half (request or output)
// of an SP's behavior (§4.D).
type PSP interface {
	// Simulate draws a fresh value.
	Simulate(args *Args, rng RNG) (*Value, error)
	// LogDensity returns the log density of value under args; only valid
	// for absorbing PSPs.
	LogDensity(value *Value, args *Args) (float64, error)
	// Incorporate folds value into the owning SPAux.
	Incorporate(value *Value, args *Args)
	// Unincorporate is the exact inverse of Incorporate.
	Unincorporate(value *Value, args *Args)

	// IsRandom reports whether this PSP introduces a random choice.
	IsRandom() bool
	// CanAbsorb reports whether this PSP can absorb a proposal affecting
	// parentNode without being resampled.
	CanAbsorb(trace *Trace, appNode *Node, parentNode *Node) bool
	// ChildrenCanAAA reports whether applications of the SP this PSP
	// belongs to can be summarized by a collapsed AAA kernel.
	ChildrenCanAAA() bool
	// IsESRReference reports whether this output PSP merely forwards its
	// single esr-parent's value (§4.D).
	IsESRReference() bool
	// IsNullRequest reports whether this request PSP never produces ESRs
	// or HSRs (the common case for non-higher-order SPs).
	IsNullRequest() bool
}

// AAAPSP is implemented by output PSPs that support collapsed
// arbitrary-ergodic inference (§4.D, §4.E).
type AAAPSP interface {
	PSP
	// LogDensityOfCounts summarizes the log density of every absorbing
	// application against aux, without re-executing them individually.
	// Implementations that cannot support this return ErrUnsupportedAAA
	// (SPEC_FULL.md "SUPPLEMENTED FEATURES"; spec.md §9 bullet 3).
	LogDensityOfCounts(aux SPAux) (float64, error)
}

// HSRPSP is implemented by output PSPs whose SP makes hidden-simulation
// requests and therefore needs detach/regen hooks for latent state
// (§4.D).
type HSRPSP interface {
	PSP
	SimulateLatents(aux SPAux, hsr HSR, shouldRestore bool, latentDB *LatentDB, rng RNG) (float64, error)
	DetachLatents(aux SPAux, hsr HSR, latentDB *LatentDB) float64
	RestoreAllLatents(aux SPAux, latentDB *LatentDB)
}

// LatentDB holds per-HSR latent state saved by DetachLatents and replayed
// by SimulateLatents/RestoreAllLatents (§4.F).
type LatentDB struct {
	values map[HSR]interface{}
}

// NewLatentDB creates an empty latent-state store.
func NewLatentDB() *LatentDB { return &LatentDB{values: make(map[HSR]interface{})} }

// Put stores latent state for hsr.
func (db *LatentDB) Put(hsr HSR, v interface{}) { db.values[hsr] = v }

// Get retrieves latent state for hsr.
func (db *LatentDB) Get(hsr HSR) (interface{}, bool) {
	v, ok := db.values[hsr]
	return v, ok
}

// SP is a stochastic procedure: the pairing of a request PSP and an
// output PSP, plus the capability flags the trace needs without having to
// type-switch on the PSPs themselves (§4.D).
type SP struct {
	RequestPSP  PSP
	OutputPSP   PSP
	HasAEKernel bool
	HasAux      bool
	HasHSRs     bool

	// NewAux constructs a fresh SPAux for a new instance of this SP. Nil
	// for SPs with HasAux == false.
	NewAux func() SPAux

	// AEInfer performs one arbitrary-ergodic transition directly on aux,
	// in place, with no accept/reject step of its own (an exact Gibbs-style
	// update, e.g. resampling a conjugate parameter from its posterior).
	// Nil for SPs with HasAEKernel == false. Invoked by Trace.AEInfer
	// against every maker node registered in arbitraryErgodicKernels
	// (§4.D "AAA contract").
	AEInfer func(aux SPAux, rng RNG) error
}

// SPRecord is the (SP, SPAux, SPFamilies) triple produced when an
// SP-maker's Output node evaluates (§3). The node that produced it is the
// "maker node".
type SPRecord struct {
	SP        *SP
	Aux       SPAux
	Families  map[FamilyID]*Node
	makerNode *Node
}

// NewSPRecord allocates an SPRecord with no families yet registered.
func NewSPRecord(sp *SP, aux SPAux) *SPRecord {
	return &SPRecord{SP: sp, Aux: aux, Families: make(map[FamilyID]*Node)}
}

// MakerNode returns the Output node whose evaluation produced this
// record, or nil if it has not yet been registered by processMadeSP.
func (r *SPRecord) MakerNode() *Node { return r.makerNode }

// RegisterFamily records that esr.ID resolves to root within this SP
// instance's shared family table (§4.H evalRequests).
func (r *SPRecord) RegisterFamily(id FamilyID, root *Node) {
	r.Families[id] = root
}

// FindFamily looks up a previously registered family root.
func (r *SPRecord) FindFamily(id FamilyID) (*Node, bool) {
	root, ok := r.Families[id]
	return root, ok
}

// FamilyIDFor reverse-looks-up the id a given root was registered
// under. Families are small (one per distinct memoized argument list,
// say), so a linear scan is the simplest correct approach.
func (r *SPRecord) FamilyIDFor(root *Node) (FamilyID, bool) {
	for id, n := range r.Families {
		if n == root {
			return id, true
		}
	}
	return 0, false
}

// ForgetFamily removes a torn-down family from the live table; a
// matching regen re-adds it via RegisterFamily once restored or
// rebuilt.
func (r *SPRecord) ForgetFamily(id FamilyID) {
	delete(r.Families, id)
}

// SPRef is a weak reference to an SPRecord, carrying only the maker
// node's identity so that tearing down the record does not dangle other
// nodes' references to it (§3, §9 "Cyclic ownership").
type SPRef struct {
	makerNode *Node
}

// NewSPRef builds a weak reference to makerNode's SP record.
func NewSPRef(makerNode *Node) *SPRef { return &SPRef{makerNode: makerNode} }

// MakerNode returns the node that made the referenced SP.
func (r *SPRef) MakerNode() *Node { return r.makerNode }

// LKernel is a local kernel that overrides simulate/weight for one node
// during a proposal (§3, §4.H).
type LKernel interface {
	Simulate(oldValue *Value, args *Args, latentDB *LatentDB, rng RNG) (*Value, error)
	Weight(newValue, oldValue *Value, args *Args, latentDB *LatentDB) (float64, error)
}

// DeterministicLKernel always proposes a fixed value with weight 0; it is
// installed by Trace.MakeConsistent to drive an observation node to its
// observed value (§4.I).
type DeterministicLKernel struct {
	Value *Value
}

// Simulate always returns the fixed value.
func (k *DeterministicLKernel) Simulate(*Value, *Args, *LatentDB, RNG) (*Value, error) {
	return k.Value, nil
}

// Weight is always zero: the deterministic kernel's "proposal" is exact,
// any weight from committing to the value is accounted for by constrain's
// logDensityOutput call instead.
func (k *DeterministicLKernel) Weight(*Value, *Value, *Args, *LatentDB) (float64, error) {
	return 0, nil
}
