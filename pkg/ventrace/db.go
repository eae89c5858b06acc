package ventrace

// DB is the rollback store a single detach/regen pair communicates
// through (§4.F). It is append-only during detach and read-only during
// the paired regen; callers never inspect its contents directly.
type DB struct {
	values       map[*Node]*Value
	spAuxClones  map[*Node]SPAux
	familyRoots  map[dbFamilyKey]*Node
	latentDBs    map[*SP]*LatentDB
}

type dbFamilyKey struct {
	maker *Node
	id    FamilyID
}

// NewDB allocates an empty rollback store.
func NewDB() *DB {
	return &DB{
		values:      make(map[*Node]*Value),
		spAuxClones: make(map[*Node]SPAux),
		familyRoots: make(map[dbFamilyKey]*Node),
		latentDBs:   make(map[*SP]*LatentDB),
	}
}

// SaveValue records the value a node had before detach removed it.
func (db *DB) SaveValue(n *Node, v *Value) { db.values[n] = v }

// Value retrieves a previously saved value.
func (db *DB) Value(n *Node) (*Value, bool) {
	v, ok := db.values[n]
	return v, ok
}

// SaveSPAuxClone records a cloned SPAux, keyed by the maker node whose
// aux was cloned before its first mutation in this proposal (§4.F, §9).
func (db *DB) SaveSPAuxClone(maker *Node, aux SPAux) { db.spAuxClones[maker] = aux }

// SPAuxClone retrieves a cloned SPAux.
func (db *DB) SPAuxClone(maker *Node) (SPAux, bool) {
	aux, ok := db.spAuxClones[maker]
	return aux, ok
}

// SaveFamilyRoot records the root of an SP-owned family torn down because
// its request count hit zero during detach (the "brush", §4.E/§4.G).
func (db *DB) SaveFamilyRoot(maker *Node, id FamilyID, root *Node) {
	db.familyRoots[dbFamilyKey{maker, id}] = root
}

// FamilyRoot retrieves a previously torn-down family root.
func (db *DB) FamilyRoot(maker *Node, id FamilyID) (*Node, bool) {
	root, ok := db.familyRoots[dbFamilyKey{maker, id}]
	return root, ok
}

// SaveLatentDB records an SP instance's latent-state snapshot.
func (db *DB) SaveLatentDB(sp *SP, latents *LatentDB) { db.latentDBs[sp] = latents }

// LatentDBFor retrieves an SP instance's latent-state snapshot.
func (db *DB) LatentDBFor(sp *SP) (*LatentDB, bool) {
	l, ok := db.latentDBs[sp]
	return l, ok
}
