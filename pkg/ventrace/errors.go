package ventrace

import "fmt"

// UnboundSymbolError reports a lookup miss in an Environment (§4.B, §7).
type UnboundSymbolError struct {
	Name string
}

func (e *UnboundSymbolError) Error() string {
	return fmt.Sprintf("unbound symbol: %s", e.Name)
}

// ArityError reports a PSP called with the wrong number of operands (§7).
type ArityError struct {
	PSP  string
	Got  int
	Want int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s: arity error, want %d operands, got %d", e.PSP, e.Want, e.Got)
}

// ObservationError reports an attempt to constrain a node that cannot be
// constrained (§4.H, §7).
type ObservationError struct {
	NodeID uint64
	Reason string
}

func (e *ObservationError) Error() string {
	return fmt.Sprintf("observation error on node %d: %s", e.NodeID, e.Reason)
}

// ErrUnpropagatedObservation is raised by Trace.MakeConsistent when an
// observation drives the regen weight to -Inf (§4.I, §7).
var ErrUnpropagatedObservation = fmt.Errorf("unpropagated observation")

// ErrDoubleConstrain is raised when constraining an already-constrained
// node (§7).
var ErrDoubleConstrain = fmt.Errorf("cannot constrain an already-constrained node")

// AssertionViolation reports a broken invariant from §3. Per §7's error
// policy, a trace that raises this is poisoned and must be discarded by
// the caller; it is not a user-recoverable error.
type AssertionViolation struct {
	Invariant string
}

func (e *AssertionViolation) Error() string {
	return fmt.Sprintf("assertion violation: invariant %s failed", e.Invariant)
}

// ErrUnsupportedAAA is returned by a PSP's LogDensityOfCounts when the SP
// does not support collapsed arbitrary-ergodic inference (spec.md §9,
// SPEC_FULL.md "SUPPLEMENTED FEATURES" — this replaces the source's
// assert(false) with a reportable error).
var ErrUnsupportedAAA = fmt.Errorf("AAA inference is unsupported for this SP")
