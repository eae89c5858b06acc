// Package directive is a thin driver over ventrace.Trace: the top-level
// assume/predict/observe/forget/freeze/report loop (spec.md §6, §4.I),
// grounded on original_source/backend/new_cxx/src/concrete_trace.cxx's
// directive handling and on the teacher's Model/Solver split
// (pkg/minikanren/model.go builds a declarative problem; pkg/minikanren/
// solver.go drives it — here, Program builds up directives declaratively
// while the Trace itself does the stateful work).
//
// No surface syntax is introduced (spec.md §1 Non-goals): expressions are
// built as *ventrace.Value trees directly by callers, exactly as the
// teacher's Model builds FDVariables/constraints directly rather than
// parsing them from text.
package directive

import (
	"fmt"

	"github.com/gitrdm/ventrace/pkg/psp"
	"github.com/gitrdm/ventrace/pkg/ventrace"
)

// Program owns one Trace and remembers which directive id a symbol was
// assumed under, so later Report/Forget/Freeze calls can be addressed by
// name instead of by DirectiveID.
type Program struct {
	Trace *ventrace.Trace
	named map[string]ventrace.DirectiveID
}

// New builds a Program around a fresh Trace with every concrete SP in
// pkg/psp bound into its global environment.
func New(opts ...ventrace.TraceOption) *Program {
	tr := ventrace.NewTrace(opts...)
	psp.BindAll(tr)
	return &Program{Trace: tr, named: make(map[string]ventrace.DirectiveID)}
}

// Assume evaluates exp, binds it to sym, and remembers sym for later
// lookups by name.
func (p *Program) Assume(sym string, exp *ventrace.Value) (*ventrace.Directive, error) {
	d, err := p.Trace.Assume(sym, exp)
	if err != nil {
		return nil, err
	}
	p.named[sym] = d.ID
	return d, nil
}

// Predict evaluates exp as an unnamed directive.
func (p *Program) Predict(exp *ventrace.Value) (*ventrace.Directive, error) {
	return p.Trace.Predict(exp)
}

// Observe evaluates exp and records a pending observation of value; call
// MakeConsistent to actually propagate it into the trace's state.
func (p *Program) Observe(exp *ventrace.Value, value *ventrace.Value) (*ventrace.Directive, error) {
	return p.Trace.Observe(exp, value)
}

// MakeConsistent propagates every pending observation.
func (p *Program) MakeConsistent() error { return p.Trace.MakeConsistent() }

// ReportByName returns the current value bound to a name assumed earlier.
func (p *Program) ReportByName(sym string) (*ventrace.Value, error) {
	id, ok := p.named[sym]
	if !ok {
		return nil, fmt.Errorf("directive: no assume named %q", sym)
	}
	return p.Trace.Report(id)
}

// ForgetByName tears down the directive a name was assumed under and
// removes the name from this Program's bookkeeping.
func (p *Program) ForgetByName(sym string) error {
	id, ok := p.named[sym]
	if !ok {
		return fmt.Errorf("directive: no assume named %q", sym)
	}
	if err := p.Trace.Forget(id); err != nil {
		return err
	}
	delete(p.named, sym)
	return nil
}

// FreezeByName permanently removes a named directive from further
// inference, keeping its current value.
func (p *Program) FreezeByName(sym string) error {
	id, ok := p.named[sym]
	if !ok {
		return fmt.Errorf("directive: no assume named %q", sym)
	}
	return p.Trace.Freeze(id)
}
