package ventrace

// Environment is a lexical frame chain mapping symbols to nodes (§4.B).
// Bindings are added only by Trace.Assume (binding a top-level
// directive's root) and Trace.BindBuiltin; frames are otherwise immutable
// once built.
type Environment struct {
	parent   *Environment
	bindings map[string]*Node
}

// NewEnvironment creates a fresh frame, optionally chained to a parent.
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{parent: parent, bindings: make(map[string]*Node)}
}

// Extend returns a new child frame of env.
func (env *Environment) Extend() *Environment {
	return NewEnvironment(env)
}

// Bind adds a symbol -> node binding to this frame.
func (env *Environment) Bind(sym string, node *Node) {
	env.bindings[sym] = node
}

// FindSymbol searches the frame chain for sym, returning the bound node
// or UnboundSymbolError on a miss (§4.B).
func (env *Environment) FindSymbol(sym string) (*Node, error) {
	for f := env; f != nil; f = f.parent {
		if n, ok := f.bindings[sym]; ok {
			return n, nil
		}
	}
	return nil, &UnboundSymbolError{Name: sym}
}
