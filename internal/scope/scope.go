// Package scope provides the variable environment used for expression
// evaluation.
//
// A Scope is a chain of immutable frames. Extending a scope pushes a new
// frame on top of the receiver; the receiver itself is never changed, so
// sibling subtrees and loop iterations cannot observe each other's bindings.
package scope

import "gopkg.in/yaml.v3"

// ResolverName is the name under which the resolver self-reference is
// exposed in the evaluation context.
const ResolverName = "yte_resolve"

// ResolveFunc resolves a template node under the given scope. Evaluators use
// it to resolve node-shaped values (loop and conditional bodies) that may
// themselves contain directives.
type ResolveFunc func(node *yaml.Node, sc *Scope) (*yaml.Node, error)

// Scope is a name to value environment.
type Scope struct {
	parent   *Scope
	vars     map[string]any
	resolver ResolveFunc
}

// New creates a root scope holding a copy of vars.
func New(vars map[string]any) *Scope {
	return &Scope{vars: copyVars(vars)}
}

// WithResolver returns a scope equal to s that carries fn as its resolver
// self-reference. Extensions of the returned scope inherit fn.
func (s *Scope) WithResolver(fn ResolveFunc) *Scope {
	return &Scope{parent: s, resolver: fn}
}

// Extend returns a new scope with additions layered on top of s. Later keys
// win over earlier frames. The receiver is not modified.
func (s *Scope) Extend(additions map[string]any) *Scope {
	if len(additions) == 0 {
		return s
	}
	return &Scope{parent: s, vars: copyVars(additions)}
}

// Lookup returns the innermost binding for name.
func (s *Scope) Lookup(name string) (any, bool) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Resolver returns the innermost resolver self-reference, or nil.
func (s *Scope) Resolver() ResolveFunc {
	for f := s; f != nil; f = f.parent {
		if f.resolver != nil {
			return f.resolver
		}
	}
	return nil
}

// Context flattens the scope into a single map for the evaluator. When a
// resolver is attached it is included under ResolverName.
func (s *Scope) Context() map[string]any {
	var frames []*Scope
	for f := s; f != nil; f = f.parent {
		frames = append(frames, f)
	}

	ctx := make(map[string]any)
	for i := len(frames) - 1; i >= 0; i-- {
		for k, v := range frames[i].vars {
			ctx[k] = v
		}
	}
	if fn := s.Resolver(); fn != nil {
		ctx[ResolverName] = fn
	}
	return ctx
}

// Depth reports the number of frames in the chain.
func (s *Scope) Depth() int {
	n := 0
	for f := s; f != nil; f = f.parent {
		n++
	}
	return n
}

func copyVars(vars map[string]any) map[string]any {
	result := make(map[string]any, len(vars))
	for k, v := range vars {
		result[k] = v
	}
	return result
}
