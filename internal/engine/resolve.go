package engine

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cameronsjo/yte/internal/scope"
)

// resolve is the recursive tree walk.
func (e *Engine) resolve(node *yaml.Node, sc *scope.Scope, path string) (*yaml.Node, error) {
	if node == nil {
		return nil, nil
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nullNode(), nil
		}
		return e.resolve(node.Content[0], sc, path)
	case yaml.AliasNode:
		return e.resolve(node.Alias, sc, path)
	case yaml.SequenceNode:
		return e.resolveSequence(node, sc, path)
	case yaml.MappingNode:
		out, _, err := e.resolveMapping(node, sc, path)
		return out, err
	default:
		return e.resolveScalar(node, sc, path)
	}
}

func (e *Engine) resolveScalar(node *yaml.Node, sc *scope.Scope, path string) (*yaml.Node, error) {
	if !isExprNode(node) {
		return plainCopy(node), nil
	}

	expr := ExprSource(node.Value)
	out, err := e.evaluator.Eval(expr, sc)
	if err != nil {
		return nil, wrapError(KindEvaluation, path, "", expr, err)
	}
	if out == nil {
		return nullNode(), nil
	}
	return out, nil
}

// resolveSequence resolves items in order. Items that are directive
// mappings are spliced when they resolve to a sequence and dropped when
// they produce nothing.
func (e *Engine) resolveSequence(node *yaml.Node, sc *scope.Scope, path string) (*yaml.Node, error) {
	out := newSeq()
	out.Style = node.Style

	for i, item := range node.Content {
		itemPath := path + "[" + strconv.Itoa(i) + "]"

		if isDirectiveMapping(item) {
			resolved, produced, err := e.resolveMapping(deref(item), sc, itemPath)
			if err != nil {
				return nil, err
			}
			if !produced {
				continue
			}
			if resolved.Kind == yaml.SequenceNode {
				out.Content = append(out.Content, resolved.Content...)
				continue
			}
			out.Content = append(out.Content, resolved)
			continue
		}

		resolved, err := e.resolve(item, sc, itemPath)
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, resolved)
	}
	return out, nil
}

// resolveMapping processes keys in document order and merges the
// resulting fragments. produced is false when no step yielded a fragment.
func (e *Engine) resolveMapping(node *yaml.Node, sc *scope.Scope, path string) (out *yaml.Node, produced bool, err error) {
	var frags []fragment
	var pending chain
	seenVars := false

	// Flushing uses the scope as extended so far in this mapping.
	flushChain := func() error {
		frag, ok, err := e.flush(&pending, sc, path)
		if err != nil {
			return err
		}
		if ok {
			frags = append(frags, frag)
		}
		return nil
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, value := deref(node.Content[i]), node.Content[i+1]

		d := Directive{Kind: Plain}
		if keyNode.Kind == yaml.ScalarNode {
			d = Classify(keyNode.Value)
		}

		switch d.Kind {
		case DefinitionsBlock:
			if err := flushChain(); err != nil {
				return nil, false, err
			}
			if !e.features.Definitions {
				return nil, false, structuralError(joinKey(path, d.Key), d.Key, fmt.Errorf("%s: %w", d.Key, ErrFeatureDisabled))
			}
			if seenVars {
				return nil, false, structuralError(joinKey(path, d.Key), d.Key, ErrDefinitionsOrder)
			}
			sc, err = e.applyDefinitions(value, sc, joinKey(path, d.Key))
			if err != nil {
				return nil, false, err
			}

		case VariablesBlock:
			if err := flushChain(); err != nil {
				return nil, false, err
			}
			if !e.features.Variables {
				return nil, false, structuralError(joinKey(path, d.Key), d.Key, fmt.Errorf("%s: %w", d.Key, ErrFeatureDisabled))
			}
			seenVars = true
			sc, err = e.applyVariables(value, sc, joinKey(path, d.Key))
			if err != nil {
				return nil, false, err
			}

		case Loop:
			if err := flushChain(); err != nil {
				return nil, false, err
			}
			loopFrags, err := e.expandLoop(d, value, sc, path)
			if err != nil {
				return nil, false, err
			}
			frags = append(frags, loopFrags...)

		case If:
			if err := flushChain(); err != nil {
				return nil, false, err
			}
			pending.add(d, value)

		case Elif:
			if pending.empty() {
				return nil, false, structuralError(joinKey(path, d.Key), d.Key, ErrUnexpectedElif)
			}
			pending.add(d, value)

		case Else:
			if pending.empty() {
				return nil, false, structuralError(joinKey(path, d.Key), d.Key, ErrUnexpectedElse)
			}
			pending.setElse(d, value)
			if err := flushChain(); err != nil {
				return nil, false, err
			}

		default:
			if err := flushChain(); err != nil {
				return nil, false, err
			}
			frag, err := e.resolvePair(keyNode, value, sc, path)
			if err != nil {
				return nil, false, err
			}
			frags = append(frags, frag)
		}
	}

	if err := flushChain(); err != nil {
		return nil, false, err
	}

	out, err = mergeFragments(frags)
	if err != nil {
		return nil, false, structuralError(path, "", err)
	}
	if out.Kind == yaml.MappingNode {
		out.Style = node.Style & yaml.FlowStyle
	}
	return out, len(frags) > 0, nil
}

// resolvePair handles a plain key, which may itself be an expression.
func (e *Engine) resolvePair(keyNode, value *yaml.Node, sc *scope.Scope, path string) (fragment, error) {
	key := plainCopy(keyNode)
	keyText := keyNode.Value

	if isExprNode(keyNode) {
		expr := ExprSource(keyNode.Value)
		computed, err := e.evaluator.Eval(expr, sc)
		if err != nil {
			return fragment{}, wrapError(KindEvaluation, joinKey(path, keyText), keyText, expr, err)
		}
		if computed == nil || computed.Kind != yaml.ScalarNode {
			return fragment{}, &Error{Kind: KindEvaluation, Path: joinKey(path, keyText), Key: keyText, Expr: expr, Err: ErrComputedKey}
		}
		key = computed
		keyText = computed.Value
	} else if keyNode.Kind != yaml.ScalarNode {
		resolvedKey, err := e.resolve(keyNode, sc, path)
		if err != nil {
			return fragment{}, err
		}
		key = resolvedKey
	}

	resolved, err := e.resolve(value, sc, joinKey(path, keyText))
	if err != nil {
		return fragment{}, err
	}
	return fragment{kind: fragMap, node: newMap(key, resolved)}, nil
}

// expandLoop delegates the iteration to the evaluator, which echoes the
// for-clause verbatim and calls back into the resolver for each item.
func (e *Engine) expandLoop(d Directive, body *yaml.Node, sc *scope.Scope, path string) ([]fragment, error) {
	loopPath := joinKey(path, d.Key)
	items, err := e.evaluator.Loop(d.Expr, body, sc.WithResolver(e.resolverAt(loopPath)))
	if err != nil {
		return nil, wrapError(KindEvaluation, loopPath, d.Key, d.Expr, err)
	}

	e.logger.Debug("loop expanded", "path", path, "clause", d.Expr, "iterations", len(items))

	frags := make([]fragment, 0, len(items))
	for _, item := range items {
		if item == nil {
			item = nullNode()
		}
		frags = append(frags, iterationFragment(item))
	}

	// One loop must be uniformly shaped on its own, even when the
	// surrounding mapping has no other fragments.
	for _, f := range frags[min(1, len(frags)):] {
		if f.kind != frags[0].kind {
			return nil, structuralError(loopPath, d.Key, ErrMixedMerge)
		}
	}
	return frags, nil
}

// applyDefinitions executes each statement in order, threading the scope.
func (e *Engine) applyDefinitions(value *yaml.Node, sc *scope.Scope, path string) (*scope.Scope, error) {
	value = deref(value)

	var stmts []*yaml.Node
	switch value.Kind {
	case yaml.SequenceNode:
		stmts = value.Content
	case yaml.ScalarNode:
		if value.ShortTag() == "!!null" {
			return sc, nil
		}
		stmts = []*yaml.Node{value}
	default:
		return nil, structuralError(path, DefinitionsKey, ErrDefinitionsShape)
	}

	for i, stmt := range stmts {
		stmt = deref(stmt)
		stmtPath := path + "[" + strconv.Itoa(i) + "]"
		if stmt.Kind != yaml.ScalarNode {
			return nil, &Error{Kind: KindDefinition, Path: stmtPath, Key: DefinitionsKey, Err: fmt.Errorf("statement must be a string, got %s", kindName(stmt))}
		}

		next, err := e.evaluator.Exec(stmt.Value, sc)
		if err != nil {
			return nil, wrapError(KindDefinition, stmtPath, DefinitionsKey, stmt.Value, err)
		}
		sc = next
	}

	e.logger.Debug("definitions applied", "path", path, "statements", len(stmts), "scope_depth", sc.Depth())
	return sc, nil
}

// applyVariables resolves each declared value in order; later values see
// earlier names.
func (e *Engine) applyVariables(value *yaml.Node, sc *scope.Scope, path string) (*scope.Scope, error) {
	value = deref(value)
	if value.Kind != yaml.MappingNode {
		if value.Kind == yaml.ScalarNode && value.ShortTag() == "!!null" {
			return sc, nil
		}
		return nil, structuralError(path, VariablesKey, ErrVariablesShape)
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		nameNode := deref(value.Content[i])
		if nameNode.Kind != yaml.ScalarNode {
			return nil, structuralError(path, VariablesKey, ErrVariablesShape)
		}
		name := nameNode.Value

		resolved, err := e.resolve(value.Content[i+1], sc, joinKey(path, name))
		if err != nil {
			return nil, err
		}
		sc = sc.Extend(map[string]any{name: resolved})
	}

	e.logger.Debug("variables applied", "path", path, "count", len(value.Content)/2, "scope_depth", sc.Depth())
	return sc, nil
}

// isDirectiveMapping reports whether node is a mapping with a loop or
// conditional key at its top level.
func isDirectiveMapping(node *yaml.Node) bool {
	node = deref(node)
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i < len(node.Content); i += 2 {
		k := deref(node.Content[i])
		if k.Kind == yaml.ScalarNode && Classify(k.Value).IsControl() {
			return true
		}
	}
	return false
}

func isExprNode(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!str" && IsExpr(node.Value)
}

func deref(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

// plainCopy copies a scalar without its anchor so resolved output never
// re-declares anchors.
func plainCopy(node *yaml.Node) *yaml.Node {
	if node.Anchor == "" {
		return node
	}
	c := *node
	c.Anchor = ""
	return &c
}

func nullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func kindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	default:
		return "scalar"
	}
}
