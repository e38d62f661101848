package engine

import (
	"gopkg.in/yaml.v3"

	"github.com/cameronsjo/yte/internal/scope"
)

type branch struct {
	key   string
	expr  string
	value *yaml.Node
}

// chain accumulates one if/elif.../else run of a mapping.
type chain struct {
	branches  []branch
	elseKey   string
	elseValue *yaml.Node
	hasElse   bool
}

func (c *chain) empty() bool {
	return len(c.branches) == 0
}

func (c *chain) add(d Directive, value *yaml.Node) {
	c.branches = append(c.branches, branch{key: d.Key, expr: d.Expr, value: value})
}

func (c *chain) setElse(d Directive, value *yaml.Node) {
	c.elseKey = d.Key
	c.elseValue = value
	c.hasElse = true
}

func (c *chain) reset() {
	c.branches = nil
	c.elseKey = ""
	c.elseValue = nil
	c.hasElse = false
}

// flush evaluates the chain, first truthy branch wins, and resolves the
// selected value under sc. Branches after the selected one are never
// evaluated. ok is false when nothing was selected.
func (e *Engine) flush(c *chain, sc *scope.Scope, path string) (frag fragment, ok bool, err error) {
	if c.empty() {
		return fragment{}, false, nil
	}
	defer c.reset()

	var selected *yaml.Node
	var selectedKey string
	for _, b := range c.branches {
		truth, err := e.evaluator.Test(b.expr, sc)
		if err != nil {
			return fragment{}, false, wrapError(KindEvaluation, joinKey(path, b.key), b.key, b.expr, err)
		}
		if truth {
			selected, selectedKey = b.value, b.key
			break
		}
	}
	if selected == nil && c.hasElse {
		selected, selectedKey = c.elseValue, c.elseKey
	}
	if selected == nil {
		e.logger.Debug("conditional chain matched nothing", "path", path, "branches", len(c.branches))
		return fragment{}, false, nil
	}

	e.logger.Debug("conditional chain selected branch", "path", path, "key", selectedKey)
	resolved, err := e.resolve(selected, sc, joinKey(path, selectedKey))
	if err != nil {
		return fragment{}, false, err
	}
	return fragmentOf(resolved), true, nil
}
