package engine

import (
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/cameronsjo/yte/internal/scope"
)

// Evaluator is the pluggable expression capability. Implementations decide
// the expression language; the engine only decides when and with which
// scope they are invoked.
type Evaluator interface {
	// Eval evaluates an expression and returns the value as a node.
	Eval(expr string, sc *scope.Scope) (*yaml.Node, error)

	// Test evaluates a branch condition for truthiness.
	Test(expr string, sc *scope.Scope) (bool, error)

	// Exec runs a definitions statement and returns sc extended with the
	// names it defined.
	Exec(stmt string, sc *scope.Scope) (*scope.Scope, error)

	// Loop evaluates clause ("for x in xs") as a single comprehension and
	// returns one resolved node per iteration. For each iteration body is
	// resolved through sc's resolver with the loop targets bound.
	Loop(clause string, body *yaml.Node, sc *scope.Scope) ([]*yaml.Node, error)
}

// Features toggles the reserved blocks.
type Features struct {
	Definitions bool
	Variables   bool
}

// DefaultFeatures enables every block.
func DefaultFeatures() Features {
	return Features{Definitions: true, Variables: true}
}

// Engine resolves template trees into plain data trees.
type Engine struct {
	evaluator Evaluator
	features  Features
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFeatures sets the enabled features.
func WithFeatures(f Features) Option {
	return func(e *Engine) {
		e.features = f
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine backed by ev.
func New(ev Evaluator, opts ...Option) *Engine {
	e := &Engine{
		evaluator: ev,
		features:  DefaultFeatures(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Features returns the enabled features.
func (e *Engine) Features() Features {
	return e.features
}

// ResolveDocument resolves a parsed document with a root scope built from
// vars. Document nodes keep their wrapper and comments.
func (e *Engine) ResolveDocument(doc *yaml.Node, vars map[string]any) (*yaml.Node, error) {
	if doc == nil {
		return nil, nil
	}

	sc := scope.New(vars).WithResolver(e.resolverAt(""))

	if doc.Kind != yaml.DocumentNode {
		return e.resolve(doc, sc, "")
	}

	out := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: doc.HeadComment,
		FootComment: doc.FootComment,
	}
	for _, child := range doc.Content {
		resolved, err := e.resolve(child, sc, "")
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, resolved)
	}
	return out, nil
}

// resolverAt returns the self-reference handed to the evaluator. Errors
// raised through it carry path as their location prefix.
func (e *Engine) resolverAt(path string) scope.ResolveFunc {
	return func(node *yaml.Node, sc *scope.Scope) (*yaml.Node, error) {
		return e.resolve(node, sc, path)
	}
}
