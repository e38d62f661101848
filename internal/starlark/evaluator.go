// Package starlark implements the expression evaluator on Starlark.
//
// Expressions are Starlark expressions, definitions are Starlark statements,
// and loop keys are echoed into a Starlark list comprehension. Starlark is a
// Python dialect, so most expressions written for Python templates work
// unchanged; f-strings do not and should be written with str.format or %.
package starlark

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"gopkg.in/yaml.v3"

	"github.com/cameronsjo/yte/internal/scope"
)

// fileOptions enables the Python-like statement forms definitions use.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,

	// load() inside __definitions__ must extend the scope like any other
	// assignment.
	LoadBindsGlobally: true,
}

// Evaluator provides Starlark evaluation of expressions and statements.
type Evaluator struct {
	builtins starlark.StringDict
	baseDir  string
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]*loadEntry
}

type loadEntry struct {
	globals starlark.StringDict
	err     error
	loading bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithBaseDir sets the directory load() resolves relative paths against.
func WithBaseDir(dir string) Option {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

// WithLogger routes print() output and debug tracing to l.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBuiltins adds or replaces predeclared names.
func WithBuiltins(extra starlark.StringDict) Option {
	return func(e *Evaluator) {
		for k, v := range extra {
			e.builtins[k] = v
		}
	}
}

// NewEvaluator creates a new Starlark evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		builtins: CreateBuiltins(),
		baseDir:  ".",
		logger:   slog.New(slog.DiscardHandler),
		cache:    make(map[string]*loadEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Eval evaluates an expression and converts the result to a node.
func (e *Evaluator) Eval(expr string, sc *scope.Scope) (*yaml.Node, error) {
	val, err := e.eval(expr, sc, nil)
	if err != nil {
		return nil, err
	}
	return ToNode(val)
}

// Test evaluates a condition using Starlark truthiness.
func (e *Evaluator) Test(expr string, sc *scope.Scope) (bool, error) {
	val, err := e.eval(expr, sc, nil)
	if err != nil {
		return false, err
	}
	return bool(val.Truth()), nil
}

// Exec runs statement text and extends sc with the globals it defines.
func (e *Evaluator) Exec(stmt string, sc *scope.Scope) (*scope.Scope, error) {
	env, err := e.environment(sc)
	if err != nil {
		return nil, err
	}

	globals, err := starlark.ExecFileOptions(fileOptions, e.newThread("definitions"), "<definitions>", stmt, env)
	if err != nil {
		return nil, err
	}

	additions := make(map[string]any, len(globals))
	for k, v := range globals {
		additions[k] = v
	}
	e.logger.Debug("definitions executed", "names", globals.Keys())
	return sc.Extend(additions), nil
}

// Loop evaluates [resolve(body, {targets}) <clause>] as a single
// comprehension. The clause is passed through verbatim; it is parsed only
// to learn the names of the loop targets.
func (e *Evaluator) Loop(clause string, body *yaml.Node, sc *scope.Scope) ([]*yaml.Node, error) {
	clause = strings.TrimSpace(clause)
	targets, err := loopTargets(clause)
	if err != nil {
		return nil, err
	}
	if sc.Resolver() == nil {
		return nil, fmt.Errorf("no resolver in scope")
	}

	bindings := make([]string, len(targets))
	for i, name := range targets {
		bindings[i] = strconv.Quote(name) + ": " + name
	}
	expr := fmt.Sprintf("[%s(%s, {%s}) %s]", iterateName, bodyName, strings.Join(bindings, ", "), clause)

	val, err := e.eval(expr, sc, starlark.StringDict{bodyName: &NodeValue{Node: body}})
	if err != nil {
		return nil, err
	}

	list, ok := val.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("loop produced %s, want list", val.Type())
	}

	nodes := make([]*yaml.Node, list.Len())
	for i := 0; i < list.Len(); i++ {
		node, err := ToNode(list.Index(i))
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		nodes[i] = node
	}
	return nodes, nil
}

func (e *Evaluator) eval(expr string, sc *scope.Scope, extra starlark.StringDict) (starlark.Value, error) {
	env, err := e.environment(sc)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		env[k] = v
	}
	return starlark.EvalOptions(fileOptions, e.newThread("expr"), "<expr>", strings.TrimSpace(expr), env)
}

// environment builds the predeclared names for one evaluation from the
// builtins and the flattened scope. The resolver self-reference becomes a
// callable.
func (e *Evaluator) environment(sc *scope.Scope) (starlark.StringDict, error) {
	env := make(starlark.StringDict, len(e.builtins))
	for k, v := range e.builtins {
		env[k] = v
	}
	if sc == nil {
		return env, nil
	}

	for name, value := range sc.Context() {
		if fn, ok := value.(scope.ResolveFunc); ok {
			env[name] = resolveBuiltin(name, fn, sc, false)
			env[iterateName] = resolveBuiltin(iterateName, fn, sc, true)
			continue
		}
		sv, err := ToStarlark(value)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		env[name] = sv
	}
	return env, nil
}

func (e *Evaluator) newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: "yte-" + name,
		Print: func(_ *starlark.Thread, msg string) {
			e.logger.Info(msg, "source", "print")
		},
		Load: e.load,
	}
}

// load executes a Starlark file relative to the base directory. Results
// are cached per evaluator; cycles are reported as errors.
func (e *Evaluator) load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	path := module
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.baseDir, module)
	}

	e.mu.Lock()
	entry, ok := e.cache[path]
	if ok {
		e.mu.Unlock()
		if entry.loading {
			return nil, fmt.Errorf("cycle in load graph at %s", module)
		}
		return entry.globals, entry.err
	}
	entry = &loadEntry{loading: true}
	e.cache[path] = entry
	e.mu.Unlock()

	src, err := os.ReadFile(path)
	if err != nil {
		entry.err = fmt.Errorf("load %s: %w", module, err)
	} else {
		entry.globals, entry.err = starlark.ExecFileOptions(fileOptions, e.newThread("load"), path, src, e.builtins)
	}

	e.mu.Lock()
	entry.loading = false
	e.mu.Unlock()

	e.logger.Debug("module loaded", "module", module, "path", path, "error", entry.err)
	return entry.globals, entry.err
}

// loopTargets parses the for-clause inside a throwaway comprehension and
// returns the names bound by its for targets, in order.
func loopTargets(clause string) ([]string, error) {
	expr, err := fileOptions.ParseExpr("<loop>", "[None "+clause+"]", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid loop clause: %w", err)
	}
	comp, ok := expr.(*syntax.Comprehension)
	if !ok {
		return nil, fmt.Errorf("invalid loop clause %q", clause)
	}

	var names []string
	seen := make(map[string]bool)
	for _, c := range comp.Clauses {
		fc, ok := c.(*syntax.ForClause)
		if !ok {
			continue
		}
		syntax.Walk(fc.Vars, func(n syntax.Node) bool {
			if id, ok := n.(*syntax.Ident); ok && !seen[id.Name] {
				seen[id.Name] = true
				names = append(names, id.Name)
			}
			return true
		})
	}
	return names, nil
}
