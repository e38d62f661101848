package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an engine failure.
type Kind int

const (
	// KindStructural covers misplaced directives, inconsistent merges,
	// malformed blocks and disabled features.
	KindStructural Kind = iota + 1

	// KindDefinition means a definitions statement failed to execute.
	KindDefinition

	// KindEvaluation means an expression failed to evaluate.
	KindEvaluation

	// KindFormat means the document text could not be parsed.
	KindFormat
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindDefinition:
		return "definition"
	case KindEvaluation:
		return "evaluation"
	case KindFormat:
		return "format"
	default:
		return "unknown"
	}
}

// Sentinel causes for structural errors.
var (
	ErrUnexpectedElif   = errors.New("unexpected elif: no if or elif before")
	ErrUnexpectedElse   = errors.New("unexpected else: no if or elif before")
	ErrMixedMerge       = errors.New("conditional or loop did not consistently return map or list")
	ErrFeatureDisabled  = errors.New("feature is disabled")
	ErrVariablesShape   = errors.New("__variables__ must be a mapping of name to value")
	ErrDefinitionsShape = errors.New("__definitions__ must be a list of statements")
	ErrDefinitionsOrder = errors.New("__definitions__ must come before __variables__")
	ErrComputedKey      = errors.New("computed key did not evaluate to a scalar")
)

// Error is the single error type returned by the engine.
type Error struct {
	// Kind is the failure class.
	Kind Kind

	// Path is the key path of the failing node, e.g. "services.web[0]".
	Path string

	// Key is the offending mapping key, if any.
	Key string

	// Expr is the offending expression or statement text, if any.
	Expr string

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	sb.WriteString(" error")
	if e.Path != "" {
		fmt.Fprintf(&sb, " at %s", e.Path)
	}
	if e.Key != "" && !strings.HasSuffix(e.Path, e.Key) {
		fmt.Fprintf(&sb, " (key %q)", e.Key)
	}
	if e.Expr != "" {
		fmt.Fprintf(&sb, " in %q", e.Expr)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var engErr *Error
	if errors.As(err, &engErr) {
		return engErr.Kind, true
	}
	return 0, false
}

// NewFormatError wraps a parser failure.
func NewFormatError(path string, err error) *Error {
	return &Error{Kind: KindFormat, Path: path, Err: err}
}

func structuralError(path, key string, err error) *Error {
	return &Error{Kind: KindStructural, Path: path, Key: key, Err: err}
}

// wrapError attaches context to an evaluator failure. If err already
// carries an *Error (raised by a nested resolution the evaluator called back
// into) that error is propagated unchanged so the first failure wins.
func wrapError(kind Kind, path, key, expr string, err error) error {
	var engErr *Error
	if errors.As(err, &engErr) {
		return engErr
	}
	return &Error{Kind: kind, Path: path, Key: key, Expr: expr, Err: err}
}
