package engine

import (
	"regexp"
	"strings"
)

// ExprPrefix marks a scalar as an expression.
const ExprPrefix = "?"

// Reserved block names.
const (
	DefinitionsKey = "__definitions__"
	VariablesKey   = "__variables__"
)

var (
	reForLoop = regexp.MustCompile(`^\?(for .+ in .+)$`)
	reIf      = regexp.MustCompile(`^\?if (.+)$`)
	reElif    = regexp.MustCompile(`^\?elif (.+)$`)
)

const elseKey = "?else"

// DirectiveKind is the classification of a mapping key.
type DirectiveKind int

const (
	Plain DirectiveKind = iota
	Loop
	If
	Elif
	Else
	DefinitionsBlock
	VariablesBlock
)

func (k DirectiveKind) String() string {
	switch k {
	case Loop:
		return "loop"
	case If:
		return "if"
	case Elif:
		return "elif"
	case Else:
		return "else"
	case DefinitionsBlock:
		return "definitions"
	case VariablesBlock:
		return "variables"
	default:
		return "plain"
	}
}

// Directive is a classified mapping key.
type Directive struct {
	Kind DirectiveKind

	// Expr holds the for-clause of a Loop ("for x in xs") or the condition
	// of an If/Elif. It is empty otherwise.
	Expr string

	// Key is the original key text.
	Key string
}

// Classify recognizes directive keys by pattern. It never evaluates.
func Classify(key string) Directive {
	switch {
	case key == DefinitionsKey:
		return Directive{Kind: DefinitionsBlock, Key: key}
	case key == VariablesKey:
		return Directive{Kind: VariablesBlock, Key: key}
	case !strings.HasPrefix(key, ExprPrefix):
		return Directive{Kind: Plain, Key: key}
	case key == elseKey:
		return Directive{Kind: Else, Key: key}
	}

	if m := reForLoop.FindStringSubmatch(key); m != nil {
		return Directive{Kind: Loop, Expr: m[1], Key: key}
	}
	if m := reIf.FindStringSubmatch(key); m != nil {
		return Directive{Kind: If, Expr: m[1], Key: key}
	}
	if m := reElif.FindStringSubmatch(key); m != nil {
		return Directive{Kind: Elif, Expr: m[1], Key: key}
	}
	return Directive{Kind: Plain, Key: key}
}

// IsControl reports whether the directive is a loop or part of a
// conditional chain.
func (d Directive) IsControl() bool {
	switch d.Kind {
	case Loop, If, Elif, Else:
		return true
	}
	return false
}

// IsExpr reports whether s is an expression scalar.
func IsExpr(s string) bool {
	return strings.HasPrefix(s, ExprPrefix)
}

// ExprSource strips the expression marker.
func ExprSource(s string) string {
	return strings.TrimPrefix(s, ExprPrefix)
}
