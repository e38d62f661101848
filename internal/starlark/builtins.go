package starlark

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/google/uuid"
	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/cameronsjo/yte/internal/scope"
)

// iterateName is the hidden resolver used by loop comprehensions. Unlike
// yte_resolve it returns the resolved node without converting it.
const iterateName = "__yte_iterate"

// bodyName holds the loop body while the comprehension runs.
const bodyName = "__yte_body"

// CreateBuiltins returns the predeclared names available to every
// expression and definitions statement.
func CreateBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"json":   starjson.Module,
		"math":   starmath.Module,
		"time":   startime.Module,
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"module": starlark.NewBuiltin("module", starlarkstruct.MakeModule),

		"uuid": starlark.NewBuiltin("uuid", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
				return nil, err
			}
			return starlark.String(uuid.New().String()), nil
		}),

		"getenv": starlark.NewBuiltin("getenv", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			var def starlark.Value = starlark.None
			if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
				return nil, err
			}
			if value, ok := os.LookupEnv(name); ok {
				return starlark.String(value), nil
			}
			return def, nil
		}),

		// tpl renders a Go text/template with sprig functions.
		"tpl": starlark.NewBuiltin("tpl", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var text string
			var data starlark.Value = starlark.None
			if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "text", &text, "data?", &data); err != nil {
				return nil, err
			}

			tmpl, err := template.New("tpl").Funcs(sprig.TxtFuncMap()).Parse(text)
			if err != nil {
				return nil, fmt.Errorf("parse template: %w", err)
			}

			var goData any = map[string]any{}
			if data != starlark.None {
				goData = ToGo(data)
			}

			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, goData); err != nil {
				return nil, fmt.Errorf("render template: %w", err)
			}
			return starlark.String(buf.String()), nil
		}),
	}
}

// resolveBuiltin exposes the resolver self-reference. The optional
// bindings dict extends sc for the nested resolution. When raw is set the
// result stays a NodeValue.
func resolveBuiltin(name string, fn scope.ResolveFunc, sc *scope.Scope, raw bool) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var value starlark.Value
		var bindings starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &value, "bindings?", &bindings); err != nil {
			return nil, err
		}

		node, err := ToNode(value)
		if err != nil {
			return nil, err
		}

		additions := make(map[string]any)
		if bindings != starlark.None {
			dict, ok := bindings.(*starlark.Dict)
			if !ok {
				return nil, fmt.Errorf("%s: bindings must be a dict, got %s", b.Name(), bindings.Type())
			}
			for _, item := range dict.Items() {
				key, ok := starlark.AsString(item[0])
				if !ok {
					return nil, fmt.Errorf("%s: binding name %s is not a string", b.Name(), item[0])
				}
				additions[key] = item[1]
			}
		}

		out, err := fn(node, sc.Extend(additions))
		if err != nil {
			return nil, err
		}
		if raw {
			return &NodeValue{Node: out}, nil
		}
		return NodeToStarlark(out)
	})
}
