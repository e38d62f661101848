package starlark

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"

	"github.com/cameronsjo/yte/internal/scope"
)

func evalString(t *testing.T, ev *Evaluator, expr string, sc *scope.Scope) string {
	t.Helper()
	n, err := ev.Eval(expr, sc)
	require.NoError(t, err)
	require.Equal(t, yaml.ScalarNode, n.Kind)
	return n.Value
}

func TestEvaluator_Eval(t *testing.T) {
	ev := NewEvaluator()
	sc := scope.New(map[string]any{"name": "web", "replicas": 3})

	assert.Equal(t, "3", evalString(t, ev, "1 + 2", nil))
	assert.Equal(t, "web-3", evalString(t, ev, `"%s-%d" % (name, replicas)`, sc))
	assert.Equal(t, "WEB", evalString(t, ev, "  name.upper()  ", sc))
}

func TestEvaluator_EvalError(t *testing.T) {
	ev := NewEvaluator()

	_, err := ev.Eval("undefined_name", nil)
	assert.ErrorContains(t, err, "undefined_name")

	_, err = ev.Eval("1 +", nil)
	assert.Error(t, err)

	_, err = ev.Eval("len", nil)
	assert.ErrorContains(t, err, "cannot convert")
}

func TestEvaluator_Test(t *testing.T) {
	ev := NewEvaluator()

	tests := []struct {
		expr string
		want bool
	}{
		{expr: "True", want: true},
		{expr: "False", want: false},
		{expr: "[]", want: false},
		{expr: "[0]", want: true},
		{expr: "''", want: false},
		{expr: "None", want: false},
		{expr: "1 < 2 and 'x' in 'xyz'", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ev.Test(tt.expr, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_Exec(t *testing.T) {
	ev := NewEvaluator()
	sc := scope.New(map[string]any{"base": 10})

	next, err := ev.Exec("def add(x):\n    return base + x\n\nTOTAL = add(5)\n", sc)
	require.NoError(t, err)

	assert.Equal(t, "15", evalString(t, ev, "TOTAL", next))
	assert.Equal(t, "11", evalString(t, ev, "add(1)", next))

	// The original scope is untouched.
	_, ok := sc.Lookup("TOTAL")
	assert.False(t, ok)
}

func TestEvaluator_ExecStatements(t *testing.T) {
	ev := NewEvaluator()

	next, err := ev.Exec("items = []\nfor i in range(3):\n    items.append(i * i)\n", scope.New(nil))
	require.NoError(t, err)

	n, err := ev.Eval("items", next)
	require.NoError(t, err)
	var got []int
	require.NoError(t, n.Decode(&got))
	assert.Equal(t, []int{0, 1, 4}, got)
}

func TestEvaluator_ExecCannotRebindScopeName(t *testing.T) {
	ev := NewEvaluator()
	sc := scope.New(map[string]any{"x": 1})

	// Assignment makes x a file global, hiding the predeclared value.
	_, err := ev.Exec("x = x + 1", sc)
	assert.ErrorContains(t, err, "referenced before assignment")

	next, err := ev.Exec("y = x + 1", sc)
	require.NoError(t, err)
	assert.Equal(t, "2", evalString(t, ev, "y", next))
}

func TestEvaluator_ExecError(t *testing.T) {
	_, err := NewEvaluator().Exec("def broken(:", scope.New(nil))
	assert.Error(t, err)
}

func TestEvaluator_Loop(t *testing.T) {
	ev := NewEvaluator()

	var seen []string
	resolver := func(node *yaml.Node, sc *scope.Scope) (*yaml.Node, error) {
		seen = append(seen, node.Value)
		v, ok := sc.Lookup("i")
		require.True(t, ok)
		return ToNode(v.(starlark.Value))
	}

	body := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "body"}
	sc := scope.New(nil).WithResolver(resolver)

	nodes, err := ev.Loop("for i in range(3) if i != 1", body, sc)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "0", nodes[0].Value)
	assert.Equal(t, "2", nodes[1].Value)
	assert.Equal(t, []string{"body", "body"}, seen)
}

func TestEvaluator_LoopNeedsResolver(t *testing.T) {
	_, err := NewEvaluator().Loop("for i in range(1)", &yaml.Node{}, scope.New(nil))
	assert.ErrorContains(t, err, "no resolver")
}

func TestLoopTargets(t *testing.T) {
	tests := []struct {
		clause  string
		want    []string
		wantErr bool
	}{
		{clause: "for i in range(2)", want: []string{"i"}},
		{clause: "for k, v in d.items()", want: []string{"k", "v"}},
		{clause: "for (a, [b, c]) in xs for d in ys if d", want: []string{"a", "b", "c", "d"}},
		{clause: "for x in xs for x in ys", want: []string{"x"}},
		{clause: "for in xs", wantErr: true},
		{clause: "if True", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.clause, func(t *testing.T) {
			got, err := loopTargets(tt.clause)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.star"), []byte("def greet(n):\n    return \"hi \" + n\n"), 0o644))

	ev := NewEvaluator(WithBaseDir(dir))
	next, err := ev.Exec(`load("lib.star", "greet")`, scope.New(nil))
	require.NoError(t, err)
	assert.Equal(t, "hi bob", evalString(t, ev, `greet("bob")`, next))

	// Cached modules load again without error.
	_, err = ev.Exec(`load("lib.star", hello = "greet")`, next)
	require.NoError(t, err)
}

func TestEvaluator_LoadMissing(t *testing.T) {
	ev := NewEvaluator(WithBaseDir(t.TempDir()))
	_, err := ev.Exec(`load("missing.star", "x")`, scope.New(nil))
	assert.ErrorContains(t, err, "missing.star")
}

func TestEvaluator_LoadCycle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.star"), []byte("load(\"b.star\", \"b\")\na = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.star"), []byte("load(\"a.star\", \"a\")\nb = 1\n"), 0o644))

	ev := NewEvaluator(WithBaseDir(dir))
	_, err := ev.Exec(`load("a.star", "a")`, scope.New(nil))
	assert.ErrorContains(t, err, "cycle")
}

func TestEvaluator_PrintLogs(t *testing.T) {
	var buf bytes.Buffer
	ev := NewEvaluator(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	_, err := ev.Eval(`print("hello from template")`, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "hello from template")
}

func TestEvaluator_WithBuiltins(t *testing.T) {
	ev := NewEvaluator(WithBuiltins(starlark.StringDict{"answer": starlark.MakeInt(42)}))
	assert.Equal(t, "42", evalString(t, ev, "answer", nil))
}

func TestBuiltins(t *testing.T) {
	t.Setenv("YTE_TEST_VALUE", "from-env")
	ev := NewEvaluator()

	tests := []struct {
		name string
		expr string
		want string
	}{
		{name: "getenv", expr: `getenv("YTE_TEST_VALUE")`, want: "from-env"},
		{name: "getenv default", expr: `getenv("YTE_TEST_UNSET_VALUE", "fallback")`, want: "fallback"},
		{name: "tpl", expr: `tpl("{{ .name | upper }}-{{ .n }}", {"name": "web", "n": 2})`, want: "WEB-2"},
		{name: "tpl sprig", expr: `tpl("{{ list 1 2 3 | join \",\" }}")`, want: "1,2,3"},
		{name: "json", expr: `json.encode({"a": [1, 2]})`, want: `{"a":[1,2]}`},
		{name: "math", expr: `str(math.floor(2.7))`, want: "2"},
		{name: "struct", expr: `struct(a = 1).a + 1`, want: "2"},
		{name: "uuid length", expr: `len(uuid())`, want: "36"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalString(t, ev, tt.expr, nil))
		})
	}
}

func TestBuiltins_UUIDUnique(t *testing.T) {
	ev := NewEvaluator()
	a := evalString(t, ev, "uuid()", nil)
	b := evalString(t, ev, "uuid()", nil)
	assert.NotEqual(t, a, b)
}

func TestBuiltins_GetenvMissingIsNone(t *testing.T) {
	n, err := NewEvaluator().Eval(`getenv("YTE_TEST_UNSET_VALUE")`, nil)
	require.NoError(t, err)
	assert.Equal(t, "!!null", n.Tag)
}

func TestBuiltins_TplError(t *testing.T) {
	_, err := NewEvaluator().Eval(`tpl("{{ .x ")`, nil)
	assert.ErrorContains(t, err, "parse template")
}

func TestResolveBuiltin(t *testing.T) {
	var got *scope.Scope
	resolver := func(node *yaml.Node, sc *scope.Scope) (*yaml.Node, error) {
		got = sc
		return node, nil
	}
	sc := scope.New(nil).WithResolver(resolver)

	ev := NewEvaluator()
	n, err := ev.Eval(`yte_resolve(["a", "b"], {"x": 1})`, sc)
	require.NoError(t, err)
	assert.Equal(t, yaml.SequenceNode, n.Kind)

	v, ok := got.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "1", v.(starlark.Value).String())

	_, err = ev.Eval(`yte_resolve(1, [1])`, sc)
	assert.ErrorContains(t, err, "bindings must be a dict")
}
