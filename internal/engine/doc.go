// Package engine resolves YAML template trees into plain data trees.
//
// A template is ordinary YAML in which some keys and scalars carry
// directives. Resolution walks the tree depth-first, in key order, and
// replaces every directive with the data it produces:
//
//   - Expression scalars (?expr) are evaluated against the current scope
//   - ?if / ?elif / ?else chains select at most one branch, first match wins
//   - ?for <targets> in <iterable> expands its value once per item
//   - __definitions__ executes statements that extend the scope
//   - __variables__ binds names for later expressions
//
// # Merge Rule
//
// Every step of a mapping yields a fragment. Fragments are combined into
// the mapping's value: mappings are unioned (last write wins), sequences are
// concatenated, and a single scalar fragment stands for itself:
//
//	?for i in range(2):
//	  ?"key{}".format(i): 1
//	  ?if i == 1:
//	    foo: true
//
// resolves to {key0: 1, key1: 1, foo: true}. Mixing mapping and sequence
// fragments in one mapping is a structural error.
//
// # Sequences
//
// A sequence item that is a mapping with a loop or conditional key at its
// top level is spliced into the parent when it resolves to a sequence, and
// dropped when it produces nothing. Every other item stays a single item.
//
// The expression language is pluggable through Evaluator.
package engine
