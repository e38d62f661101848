package engine

import (
	"gopkg.in/yaml.v3"
)

type fragmentKind int

const (
	fragMap fragmentKind = iota
	fragSeq
	fragScalar
)

// fragment is the output of one processing step of a mapping.
type fragment struct {
	kind fragmentKind
	node *yaml.Node
}

func fragmentOf(node *yaml.Node) fragment {
	switch node.Kind {
	case yaml.MappingNode:
		return fragment{kind: fragMap, node: node}
	case yaml.SequenceNode:
		return fragment{kind: fragSeq, node: node}
	default:
		return fragment{kind: fragScalar, node: node}
	}
}

// iterationFragment is fragmentOf for loop iterations, where a scalar
// result becomes a one-item sequence.
func iterationFragment(node *yaml.Node) fragment {
	f := fragmentOf(node)
	if f.kind == fragScalar {
		return fragment{kind: fragSeq, node: newSeq(node)}
	}
	return f
}

// mergeFragments combines the fragments of one mapping. Mappings are
// unioned with last-write-wins, sequences are concatenated, and a lone
// scalar stands for itself. Anything else is a structural error.
func mergeFragments(frags []fragment) (*yaml.Node, error) {
	if len(frags) == 0 {
		return newMap(), nil
	}
	if len(frags) == 1 && frags[0].kind == fragScalar {
		return frags[0].node, nil
	}

	kind := frags[0].kind
	for _, f := range frags[1:] {
		if f.kind != kind {
			return nil, ErrMixedMerge
		}
	}

	switch kind {
	case fragMap:
		return unionMaps(frags), nil
	case fragSeq:
		out := newSeq()
		for _, f := range frags {
			out.Content = append(out.Content, f.node.Content...)
		}
		return out, nil
	default:
		return nil, ErrMixedMerge
	}
}

// unionMaps keeps each key at its first position with its last value.
func unionMaps(frags []fragment) *yaml.Node {
	out := newMap()
	index := make(map[string]int)

	for _, f := range frags {
		for i := 0; i+1 < len(f.node.Content); i += 2 {
			k, v := f.node.Content[i], f.node.Content[i+1]
			id, comparable := keyID(k)
			if comparable {
				if pos, ok := index[id]; ok {
					out.Content[pos+1] = v
					continue
				}
				index[id] = len(out.Content)
			}
			out.Content = append(out.Content, k, v)
		}
	}
	return out
}

// keyID identifies scalar keys by tag and value. Non-scalar keys never
// collide.
func keyID(k *yaml.Node) (string, bool) {
	if k.Kind != yaml.ScalarNode {
		return "", false
	}
	return k.ShortTag() + "\x00" + k.Value, true
}

func newMap(content ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: content}
}

func newSeq(content ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: content}
}
