// Package document parses YAML document streams, runs them through the
// engine, and serializes the results.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/cameronsjo/yte/internal/engine"
)

// Indent is the serialization indent width.
const Indent = 2

// Parse decodes every document in r. Parser failures are format errors.
func Parse(r io.Reader) ([]*yaml.Node, error) {
	dec := yaml.NewDecoder(r)

	var docs []*yaml.Node
	for i := 0; ; i++ {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, engine.NewFormatError(fmt.Sprintf("document %d", i), err)
		}
		docs = append(docs, &doc)
	}
}

// Encode writes docs to w as a YAML stream.
func Encode(w io.Writer, docs []*yaml.Node) error {
	// An encoder that never started a stream fails on Close.
	if len(docs) == 0 {
		return nil
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(Indent)

	for i, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode document %d: %w", i, err)
		}
	}
	return enc.Close()
}

// Resolve runs every document through eng, each with a fresh root scope
// built from vars.
func Resolve(eng *engine.Engine, docs []*yaml.Node, vars map[string]any) ([]*yaml.Node, error) {
	out := make([]*yaml.Node, 0, len(docs))
	for _, doc := range docs {
		resolved, err := eng.ResolveDocument(doc, vars)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

// Render parses r, resolves each document and writes the result to w.
// Nothing is written when resolution fails.
func Render(r io.Reader, w io.Writer, eng *engine.Engine, vars map[string]any) error {
	docs, err := Parse(r)
	if err != nil {
		return err
	}

	resolved, err := Resolve(eng, docs, vars)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, resolved); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// RenderBytes is Render for in-memory input.
func RenderBytes(data []byte, eng *engine.Engine, vars map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(bytes.NewReader(data), &buf, eng, vars); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
