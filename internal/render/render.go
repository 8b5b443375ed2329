/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

// MaxDepth bounds recursion; deeper values render as an ellipsis leaf so a
// cyclic value cannot recurse forever.
const MaxDepth = 32

// Node is one element of the visual tree. A node without children and
// without a label is a leaf holding Text.
type Node struct {
	Kind     Kind
	Label    string
	Text     string
	Children []*Node
	// Collapsible marks sequence containers below the top level.
	Collapsible bool
}

// Leaf reports whether the node carries text only.
func (n *Node) Leaf() bool { return n != nil && len(n.Children) == 0 && n.Label == "" }

// Output is the result of Render: either plain text or a tree.
type Output struct {
	Text string
	Tree *Node
}

// IsTree reports whether the value rendered to a visual tree.
func (o Output) IsTree() bool { return o.Tree != nil }

// String returns the text, or the tree drawn with box characters.
func (o Output) String() string {
	if o.Tree == nil {
		return o.Text
	}
	return o.Tree.String()
}

// Render converts v into text or a visual tree. It is total: every value
// produces some output.
func Render(v any) Output {
	n := build(v, 0)
	if n.Leaf() {
		return Output{Text: n.Text}
	}
	return Output{Tree: n}
}

// Build returns the tree node for v without collapsing leaves into text.
func Build(v any) *Node { return build(v, 0) }

func build(v any, depth int) *Node {
	if depth > MaxDepth {
		return &Node{Kind: KindScalar, Text: "…"}
	}
	switch k := Classify(v); k {
	case KindRenderable:
		if nr, ok := v.(NodeRenderer); ok {
			n := &Node{Kind: k, Label: nr.RenderLabel()}
			for _, c := range nr.RenderChildren() {
				n.Children = append(n.Children, build(c, depth+1))
			}
			return n
		}
		return &Node{Kind: k, Text: v.(TextRenderer).RenderText()}
	case KindSequence:
		return sequence(k, elems(v), depth)
	case KindSet:
		items := setKeys(v)
		sort.SliceStable(items, func(i, j int) bool { return scalarText(items[i]) < scalarText(items[j]) })
		return sequence(k, items, depth)
	case KindMapping:
		n := &Node{Kind: k, Label: typeLabel(v)}
		for _, f := range fields(v) {
			n.Children = append(n.Children, &Node{Kind: k, Label: f.key, Children: []*Node{build(f.value, depth+1)}})
		}
		if len(n.Children) == 0 {
			return &Node{Kind: k, Text: "{}"}
		}
		return n
	case KindCallable:
		return &Node{Kind: k, Text: funcText(v)}
	default:
		return &Node{Kind: KindScalar, Text: scalarText(v)}
	}
}

func sequence(k Kind, items []any, depth int) *Node {
	n := &Node{Kind: k}
	if depth > 0 {
		n.Collapsible = true
		n.Label = fmt.Sprintf("[%d]", len(items))
	}
	for _, it := range items {
		n.Children = append(n.Children, build(it, depth+1))
	}
	if len(items) == 0 {
		return &Node{Kind: k, Text: "[]"}
	}
	return n
}

func deref(v any) reflect.Value {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv
}

func elems(v any) []any {
	rv := deref(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func setKeys(v any) []any {
	rv := deref(v)
	out := make([]any, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		if iter.Value().Kind() == reflect.Bool && !iter.Value().Bool() {
			continue
		}
		out = append(out, iter.Key().Interface())
	}
	return out
}

type field struct {
	key   string
	value any
}

// fields lists map entries sorted by key, or exported struct fields in
// declaration order.
func fields(v any) []field {
	rv := deref(v)
	var out []field
	switch rv.Kind() {
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			out = append(out, field{key: scalarText(iter.Key().Interface()), value: iter.Value().Interface()})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			out = append(out, field{key: t.Field(i).Name, value: rv.Field(i).Interface()})
		}
	}
	return out
}

func typeLabel(v any) string {
	rv := deref(v)
	if rv.Kind() == reflect.Struct {
		return rv.Type().Name()
	}
	return ""
}

func funcText(v any) string {
	rv := deref(v)
	if rv.IsNil() {
		return "null"
	}
	name := "func"
	if fn := runtime.FuncForPC(rv.Pointer()); fn != nil {
		name = fn.Name()
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
	}
	return name + " " + rv.Type().String()
}

func scalarText(v any) string {
	if isNilPointer(v) {
		return "null"
	}
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []byte:
		return string(x)
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%+v", v)
}

var (
	labelStyle  = lipgloss.NewStyle().Bold(true)
	branchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Tree converts the node into a lipgloss tree.
func (n *Node) Tree() *tree.Tree {
	t := tree.Root(n.title()).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(branchStyle).
		RootStyle(labelStyle)
	for _, c := range n.Children {
		if c.Leaf() {
			t.Child(c.Text)
			continue
		}
		t.Child(c.Tree())
	}
	return t
}

func (n *Node) title() string {
	if n.Collapsible {
		return "▾ " + n.Label
	}
	return n.Label
}

// String draws the tree. Leaves print their text.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	if n.Leaf() {
		return n.Text
	}
	return n.Tree().String()
}
