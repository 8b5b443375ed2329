/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"errors"
	"strings"
	"testing"

	"gonovelscript/internal/script"
)

type loop struct {
	Name string
	Next *loop
}

func TestClassify(t *testing.T) {
	cases := []struct {
		v    any
		want Kind
	}{
		{nil, KindScalar},
		{42, KindScalar},
		{"text", KindScalar},
		{errors.New("boom"), KindScalar},
		{script.Text{Value: "x"}, KindRenderable},
		{&script.Document{}, KindRenderable},
		{[]int{1}, KindSequence},
		{[2]string{"a", "b"}, KindSequence},
		{map[string]struct{}{"a": {}}, KindSet},
		{map[int]bool{1: true}, KindSet},
		{map[string]any{"a": 1}, KindMapping},
		{struct{ A int }{1}, KindMapping},
		{strings.ToUpper, KindCallable},
		{(*loop)(nil), KindScalar},
		{(*script.Scene)(nil), KindScalar},
		{(*script.Reference)(nil), KindScalar},
	}
	for _, tc := range cases {
		if got := Classify(tc.v); got != tc.want {
			t.Fatalf("Classify(%#v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestRenderScalarIsText(t *testing.T) {
	out := Render("hello")
	if out.IsTree() || out.String() != "hello" {
		t.Fatalf("unexpected output %+v", out)
	}
	if got := Render(nil).String(); got != "null" {
		t.Fatalf("nil rendered as %q", got)
	}
	if got := Render(3.5).String(); got != "3.5" {
		t.Fatalf("float rendered as %q", got)
	}
}

func TestRenderNilRenderablePointers(t *testing.T) {
	if got := Render((*script.Scene)(nil)).String(); got != "null" {
		t.Fatalf("nil scene rendered as %q", got)
	}
	out := Render([]any{(*script.Reference)(nil), script.Text{Value: "x"}})
	if !out.IsTree() || !strings.Contains(out.String(), "null") {
		t.Fatalf("nil reference in sequence rendered as %q", out.String())
	}
	var line script.DialogueLine
	if got := Render(line.Speaker).String(); got != "null" {
		t.Fatalf("missing speaker rendered as %q", got)
	}
}

func TestRenderSequenceNesting(t *testing.T) {
	n := Build([]any{"a", []int{1, 2}})
	if n.Collapsible || len(n.Children) != 2 {
		t.Fatalf("top-level sequence: %+v", n)
	}
	inner := n.Children[1]
	if !inner.Collapsible || inner.Label != "[2]" || len(inner.Children) != 2 {
		t.Fatalf("nested sequence should be a collapsible container, got %+v", inner)
	}
	s := Render([]any{"a", []int{1, 2}}).String()
	for _, want := range []string{"a", "[2]", "1", "2"} {
		if !strings.Contains(s, want) {
			t.Fatalf("tree output %q missing %q", s, want)
		}
	}
}

func TestRenderMappingSortedKeys(t *testing.T) {
	n := Build(map[string]int{"b": 2, "a": 1, "c": 3})
	var keys []string
	for _, c := range n.Children {
		keys = append(keys, c.Label)
		if len(c.Children) != 1 || !c.Children[0].Leaf() {
			t.Fatalf("key %q should hold one leaf, got %+v", c.Label, c.Children)
		}
	}
	if strings.Join(keys, ",") != "a,b,c" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestRenderSetSorted(t *testing.T) {
	n := Build(map[string]struct{}{"zeta": {}, "alpha": {}})
	if n.Kind != KindSet || len(n.Children) != 2 || n.Children[0].Text != "alpha" {
		t.Fatalf("unexpected set node %+v", n)
	}
}

func TestRenderCallable(t *testing.T) {
	out := Render(strings.ToUpper).String()
	if !strings.Contains(out, "ToUpper") || !strings.Contains(out, "func(string) string") {
		t.Fatalf("callable rendered as %q", out)
	}
}

func TestRenderCycleTerminates(t *testing.T) {
	l := &loop{Name: "self"}
	l.Next = l
	if s := Render(l).String(); !strings.Contains(s, "…") {
		t.Fatalf("expected depth cut-off marker in %q", s)
	}
}

func TestRenderScriptNodes(t *testing.T) {
	doc := script.Parse("Title: A\n\n== Scene 1 ==\nHello.\n\n@BGM Song\n")
	n := Build(doc)
	if n.Label != "Document" {
		t.Fatalf("document label %q", n.Label)
	}
	out := Render(doc.Cues("BGM"))
	if !out.IsTree() || len(out.Tree.Children) != 1 {
		t.Fatalf("expected one grouped entry, got %+v", out)
	}
	entry := out.Tree.Children[0]
	if entry.Label != "BGM" || len(entry.Children) != 1 || entry.Children[0].Text != "Song" {
		t.Fatalf("unexpected cue entry %+v", entry)
	}
	if s := out.String(); !strings.Contains(s, "BGM") || !strings.Contains(s, "Song") {
		t.Fatalf("tree text %q", s)
	}
}
