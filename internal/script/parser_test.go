/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleScript = `Title: The Lighthouse
Author: M. Keeper

== Arrival ==
Mood: grey
Time: dusk
The boat scrapes onto the shingle.
@BGM [[waves.ogg]]

[Keeper|Old Tom]
You're late.
(beat)
[Mara]
The storm.
[&]
It held us up.

// cut the next line?
%PROMPT "Follow him", 'Stay, and wait'

== The Lamp ==
@SFX Gears turn
Light sweeps the sea.
`

func TestParseScenarioA(t *testing.T) {
	text := "Title: A\n\n== Scene 1 ==\nHello.\n\n@BGM Song\n"
	got := Parse(text)

	var meta Metadata
	meta.Set("Title", "A")
	want := &Document{
		Metadata: meta,
		Scenes: []Scene{{
			TextRange: TextRange{From: 10, To: len(text)},
			Name:      "Scene 1",
			Items: []SceneItem{
				ActionLine{TextRange: TextRange{From: 24, To: 30}, Content: RichText{Parts: []RichTextPart{Text{Value: "Hello."}}}},
				TaggedAction{TextRange: TextRange{From: 32, To: 41}, Tag: "BGM", Content: RichText{Parts: []RichTextPart{Text{Value: "Song"}}}},
			},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseScenarioBContinuation(t *testing.T) {
	doc := Parse("[Alice]\nHi.\n[&]\nBye.\n")
	if len(doc.Scenes) != 0 {
		t.Fatalf("expected no scenes, got %d", len(doc.Scenes))
	}
	var lines []DialogueLine
	var speakers []Speaker
	for _, it := range doc.Orphans {
		switch v := it.(type) {
		case DialogueLine:
			lines = append(lines, v)
		case Speaker:
			speakers = append(speakers, v)
		}
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 dialogue lines, got %d", len(lines))
	}
	for i, dl := range lines {
		if dl.Speaker == nil || dl.Speaker.Referent != "Alice" {
			t.Fatalf("line %d attributed to %+v", i, dl.Speaker)
		}
	}
	if len(speakers) != 2 || speakers[0].Continued || !speakers[1].Continued {
		t.Fatalf("unexpected speakers %+v", speakers)
	}
	if lines[1].Speaker.From != 12 {
		t.Fatalf("continued line should point at the [&] line, got %+v", lines[1].Speaker.TextRange)
	}
}

func TestParseScenarioCMalformedHeader(t *testing.T) {
	doc := Parse("=Scene=\nHello.\n")
	if len(doc.Scenes) != 0 {
		t.Fatalf("malformed header produced %d scenes", len(doc.Scenes))
	}
	want := []SceneItem{
		ActionLine{TextRange: TextRange{From: 0, To: 7}, Content: RichText{Parts: []RichTextPart{Text{Value: "=Scene="}}}},
		ActionLine{TextRange: TextRange{From: 8, To: 14}, Content: RichText{Parts: []RichTextPart{Text{Value: "Hello."}}}},
	}
	if diff := cmp.Diff(want, doc.Orphans); diff != "" {
		t.Fatalf("orphans mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCutOffSceneResetsDialogue(t *testing.T) {
	doc := Parse("== S ==\n[Bob]\n=oops\nHi.\n")
	if len(doc.Scenes) != 1 || doc.Scenes[0].To != 14 || len(doc.Scenes[0].Items) != 1 {
		t.Fatalf("unexpected scenes %+v", doc.Scenes)
	}
	want := []SceneItem{
		ActionLine{TextRange: TextRange{From: 14, To: 19}, Content: RichText{Parts: []RichTextPart{Text{Value: "=oops"}}}},
		ActionLine{TextRange: TextRange{From: 20, To: 23}, Content: RichText{Parts: []RichTextPart{Text{Value: "Hi."}}}},
	}
	if diff := cmp.Diff(want, doc.Orphans); diff != "" {
		t.Fatalf("orphans mismatch (-want +got):\n%s", diff)
	}
}

func TestStepSceneBoundaries(t *testing.T) {
	bob := &Reference{Referent: "Bob"}
	inDialogue := State{Mode: ModeDialogue, LastSpeaker: bob}
	cases := []struct {
		line    string
		st      State
		inScene bool
		kind    ConstructKind
		now     bool
	}{
		{"== S ==", OrphanStart(), false, ConstructHeader, true},
		{"== T ==", inDialogue, true, ConstructHeader, true},
		{"=oops", inDialogue, true, ConstructAction, false},
		{"=oops", inDialogue, false, ConstructDialogue, false},
		{"Hi.", inDialogue, true, ConstructDialogue, true},
	}
	for _, tc := range cases {
		c, next, now := Step(tc.line, tc.st, tc.inScene)
		if c.Kind != tc.kind || now != tc.now {
			t.Fatalf("Step(%q, inScene=%v) = %v, %v; want %v, %v", tc.line, tc.inScene, c.Kind, now, tc.kind, tc.now)
		}
		if tc.line == "=oops" && tc.inScene && next.LastSpeaker != nil {
			t.Fatalf("cut-off scene should drop the speaker, got %+v", next.LastSpeaker)
		}
	}
}

func TestParseSampleScript(t *testing.T) {
	doc := Parse(sampleScript)
	if got := doc.Metadata.Keys(); !cmp.Equal(got, []string{"Title", "Author"}) {
		t.Fatalf("document keys = %v", got)
	}
	if len(doc.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(doc.Scenes))
	}
	arrival := doc.Scenes[0]
	if arrival.Name != "Arrival" || arrival.Metadata.Value("Mood") != "grey" || arrival.Metadata.Value("Time") != "dusk" {
		t.Fatalf("unexpected first scene %q %+v", arrival.Name, arrival.Metadata.Map())
	}
	var kinds []string
	for _, it := range arrival.Items {
		kinds = append(kinds, it.Kind())
	}
	wantKinds := []string{
		KindActionLine, KindTaggedAction,
		KindSpeaker, KindDialogueLine, KindDialogueLine,
		KindSpeaker, KindDialogueLine, KindSpeaker, KindDialogueLine,
		KindPrompt,
	}
	if diff := cmp.Diff(wantKinds, kinds); diff != "" {
		t.Fatalf("item kinds mismatch (-want +got):\n%s", diff)
	}
	p := arrival.Items[len(arrival.Items)-1].(Prompt)
	if diff := cmp.Diff([]string{"Follow him", "Stay, and wait"}, p.Options); diff != "" {
		t.Fatalf("prompt options mismatch (-want +got):\n%s", diff)
	}
	if got := doc.Speakers(); !cmp.Equal(got, []string{"Keeper", "Mara"}) {
		t.Fatalf("Speakers() = %v", got)
	}
	if got := len(doc.Dialogue("Mara")); got != 2 {
		t.Fatalf("Mara has %d lines, want 2", got)
	}
	if cues := doc.Cues("BGM"); len(cues) != 1 || len(cues[0].Content.References()) != 1 {
		t.Fatalf("unexpected BGM cues %+v", cues)
	}
	if _, ok := doc.Scene("The Lamp"); !ok {
		t.Fatalf("scene lookup failed")
	}
}

func TestParseSceneMetadataEndsAtFirstItem(t *testing.T) {
	doc := Parse("== S ==\nMood: calm\nShe waits.\nNote: this is action\n")
	sc := doc.Scenes[0]
	if sc.Metadata.Len() != 1 {
		t.Fatalf("expected 1 scene property, got %v", sc.Metadata.Map())
	}
	if len(sc.Items) != 2 || sc.Items[1].Kind() != KindActionLine {
		t.Fatalf("late property line should be action, got %+v", sc.Items)
	}
}

func TestParseDeterministic(t *testing.T) {
	a, b := Parse(sampleScript), Parse(sampleScript)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("two parses differ (-first +second):\n%s", diff)
	}
}

func TestParseScenesOrderedAndSliceable(t *testing.T) {
	text := sampleScript + "=broken=\nloose line\n== Coda ==\nEnd.\n"
	doc := Parse(text)
	if len(doc.Scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(doc.Scenes))
	}
	for i, sc := range doc.Scenes {
		if sc.From > sc.To {
			t.Fatalf("scene %d has inverted range %+v", i, sc.TextRange)
		}
		if i > 0 && doc.Scenes[i-1].To > sc.From {
			t.Fatalf("scenes %d and %d overlap", i-1, i)
		}
		body := sc.Slice(text)
		first, rest, _ := strings.Cut(body, "\n")
		if c, _ := Classify(first, State{}); c.Kind != ConstructHeader || c.Label != sc.Name {
			t.Fatalf("scene %d slice starts with %q", i, first)
		}
		for _, ln := range strings.Split(rest, "\n") {
			if c, _ := Classify(ln, State{}); c.Kind == ConstructHeader {
				t.Fatalf("scene %d slice runs into header %q", i, ln)
			}
		}
	}
	if len(doc.Orphans) != 2 {
		t.Fatalf("expected 2 orphans after the malformed header, got %d", len(doc.Orphans))
	}
}

func TestItemRangesMapToSource(t *testing.T) {
	doc := Parse(sampleScript)
	for _, sc := range doc.Scenes {
		for _, it := range sc.Items {
			r := it.Range()
			if r.From < sc.From || r.To > sc.To {
				t.Fatalf("%s %+v outside scene %+v", it.Kind(), r, sc.TextRange)
			}
			if a, ok := it.(ActionLine); ok && r.Slice(sampleScript) != a.Content.AsText() {
				t.Fatalf("action range slices %q, content %q", r.Slice(sampleScript), a.Content.AsText())
			}
		}
	}
}

func TestTextRangeIntersects(t *testing.T) {
	line := TextRange{From: 10, To: 20}
	cases := []struct {
		name string
		sel  TextRange
		want bool
	}{
		{"cursor at start", TextRange{From: 10, To: 10}, true},
		{"cursor at end", TextRange{From: 20, To: 20}, true},
		{"cursor before", TextRange{From: 9, To: 9}, false},
		{"selection ending at start", TextRange{From: 4, To: 10}, false},
		{"selection ending inside", TextRange{From: 4, To: 11}, true},
		{"selection starting at end", TextRange{From: 20, To: 25}, true},
		{"selection after", TextRange{From: 21, To: 25}, false},
	}
	for _, c := range cases {
		if got := line.Intersects(c.sel); got != c.want {
			t.Fatalf("%s: Intersects(%v) = %v, want %v", c.name, c.sel, got, c.want)
		}
	}
}
