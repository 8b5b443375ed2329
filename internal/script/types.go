/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "strings"

// TextRange is a half-open [From, To) byte range into the source text.
type TextRange struct {
	From int `json:"from" expr:"from"`
	To   int `json:"to" expr:"to"`
}

// Len returns the number of bytes covered by the range.
func (r TextRange) Len() int { return r.To - r.From }

// Contains reports whether pos lies inside the half-open range.
func (r TextRange) Contains(pos int) bool { return pos >= r.From && pos < r.To }

// Intersects reports whether o touches r. A collapsed range (a cursor)
// intersects a range it touches at either end; a non-empty o stops short of
// its To, so a selection ending where r starts does not touch r.
func (r TextRange) Intersects(o TextRange) bool {
	if o.From == o.To {
		return o.From >= r.From && o.From <= r.To
	}
	return o.From <= r.To && o.To > r.From
}

// Slice returns the text covered by the range, clamped to the text bounds.
func (r TextRange) Slice(text string) string {
	from, to := r.From, r.To
	if from < 0 {
		from = 0
	}
	if to > len(text) {
		to = len(text)
	}
	if from >= to {
		return ""
	}
	return text[from:to]
}

// Position is implemented by every node that maps back to source text.
type Position interface {
	Range() TextRange
}

// Range returns the receiver, so structs embedding TextRange implement Position.
func (r TextRange) Range() TextRange { return r }

// RichText is an ordered sequence of inline parts.
type RichText struct {
	Parts []RichTextPart `json:"parts" expr:"parts"`
}

// RichTextPart is one of Text, Formatting or Reference.
type RichTextPart interface {
	richTextPart()
	// AsText returns the display text of the part without markup.
	AsText() string
}

// Text is a run of unformatted characters.
type Text struct {
	Value string `json:"value" expr:"value"`
}

// Formatting wraps nested rich text in an emphasis marker ("**" or "*").
type Formatting struct {
	TextRange
	Marker  string   `json:"marker" expr:"marker"`
	Content RichText `json:"content" expr:"content"`
}

// Reference points at another document or concept. Wikilinks produce
// Referent/Alias from [[target|alias]]; plain links [label](url) set
// External and use the label as Alias.
type Reference struct {
	TextRange
	Referent string `json:"referent" expr:"referent"`
	Alias    string `json:"alias,omitempty" expr:"alias"`
	External bool   `json:"external,omitempty" expr:"external"`
}

func (Text) richTextPart()       {}
func (Formatting) richTextPart() {}
func (Reference) richTextPart()  {}

func (t Text) AsText() string       { return t.Value }
func (f Formatting) AsText() string { return f.Content.AsText() }

// AsText returns the alias when present, else the referent.
func (r Reference) AsText() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Referent
}

// AsText concatenates the display text of all parts.
func (rt RichText) AsText() string {
	if len(rt.Parts) == 1 {
		return rt.Parts[0].AsText()
	}
	var b strings.Builder
	for _, p := range rt.Parts {
		b.WriteString(p.AsText())
	}
	return b.String()
}

// References returns every reference in the rich text, including those
// nested inside formatting, in source order.
func (rt RichText) References() []Reference {
	var out []Reference
	for _, p := range rt.Parts {
		switch v := p.(type) {
		case Reference:
			out = append(out, v)
		case Formatting:
			out = append(out, v.Content.References()...)
		}
	}
	return out
}

// Speaker switches dialogue attribution. Continued is set for the "[&]"
// continuation marker, in which case Referent/Alias are copied from the
// previous speaker.
type Speaker struct {
	Reference
	Continued bool `json:"continued,omitempty" expr:"continued"`
}

// Name is the display name of the speaker.
func (s Speaker) Name() string { return s.AsText() }

// SceneItem is the closed set of constructs a scene may contain.
type SceneItem interface {
	Position
	sceneItem()
	// Kind names the variant, e.g. "ActionLine".
	Kind() string
}

// ActionLine is a narrative line outside dialogue mode.
type ActionLine struct {
	TextRange
	Content RichText `json:"content" expr:"content"`
}

// DialogueLine is a line spoken by the current speaker.
type DialogueLine struct {
	TextRange
	Content RichText `json:"content" expr:"content"`
	// Speaker is the attribution in effect when the line was parsed.
	Speaker *Reference `json:"speaker,omitempty" expr:"speaker"`
}

// TaggedAction models "@TAG free text", e.g. a background music cue.
type TaggedAction struct {
	TextRange
	Tag     string   `json:"tag" expr:"tag"`
	Content RichText `json:"content" expr:"content"`
}

// Prompt lists reader choices from a "%PROMPT a, b" line.
type Prompt struct {
	TextRange
	Options []string `json:"options" expr:"options"`
}

func (ActionLine) sceneItem()   {}
func (DialogueLine) sceneItem() {}
func (TaggedAction) sceneItem() {}
func (Speaker) sceneItem()      {}
func (Prompt) sceneItem()       {}

// Item kind names, shared with the query language.
const (
	KindActionLine   = "ActionLine"
	KindDialogueLine = "DialogueLine"
	KindTaggedAction = "TaggedAction"
	KindSpeaker      = "Speaker"
	KindPrompt       = "Prompt"
	KindText         = "Text"
	KindFormatting   = "Formatting"
	KindReference    = "Reference"
)

func (ActionLine) Kind() string   { return KindActionLine }
func (DialogueLine) Kind() string { return KindDialogueLine }
func (TaggedAction) Kind() string { return KindTaggedAction }
func (Speaker) Kind() string      { return KindSpeaker }
func (Prompt) Kind() string       { return KindPrompt }

// Scene is a header-delimited section of the script.
type Scene struct {
	TextRange
	Name     string      `json:"name" expr:"name"`
	Metadata Metadata    `json:"metadata" expr:"metadata"`
	Items    []SceneItem `json:"items" expr:"items"`
}

// Document is the result of one parse pass. It is never mutated after
// construction; the next parse replaces it.
type Document struct {
	Metadata Metadata `json:"metadata" expr:"metadata"`
	Scenes   []Scene  `json:"scenes" expr:"scenes"`
	// Orphans are items on lines that belong to no scene, such as text
	// following a malformed header.
	Orphans []SceneItem `json:"orphans,omitempty" expr:"orphans"`
}

// Cues returns every tagged action with the given tag across all scenes, in
// document order. Tag comparison is exact.
func (d *Document) Cues(tag string) []TaggedAction {
	if d == nil {
		return nil
	}
	var out []TaggedAction
	for _, sc := range d.Scenes {
		for _, it := range sc.Items {
			if ta, ok := it.(TaggedAction); ok && ta.Tag == tag {
				out = append(out, ta)
			}
		}
	}
	return out
}

// Speakers returns the distinct speaker names in order of first appearance.
// Continuation markers are not counted as new speakers.
func (d *Document) Speakers() []string {
	if d == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, sc := range d.Scenes {
		for _, it := range sc.Items {
			sp, ok := it.(Speaker)
			if !ok || sp.Continued || sp.Referent == "" {
				continue
			}
			if _, dup := seen[sp.Referent]; dup {
				continue
			}
			seen[sp.Referent] = struct{}{}
			out = append(out, sp.Referent)
		}
	}
	return out
}

// Dialogue returns the dialogue lines attributed to the speaker referent.
func (d *Document) Dialogue(referent string) []DialogueLine {
	if d == nil {
		return nil
	}
	var out []DialogueLine
	for _, sc := range d.Scenes {
		for _, it := range sc.Items {
			if dl, ok := it.(DialogueLine); ok && dl.Speaker != nil && dl.Speaker.Referent == referent {
				out = append(out, dl)
			}
		}
	}
	return out
}

// Scene looks up the first scene with the given name.
func (d *Document) Scene(name string) (Scene, bool) {
	if d == nil {
		return Scene{}, false
	}
	for _, sc := range d.Scenes {
		if sc.Name == name {
			return sc, true
		}
	}
	return Scene{}, false
}

// SceneAt returns the index of the scene containing pos, or -1.
func (d *Document) SceneAt(pos int) int {
	if d == nil {
		return -1
	}
	for i, sc := range d.Scenes {
		if sc.Contains(pos) {
			return i
		}
	}
	return -1
}
