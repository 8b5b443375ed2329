/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package decorate derives the display overlay of a script buffer: style
// marks, replacement widgets and fold ranges. It classifies lines with the
// same rules as the parser, but only over the visible ranges, threading the
// dialogue state within each range.
package decorate

import (
	"sort"
	"strings"

	"gonovelscript/internal/script"
)

// Style classes emitted by the engine.
const (
	ClassHeader        = "header"
	ClassHeaderName    = "header-name"
	ClassComment       = "comment"
	ClassProperty      = "property"
	ClassPropertyKey   = "property-key"
	ClassTagged        = "tagged"
	ClassTag           = "tag"
	ClassPrompt        = "prompt"
	ClassSpeaker       = "speaker"
	ClassAction        = "action"
	ClassDialogue      = "dialogue"
	ClassParenthetical = "parenthetical"
	ClassBold          = "bold"
	ClassItalic        = "italic"
	ClassReference     = "reference"
	ClassLink          = "link"
	ClassPlayback      = "playback"
	ClassHide          = "hide"
)

// Mark applies a style class to a range. Line marks style a whole line.
type Mark struct {
	script.TextRange
	Class string `json:"class"`
	Line  bool   `json:"line,omitempty"`
}

// WidgetKind enumerates replacement widgets.
type WidgetKind int

const (
	WidgetSpeaker WidgetKind = iota
	WidgetPrompt
	WidgetReference
	WidgetFormat
	WidgetPlayback
)

var widgetNames = [...]string{"speaker", "prompt", "reference", "format", "playback"}

func (k WidgetKind) String() string {
	if int(k) < len(widgetNames) {
		return widgetNames[k]
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k WidgetKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Widget replaces its range with a read-mode rendering.
type Widget struct {
	script.TextRange
	Kind  WidgetKind `json:"kind"`
	Label string     `json:"label"`
	// Options lists prompt choices.
	Options []string `json:"options,omitempty"`
	// Referent is the link or audio target.
	Referent  string `json:"referent,omitempty"`
	External  bool   `json:"external,omitempty"`
	Marker    string `json:"marker,omitempty"`
	Tag       string `json:"tag,omitempty"`
	Continued bool   `json:"continued,omitempty"`
}

// Set is the decoration overlay for one view. Marks may nest; widgets never
// overlap each other.
type Set struct {
	Marks   []Mark   `json:"marks"`
	Widgets []Widget `json:"widgets"`
}

// View is what the host editor reports: the visible ranges and the
// selection. A cursor is a collapsed selection range.
type View struct {
	Visible   []script.TextRange
	Selection []script.TextRange
}

// Options configures an Engine.
type Options struct {
	// PlayableTags are tags whose wikilink content becomes a playback control.
	PlayableTags []string
	// UnknownSpeaker labels a continuation whose speaker is off-range.
	UnknownSpeaker string
}

// DefaultUnknownSpeaker is used when Options.UnknownSpeaker is empty.
const DefaultUnknownSpeaker = "UNKNOWN SPEAKER"

// Engine builds decoration sets. It holds no per-buffer state.
type Engine struct {
	playable map[string]struct{}
	unknown  string
}

// NewEngine returns an Engine configured by opts.
func NewEngine(opts Options) *Engine {
	e := &Engine{playable: map[string]struct{}{}, unknown: opts.UnknownSpeaker}
	for _, t := range opts.PlayableTags {
		e.playable[t] = struct{}{}
	}
	if e.unknown == "" {
		e.unknown = DefaultUnknownSpeaker
	}
	return e
}

// Decorate computes the overlay for the visible ranges of text. Work is
// bounded by the visible lines. A view without visible ranges covers the
// whole buffer.
func (e *Engine) Decorate(text string, view View) Set {
	var set Set
	for _, r := range normalize(view.Visible, len(text)) {
		lines := script.LinesIn(text, r)
		if len(lines) == 0 {
			continue
		}
		// a range that starts mid-buffer is assumed to start inside a scene
		st, inScene := script.State{Mode: script.ModeAction}, true
		if lines[0].From == 0 {
			st, inScene = script.DocumentStart(), false
		}
		for _, ln := range lines {
			c, next, now := script.Step(ln.Text, st, inScene)
			selected := touched(ln.TextRange, view.Selection)
			e.line(&set, ln, c, selected)
			st, inScene = next, now
		}
	}
	sort.SliceStable(set.Marks, func(i, j int) bool {
		a, b := set.Marks[i], set.Marks[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.Line != b.Line {
			return a.Line
		}
		return a.To > b.To
	})
	sort.SliceStable(set.Widgets, func(i, j int) bool { return set.Widgets[i].From < set.Widgets[j].From })
	return set
}

// normalize sorts and merges overlapping visible ranges. Touching ranges
// stay separate.
func normalize(rs []script.TextRange, n int) []script.TextRange {
	if len(rs) == 0 {
		return []script.TextRange{{From: 0, To: n}}
	}
	in := make([]script.TextRange, 0, len(rs))
	for _, r := range rs {
		if r.From < 0 {
			r.From = 0
		}
		if r.To > n {
			r.To = n
		}
		if r.From <= r.To {
			in = append(in, r)
		}
	}
	sort.Slice(in, func(i, j int) bool { return in[i].From < in[j].From })
	var out []script.TextRange
	for _, r := range in {
		if k := len(out) - 1; k >= 0 && r.From < out[k].To {
			if r.To > out[k].To {
				out[k].To = r.To
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func touched(line script.TextRange, sel []script.TextRange) bool {
	for _, s := range sel {
		if line.Intersects(s) {
			return true
		}
	}
	return false
}

func shift(r script.TextRange, by int) script.TextRange {
	return script.TextRange{From: r.From + by, To: r.To + by}
}

func (e *Engine) line(set *Set, ln script.Line, c script.Construct, selected bool) {
	base := ln.From
	full := script.TextRange{From: base, To: base + c.End}
	lineMark := func(class string) { set.Marks = append(set.Marks, Mark{TextRange: full, Class: class, Line: true}) }
	span := func(r script.TextRange, class string) {
		if r.From < r.To {
			set.Marks = append(set.Marks, Mark{TextRange: shift(r, base), Class: class})
		}
	}
	hideMarkers := func() {
		for _, m := range c.Markers {
			span(m, ClassHide)
		}
	}

	switch c.Kind {
	case script.ConstructBlank:
		return
	case script.ConstructHeader:
		lineMark(ClassHeader)
		span(c.LabelRange, ClassHeaderName)
		hideMarkers()
	case script.ConstructComment:
		lineMark(ClassComment)
	case script.ConstructProperty:
		lineMark(ClassProperty)
		span(c.LabelRange, ClassPropertyKey)
		hideMarkers()
	case script.ConstructTaggedAction:
		lineMark(ClassTagged)
		span(script.TextRange{From: 0, To: c.LabelRange.To}, ClassTag)
		if !selected {
			if w, ok := e.playback(c, full); ok {
				set.Widgets = append(set.Widgets, w)
				return
			}
		} else {
			hideMarkers()
		}
		e.inline(set, c.Body, base+c.BodyRange.From, selected)
	case script.ConstructPrompt:
		lineMark(ClassPrompt)
		if !selected {
			set.Widgets = append(set.Widgets, Widget{TextRange: full, Kind: WidgetPrompt, Label: strings.Join(c.Options, " / "), Options: c.Options})
			return
		}
		hideMarkers()
	case script.ConstructSpeaker:
		lineMark(ClassSpeaker)
		if !selected {
			set.Widgets = append(set.Widgets, Widget{
				TextRange: full,
				Kind:      WidgetSpeaker,
				Label:     e.speakerLabel(c.Speaker),
				Referent:  c.Speaker.Referent,
				Continued: c.Speaker.Continued,
			})
			return
		}
		hideMarkers()
	case script.ConstructAction, script.ConstructDialogue:
		if c.Kind == script.ConstructAction {
			lineMark(ClassAction)
		} else {
			lineMark(ClassDialogue)
		}
		if c.Parenthetical {
			lineMark(ClassParenthetical)
		}
		e.inline(set, c.Body, base+c.BodyRange.From, selected)
	}
}

// speakerLabel is the uppercased display name with a (CONT'D) suffix for
// continuations. A continuation without a known speaker gets the
// placeholder name.
func (e *Engine) speakerLabel(sp script.Speaker) string {
	name := sp.Name()
	if name == "" {
		name = e.unknown
	}
	name = strings.ToUpper(name)
	if sp.Continued {
		name += " (CONT'D)"
	}
	return name
}

// playback turns "@TAG [[target]]" into a playback control when TAG is
// playable and the content is exactly one wikilink.
func (e *Engine) playback(c script.Construct, full script.TextRange) (Widget, bool) {
	if _, ok := e.playable[c.Label]; !ok {
		return Widget{}, false
	}
	ms := script.FindRichMatches(c.Body)
	if len(ms) != 1 || ms[0].Kind != script.MatchWikilink || ms[0].From != 0 || ms[0].To != len(c.Body) {
		return Widget{}, false
	}
	label := ms[0].Alias
	if label == "" {
		label = ms[0].Referent
	}
	return Widget{TextRange: full, Kind: WidgetPlayback, Label: label, Referent: ms[0].Referent, Tag: c.Label}, true
}

// inline decorates rich-text matches in body, which starts at offset base.
func (e *Engine) inline(set *Set, body string, base int, selected bool) {
	for _, m := range script.FindRichMatches(body) {
		abs := shift(m.TextRange, base)
		if selected {
			set.Marks = append(set.Marks, Mark{TextRange: abs, Class: matchClass(m.Kind)})
			for _, mk := range m.Markers {
				set.Marks = append(set.Marks, Mark{TextRange: shift(mk, base), Class: ClassHide})
			}
			continue
		}
		w := Widget{TextRange: abs}
		switch m.Kind {
		case script.MatchWikilink, script.MatchLink:
			w.Kind = WidgetReference
			w.Referent = m.Referent
			w.External = m.Kind == script.MatchLink
			w.Label = m.Alias
			if w.Label == "" {
				w.Label = m.Referent
			}
		case script.MatchBold, script.MatchItalic:
			w.Kind = WidgetFormat
			w.Marker = "*"
			if m.Kind == script.MatchBold {
				w.Marker = "**"
			}
			w.Label = script.ParseRichText(body[m.Inner.From:m.Inner.To]).AsText()
		}
		set.Widgets = append(set.Widgets, w)
	}
}

func matchClass(k script.RichMatchKind) string {
	switch k {
	case script.MatchWikilink:
		return ClassReference
	case script.MatchLink:
		return ClassLink
	case script.MatchBold:
		return ClassBold
	default:
		return ClassItalic
	}
}

// FoldRanges returns one foldable region per scene, from the end of its
// header line to the end of its content. Scenes with no content are skipped.
func FoldRanges(text string, doc *script.Document) []script.TextRange {
	if doc == nil {
		return nil
	}
	var out []script.TextRange
	for _, sc := range doc.Scenes {
		from := sc.To
		if i := strings.IndexByte(sc.Slice(text), '\n'); i >= 0 {
			from = sc.From + i
		}
		to := sc.To
		for to > from && (text[to-1] == '\n' || text[to-1] == '\r' || text[to-1] == ' ' || text[to-1] == '\t') {
			to--
		}
		if to > from {
			out = append(out, script.TextRange{From: from, To: to})
		}
	}
	return out
}
