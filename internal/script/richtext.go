/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"regexp"
	"sort"
	"strings"
)

// RichMatchKind identifies the inline pattern that produced a match.
type RichMatchKind int

const (
	MatchWikilink RichMatchKind = iota
	MatchLink
	MatchBold
	MatchItalic
)

func (k RichMatchKind) String() string {
	switch k {
	case MatchWikilink:
		return "wikilink"
	case MatchLink:
		return "link"
	case MatchBold:
		return "bold"
	case MatchItalic:
		return "italic"
	}
	return "unknown"
}

// RichMatch is one recognized inline span. Ranges are relative to the text
// handed to FindRichMatches.
type RichMatch struct {
	Kind RichMatchKind
	TextRange
	// Inner is the visible content: link target or label, emphasised text.
	Inner    TextRange
	Referent string
	Alias    string
	// Markers are the syntax characters around Inner.
	Markers []TextRange
}

var (
	reWikilink = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]*))?\]\]`)
	reLink     = regexp.MustCompile(`\[([^\[\]]+)\]\(([^()\s]+)\)`)
	reBold     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic   = regexp.MustCompile(`\*([^*]+)\*`)
)

// FindRichMatches finds wikilinks, links, bold and italic spans independently
// and merges them by start offset. On overlap the pattern inserted later
// wins; insertion order is wikilink, link, bold, italic.
func FindRichMatches(text string) []RichMatch {
	if text == "" || !strings.ContainsAny(text, "[*") {
		return nil
	}
	var ms []RichMatch
	insert := func(m RichMatch) {
		kept := make([]RichMatch, 0, len(ms)+1)
		for _, e := range ms {
			if e.From < m.To && m.From < e.To {
				continue
			}
			kept = append(kept, e)
		}
		ms = append(kept, m)
	}

	for _, ix := range reWikilink.FindAllStringSubmatchIndex(text, -1) {
		m := RichMatch{Kind: MatchWikilink, TextRange: TextRange{From: ix[0], To: ix[1]}}
		tf, tt := trimIndex(text, ix[2], ix[3])
		m.Referent = text[tf:tt]
		m.Inner = TextRange{From: ix[2], To: ix[3]}
		m.Markers = []TextRange{{From: ix[0], To: ix[0] + 2}, {From: ix[3], To: ix[1]}}
		if ix[4] >= 0 {
			af, at := trimIndex(text, ix[4], ix[5])
			m.Alias = text[af:at]
			m.Inner = TextRange{From: ix[4], To: ix[5]}
			m.Markers = []TextRange{{From: ix[0], To: ix[4]}, {From: ix[5], To: ix[1]}}
		}
		insert(m)
	}
	for _, ix := range reLink.FindAllStringSubmatchIndex(text, -1) {
		insert(RichMatch{
			Kind:      MatchLink,
			TextRange: TextRange{From: ix[0], To: ix[1]},
			Inner:     TextRange{From: ix[2], To: ix[3]},
			Alias:     text[ix[2]:ix[3]],
			Referent:  text[ix[4]:ix[5]],
			Markers:   []TextRange{{From: ix[0], To: ix[2]}, {From: ix[3], To: ix[1]}},
		})
	}
	for _, ix := range reBold.FindAllStringSubmatchIndex(text, -1) {
		insert(RichMatch{
			Kind:      MatchBold,
			TextRange: TextRange{From: ix[0], To: ix[1]},
			Inner:     TextRange{From: ix[2], To: ix[3]},
			Markers:   []TextRange{{From: ix[0], To: ix[2]}, {From: ix[3], To: ix[1]}},
		})
	}
	for _, m := range findItalic(text) {
		insert(m)
	}

	sort.SliceStable(ms, func(i, j int) bool { return ms[i].From < ms[j].From })
	return ms
}

// findItalic reports "*text*" spans whose delimiters are not adjacent to a
// second '*'. A rejected candidate is retried one byte further on so that a
// bold delimiter does not hide a following italic span.
func findItalic(text string) []RichMatch {
	var out []RichMatch
	pos := 0
	for pos < len(text) {
		ix := reItalic.FindStringSubmatchIndex(text[pos:])
		if ix == nil {
			break
		}
		from, to := pos+ix[0], pos+ix[1]
		if (from > 0 && text[from-1] == '*') || (to < len(text) && text[to] == '*') {
			pos = from + 1
			continue
		}
		out = append(out, RichMatch{
			Kind:      MatchItalic,
			TextRange: TextRange{From: from, To: to},
			Inner:     TextRange{From: from + 1, To: to - 1},
			Markers:   []TextRange{{From: from, To: from + 1}, {From: to - 1, To: to}},
		})
		pos = to
	}
	return out
}

// ParseRichText parses inline markup in text. Positions are relative to text.
func ParseRichText(text string) RichText { return ParseRichTextAt(text, 0) }

// ParseRichTextAt parses inline markup in text, shifting every position by
// base so references map back into the enclosing buffer. It is total: any
// input yields a valid RichText.
func ParseRichTextAt(text string, base int) RichText {
	ms := FindRichMatches(text)
	if len(ms) == 0 {
		if text == "" {
			return RichText{}
		}
		return RichText{Parts: []RichTextPart{Text{Value: text}}}
	}
	parts := make([]RichTextPart, 0, 2*len(ms)+1)
	pos := 0
	for _, m := range ms {
		if m.From > pos {
			parts = append(parts, Text{Value: text[pos:m.From]})
		}
		abs := TextRange{From: base + m.From, To: base + m.To}
		switch m.Kind {
		case MatchWikilink, MatchLink:
			parts = append(parts, Reference{TextRange: abs, Referent: m.Referent, Alias: m.Alias, External: m.Kind == MatchLink})
		case MatchBold, MatchItalic:
			marker := "*"
			if m.Kind == MatchBold {
				marker = "**"
			}
			inner := text[m.Inner.From:m.Inner.To]
			parts = append(parts, Formatting{TextRange: abs, Marker: marker, Content: ParseRichTextAt(inner, base+m.Inner.From)})
		}
		pos = m.To
	}
	if pos < len(text) {
		parts = append(parts, Text{Value: text[pos:]})
	}
	return RichText{Parts: parts}
}
