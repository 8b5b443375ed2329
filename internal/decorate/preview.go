/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package decorate

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gonovelscript/internal/script"
)

// Preview renders the visible lines of text with set applied: widgets are
// substituted and marks are styled through th. Lines are separated by '\n'.
func Preview(text string, set Set, th *Theme, visible []script.TextRange) string {
	var b strings.Builder
	seen := map[int]bool{}
	for _, r := range normalize(visible, len(text)) {
		for _, ln := range script.LinesIn(text, r) {
			if seen[ln.From] {
				continue
			}
			seen[ln.From] = true
			b.WriteString(previewLine(text, ln, set, th))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func previewLine(text string, ln script.Line, set Set, th *Theme) string {
	lineStyle := lipgloss.NewStyle()
	var spans []Mark
	for _, m := range set.Marks {
		if m.To < ln.From || m.From > ln.To {
			continue
		}
		if m.Line && m.From == ln.From {
			lineStyle = th.Style(m.Class).Inherit(lineStyle)
			continue
		}
		if !m.Line && m.From >= ln.From && m.To <= ln.To {
			spans = append(spans, m)
		}
	}
	var widgets []Widget
	for _, w := range set.Widgets {
		if w.From >= ln.From && w.To <= ln.To {
			widgets = append(widgets, w)
		}
	}

	var b strings.Builder
	pos := ln.From
	end := ln.To
	for pos < end {
		if w, ok := widgetAt(widgets, pos); ok && w.To > pos {
			b.WriteString(widgetText(w, th, lineStyle))
			pos = w.To
			continue
		}
		next := end
		for _, w := range widgets {
			if w.From > pos && w.From < next {
				next = w.From
			}
		}
		for _, m := range spans {
			if m.From > pos && m.From < next {
				next = m.From
			}
			if m.To > pos && m.To < next {
				next = m.To
			}
		}
		st := lineStyle
		if m, ok := innermost(spans, pos); ok {
			st = th.Style(m.Class).Inherit(lineStyle)
		}
		b.WriteString(st.Render(text[pos:next]))
		pos = next
	}
	return b.String()
}

func widgetAt(ws []Widget, pos int) (Widget, bool) {
	for _, w := range ws {
		if w.From == pos {
			return w, true
		}
	}
	return Widget{}, false
}

// innermost returns the shortest span covering pos.
func innermost(spans []Mark, pos int) (Mark, bool) {
	var best Mark
	found := false
	for _, m := range spans {
		if pos < m.From || pos >= m.To {
			continue
		}
		if !found || m.Len() <= best.Len() {
			best, found = m, true
		}
	}
	return best, found
}

// WidgetText is the plain read-mode rendering of a widget.
func WidgetText(w Widget) string {
	switch w.Kind {
	case WidgetPrompt:
		parts := make([]string, len(w.Options))
		for i, o := range w.Options {
			parts[i] = fmt.Sprintf("%d) %s", i+1, o)
		}
		return strings.Join(parts, "  ")
	case WidgetPlayback:
		return "▶ " + w.Label
	case WidgetReference:
		if w.External {
			return w.Label + " ↗"
		}
		return w.Label
	}
	return w.Label
}

func widgetText(w Widget, th *Theme, base lipgloss.Style) string {
	class := ""
	switch w.Kind {
	case WidgetSpeaker:
		class = ClassSpeaker
	case WidgetPrompt:
		class = ClassPrompt
	case WidgetPlayback:
		class = ClassPlayback
	case WidgetReference:
		class = ClassReference
		if w.External {
			class = ClassLink
		}
	case WidgetFormat:
		class = ClassItalic
		if w.Marker == "**" {
			class = ClassBold
		}
	}
	return th.Style(class).Inherit(base).Render(WidgetText(w))
}
