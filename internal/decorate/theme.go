/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package decorate

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// StyleSpec is a serializable description of a class style.
type StyleSpec struct {
	Foreground string
	Background string
	Bold       bool
	Italic     bool
	Underline  bool
	Faint      bool
}

// Style converts the spec into a lipgloss style.
func (s StyleSpec) Style() lipgloss.Style {
	st := lipgloss.NewStyle()
	if s.Foreground != "" {
		st = st.Foreground(lipgloss.Color(s.Foreground))
	}
	if s.Background != "" {
		st = st.Background(lipgloss.Color(s.Background))
	}
	if s.Bold {
		st = st.Bold(true)
	}
	if s.Italic {
		st = st.Italic(true)
	}
	if s.Underline {
		st = st.Underline(true)
	}
	if s.Faint {
		st = st.Faint(true)
	}
	return st
}

var builtinClasses = []string{
	ClassHeader, ClassHeaderName, ClassComment, ClassProperty, ClassPropertyKey,
	ClassTagged, ClassTag, ClassPrompt, ClassSpeaker, ClassAction, ClassDialogue,
	ClassParenthetical, ClassBold, ClassItalic, ClassReference, ClassLink,
	ClassPlayback, ClassHide,
}

// presets maps theme names to class specs. "dark" doubles as the builtin set.
var presets = map[string]map[string]StyleSpec{
	"dark": {
		ClassHeader:        {Foreground: "#8BC34A", Bold: true},
		ClassHeaderName:    {Foreground: "#8BC34A", Bold: true, Underline: true},
		ClassComment:       {Foreground: "#6a737d", Italic: true},
		ClassProperty:      {Foreground: "#9aa5b1"},
		ClassPropertyKey:   {Foreground: "#4db6ac", Bold: true},
		ClassTagged:        {Foreground: "#ffd54f"},
		ClassTag:           {Foreground: "#ff8a65", Bold: true},
		ClassPrompt:        {Foreground: "#2196F3"},
		ClassSpeaker:       {Foreground: "#f2f2f2", Bold: true},
		ClassAction:        {Foreground: "#d6dae0"},
		ClassDialogue:      {Foreground: "#f2f2f2"},
		ClassParenthetical: {Italic: true, Faint: true},
		ClassBold:          {Bold: true},
		ClassItalic:        {Italic: true},
		ClassReference:     {Foreground: "#2196F3", Underline: true},
		ClassLink:          {Foreground: "#29b6f6", Underline: true},
		ClassPlayback:      {Foreground: "#101F38", Background: "#8BC34A", Bold: true},
		ClassHide:          {Faint: true},
	},
	"light": {
		ClassHeader:        {Foreground: "#101F38", Bold: true},
		ClassHeaderName:    {Foreground: "#101F38", Bold: true, Underline: true},
		ClassComment:       {Foreground: "#8b949e", Italic: true},
		ClassProperty:      {Foreground: "#57606a"},
		ClassPropertyKey:   {Foreground: "#29434e", Bold: true},
		ClassTagged:        {Foreground: "#9a6700"},
		ClassTag:           {Foreground: "#e53935", Bold: true},
		ClassPrompt:        {Foreground: "#0b5cad"},
		ClassSpeaker:       {Foreground: "#101F38", Bold: true},
		ClassAction:        {Foreground: "#24292f"},
		ClassDialogue:      {Foreground: "#101F38"},
		ClassParenthetical: {Italic: true, Faint: true},
		ClassBold:          {Bold: true},
		ClassItalic:        {Italic: true},
		ClassReference:     {Foreground: "#0b5cad", Underline: true},
		ClassLink:          {Foreground: "#0969da", Underline: true},
		ClassPlayback:      {Foreground: "#ffffff", Background: "#101F38", Bold: true},
		ClassHide:          {Faint: true},
	},
	"plain": {
		ClassHeader:    {Bold: true},
		ClassSpeaker:   {Bold: true},
		ClassBold:      {Bold: true},
		ClassItalic:    {Italic: true},
		ClassReference: {Underline: true},
		ClassLink:      {Underline: true},
	},
}

// Theme resolves style classes with the precedence User > Global > builtin.
// Global holds the selected preset; User holds per-user overrides from the
// config file.
type Theme struct {
	Name   string
	Global map[string]lipgloss.Style
	User   map[string]lipgloss.Style
}

// NewTheme returns the named preset. Unknown names fall back to "dark".
func NewTheme(name string) *Theme {
	preset, ok := presets[name]
	if !ok {
		name = "dark"
		preset = presets[name]
	}
	th := &Theme{Name: name, Global: map[string]lipgloss.Style{}, User: map[string]lipgloss.Style{}}
	for class, spec := range preset {
		th.Global[class] = spec.Style()
	}
	return th
}

// ThemeNames lists the available presets.
func ThemeNames() []string {
	out := make([]string, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// WithUser returns a copy with the overrides merged into the user scope.
func (t *Theme) WithUser(over map[string]StyleSpec) *Theme {
	cp := t.clone()
	for k, v := range over {
		cp.User[k] = v.Style()
	}
	return cp
}

// Resolve returns the effective style of class. The second return value is
// false if no scope defines it.
func (t *Theme) Resolve(class string) (lipgloss.Style, bool) {
	if t == nil {
		return lipgloss.NewStyle(), false
	}
	if st, ok := t.User[class]; ok {
		return st, true
	}
	if st, ok := t.Global[class]; ok {
		return st, true
	}
	if spec, ok := presets["dark"][class]; ok && t.Name != "plain" {
		return spec.Style(), true
	}
	return lipgloss.NewStyle(), false
}

// Style is Resolve without the found flag.
func (t *Theme) Style(class string) lipgloss.Style {
	st, _ := t.Resolve(class)
	return st
}

// Names returns the known classes: builtin order first, then extra user
// classes sorted.
func (t *Theme) Names() []string {
	seen := map[string]bool{}
	out := append([]string(nil), builtinClasses...)
	for _, c := range out {
		seen[c] = true
	}
	var extra []string
	for k := range t.User {
		if !seen[k] {
			seen[k] = true
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func (t *Theme) clone() *Theme {
	cp := &Theme{Name: t.Name, Global: map[string]lipgloss.Style{}, User: map[string]lipgloss.Style{}}
	for k, v := range t.Global {
		cp.Global[k] = v
	}
	for k, v := range t.User {
		cp.User[k] = v
	}
	return cp
}
