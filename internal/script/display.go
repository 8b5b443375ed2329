/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"strings"
)

// The methods below let the tree renderer display parsed nodes. Leaves
// implement RenderText; nodes with structure implement RenderLabel and
// RenderChildren.

func (t Text) RenderText() string           { return t.Value }
func (f Formatting) RenderText() string     { return f.Marker + f.Content.AsText() + f.Marker }
func (rt RichText) RenderText() string      { return rt.AsText() }
func (a ActionLine) RenderText() string     { return a.Content.AsText() }
func (sc Scene) RenderLabel() string        { return "== " + sc.Name + " ==" }
func (ta TaggedAction) RenderLabel() string { return ta.Tag }
func (p Prompt) RenderLabel() string        { return "PROMPT" }
func (d *Document) RenderLabel() string     { return "Document" }
func (m Metadata) RenderLabel() string      { return "metadata" }

func (r Reference) RenderText() string {
	if r.External {
		return fmt.Sprintf("%s <%s>", r.AsText(), r.Referent)
	}
	if r.Alias != "" && r.Alias != r.Referent {
		return r.Alias + " -> " + r.Referent
	}
	return r.Referent
}

func (s Speaker) RenderText() string {
	name := strings.ToUpper(s.Name())
	if s.Continued {
		name += " (CONT'D)"
	}
	return name
}

func (d DialogueLine) RenderText() string {
	if d.Speaker == nil {
		return d.Content.AsText()
	}
	return d.Speaker.AsText() + ": " + d.Content.AsText()
}

func (sc Scene) RenderChildren() []any {
	out := make([]any, 0, len(sc.Items)+1)
	if sc.Metadata.Len() > 0 {
		out = append(out, sc.Metadata)
	}
	for _, it := range sc.Items {
		out = append(out, it)
	}
	return out
}

func (ta TaggedAction) RenderChildren() []any {
	if len(ta.Content.Parts) == 0 {
		return nil
	}
	return []any{ta.Content}
}

func (p Prompt) RenderChildren() []any {
	out := make([]any, len(p.Options))
	for i, o := range p.Options {
		out[i] = fmt.Sprintf("%d. %s", i+1, o)
	}
	return out
}

func (m Metadata) RenderChildren() []any {
	out := make([]any, 0, m.Len())
	for _, k := range m.Keys() {
		out = append(out, k+": "+m.Value(k))
	}
	return out
}

func (d *Document) RenderChildren() []any {
	if d == nil {
		return nil
	}
	out := make([]any, 0, len(d.Scenes)+2)
	if d.Metadata.Len() > 0 {
		out = append(out, d.Metadata)
	}
	for _, sc := range d.Scenes {
		out = append(out, sc)
	}
	if len(d.Orphans) > 0 {
		out = append(out, orphans(d.Orphans))
	}
	return out
}

type orphans []SceneItem

func (o orphans) RenderLabel() string { return "orphans" }

func (o orphans) RenderChildren() []any {
	out := make([]any, len(o))
	for i, it := range o {
		out[i] = it
	}
	return out
}
