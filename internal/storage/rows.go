/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"fmt"
	"strings"

	"gonovelscript/internal/script"
)

// Row types stored in documents.type.
const (
	TypeScene    = "scene"
	TypeAction   = "action"
	TypeDialogue = "dialogue"
	TypeCue      = "cue"
	TypePrompt   = "prompt"
	TypeMetadata = "metadata"
)

// Row is one searchable unit derived from a parsed document. The same rows
// feed the SQLite index and the Postgres mirror.
type Row struct {
	Type    string
	Path    string
	Scene   string
	Speaker string
	Tag     string
	Pos     int
	Text    string
	// Refs are the referent names of references on the row.
	Refs []string
}

// Rows flattens doc into index rows in document order. Paths are stable for
// an unchanged document: "meta:<key>", "scene:<n>", "scene:<n>/meta:<key>",
// "scene:<n>/item:<m>" and "orphan:<m>", with 1-based n and m.
func Rows(doc *script.Document) []Row {
	if doc == nil {
		return nil
	}
	out := make([]Row, 0, 64)
	for _, k := range doc.Metadata.Keys() {
		out = append(out, Row{Type: TypeMetadata, Path: "meta:" + k, Text: metaText(k, doc.Metadata.Value(k))})
	}
	for i, sc := range doc.Scenes {
		base := fmt.Sprintf("scene:%d", i+1)
		out = append(out, Row{Type: TypeScene, Path: base, Scene: sc.Name, Pos: sc.From, Text: sc.Name})
		for _, k := range sc.Metadata.Keys() {
			out = append(out, Row{Type: TypeMetadata, Path: base + "/meta:" + k, Scene: sc.Name, Pos: sc.From, Text: metaText(k, sc.Metadata.Value(k))})
		}
		for j, it := range sc.Items {
			if r, ok := itemRow(it); ok {
				r.Path = fmt.Sprintf("%s/item:%d", base, j+1)
				r.Scene = sc.Name
				out = append(out, r)
			}
		}
	}
	for j, it := range doc.Orphans {
		if r, ok := itemRow(it); ok {
			r.Path = fmt.Sprintf("orphan:%d", j+1)
			out = append(out, r)
		}
	}
	return out
}

func itemRow(it script.SceneItem) (Row, bool) {
	switch v := it.(type) {
	case script.ActionLine:
		return Row{Type: TypeAction, Pos: v.From, Text: v.Content.AsText(), Refs: referents(v.Content)}, true
	case script.DialogueLine:
		r := Row{Type: TypeDialogue, Pos: v.From, Text: v.Content.AsText(), Refs: referents(v.Content)}
		if v.Speaker != nil && v.Speaker.Referent != "" {
			r.Speaker = v.Speaker.Referent
			r.Refs = appendUnique(r.Refs, v.Speaker.Referent)
		}
		return r, true
	case script.TaggedAction:
		return Row{Type: TypeCue, Pos: v.From, Tag: v.Tag, Text: v.Content.AsText(), Refs: referents(v.Content)}, true
	case script.Prompt:
		return Row{Type: TypePrompt, Pos: v.From, Text: strings.Join(v.Options, " | ")}, true
	}
	// Speaker switches carry no text of their own; their referent is recorded
	// on the dialogue rows that follow.
	return Row{}, false
}

func metaText(k, v string) string { return k + ": " + v }

func referents(rt script.RichText) []string {
	var out []string
	for _, ref := range rt.References() {
		if ref.External || ref.Referent == "" {
			continue
		}
		out = appendUnique(out, ref.Referent)
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
