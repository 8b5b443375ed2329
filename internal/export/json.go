/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"encoding/json"
	"fmt"

	"gonovelscript/internal/script"
)

// JSONFormatVersion is written into every exported document.
const JSONFormatVersion = 1

type jsonRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type jsonPart struct {
	Kind     string     `json:"kind"`
	Value    string     `json:"value,omitempty"`
	Marker   string     `json:"marker,omitempty"`
	Referent string     `json:"referent,omitempty"`
	Alias    string     `json:"alias,omitempty"`
	External bool       `json:"external,omitempty"`
	Range    *jsonRange `json:"range,omitempty"`
	Content  []jsonPart `json:"content,omitempty"`
}

type jsonItem struct {
	Kind      string     `json:"kind"`
	Range     jsonRange  `json:"range"`
	Text      string     `json:"text,omitempty"`
	Content   []jsonPart `json:"content,omitempty"`
	Tag       string     `json:"tag,omitempty"`
	Options   []string   `json:"options,omitempty"`
	Referent  string     `json:"referent,omitempty"`
	Alias     string     `json:"alias,omitempty"`
	Continued bool       `json:"continued,omitempty"`
	Speaker   *jsonPart  `json:"speaker,omitempty"`
}

type jsonScene struct {
	Name     string          `json:"name"`
	Range    jsonRange       `json:"range"`
	Metadata script.Metadata `json:"metadata"`
	Items    []jsonItem      `json:"items"`
}

type jsonDocument struct {
	Version  int             `json:"version"`
	Metadata script.Metadata `json:"metadata"`
	Scenes   []jsonScene     `json:"scenes"`
	Orphans  []jsonItem      `json:"orphans"`
}

// DocumentJSON encodes doc as indented JSON with kind-tagged items. Metadata
// keeps source order, so the output is stable for an unchanged document.
func DocumentJSON(doc *script.Document) ([]byte, error) {
	if doc == nil {
		doc = &script.Document{}
	}
	out := jsonDocument{
		Version:  JSONFormatVersion,
		Metadata: doc.Metadata,
		Scenes:   make([]jsonScene, 0, len(doc.Scenes)),
		Orphans:  items(doc.Orphans),
	}
	for _, sc := range doc.Scenes {
		out.Scenes = append(out.Scenes, jsonScene{
			Name:     sc.Name,
			Range:    rangeOf(sc.TextRange),
			Metadata: sc.Metadata,
			Items:    items(sc.Items),
		})
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(b, '\n'), nil
}

func rangeOf(r script.TextRange) jsonRange { return jsonRange{From: r.From, To: r.To} }

func items(list []script.SceneItem) []jsonItem {
	out := make([]jsonItem, 0, len(list))
	for _, it := range list {
		ji := jsonItem{Kind: it.Kind(), Range: rangeOf(it.Range())}
		switch v := it.(type) {
		case script.ActionLine:
			ji.Text, ji.Content = v.Content.AsText(), parts(v.Content)
		case script.DialogueLine:
			ji.Text, ji.Content = v.Content.AsText(), parts(v.Content)
			if v.Speaker != nil {
				ji.Speaker = &jsonPart{Kind: script.KindReference, Referent: v.Speaker.Referent, Alias: v.Speaker.Alias}
			}
		case script.TaggedAction:
			ji.Tag = v.Tag
			ji.Text, ji.Content = v.Content.AsText(), parts(v.Content)
		case script.Speaker:
			ji.Referent, ji.Alias, ji.Continued = v.Referent, v.Alias, v.Continued
		case script.Prompt:
			ji.Options = append([]string{}, v.Options...)
		}
		out = append(out, ji)
	}
	return out
}

func parts(rt script.RichText) []jsonPart {
	out := make([]jsonPart, 0, len(rt.Parts))
	for _, p := range rt.Parts {
		switch v := p.(type) {
		case script.Text:
			out = append(out, jsonPart{Kind: script.KindText, Value: v.Value})
		case script.Formatting:
			r := rangeOf(v.TextRange)
			out = append(out, jsonPart{Kind: script.KindFormatting, Marker: v.Marker, Range: &r, Content: parts(v.Content)})
		case script.Reference:
			r := rangeOf(v.TextRange)
			out = append(out, jsonPart{Kind: script.KindReference, Referent: v.Referent, Alias: v.Alias, External: v.External, Range: &r})
		}
	}
	return out
}
