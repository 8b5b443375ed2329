/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package query

import (
	"strings"

	"gonovelscript/internal/script"
)

// Kind names usable with is(kind, value).
const (
	ActionLine   = script.KindActionLine
	DialogueLine = script.KindDialogueLine
	TaggedAction = script.KindTaggedAction
	Speaker      = script.KindSpeaker
	Prompt       = script.KindPrompt
	Text         = script.KindText
	Formatting   = script.KindFormatting
	Reference    = script.KindReference
)

// DocView is the read-only face of a document inside expressions.
type DocView struct {
	Scenes   []script.Scene    `expr:"scenes"`
	Metadata map[string]string `expr:"metadata"`
	Orphans  []any             `expr:"orphans"`

	Cues     func(tag string) []script.TaggedAction      `expr:"cues"`
	Speakers func() []string                             `expr:"speakers"`
	Dialogue func(referent string) []script.DialogueLine `expr:"dialogue"`
	Scene    func(name string) *script.Scene             `expr:"scene"`
}

// Env is the expression environment. Field names are the identifiers
// visible to expressions.
type Env struct {
	Doc DocView `expr:"doc"`

	ActionLine   string
	DialogueLine string
	TaggedAction string
	Speaker      string
	Prompt       string
	Text         string
	Formatting   string
	Reference    string
}

func newEnv(doc *script.Document) Env {
	if doc == nil {
		doc = &script.Document{}
	}
	return Env{
		Doc: DocView{
			Scenes:   doc.Scenes,
			Metadata: doc.Metadata.Map(),
			Orphans:  itemsAny(doc.Orphans),
			Cues:     doc.Cues,
			Speakers: doc.Speakers,
			Dialogue: doc.Dialogue,
			Scene: func(name string) *script.Scene {
				if sc, ok := doc.Scene(name); ok {
					return &sc
				}
				return nil
			},
		},
		ActionLine:   ActionLine,
		DialogueLine: DialogueLine,
		TaggedAction: TaggedAction,
		Speaker:      Speaker,
		Prompt:       Prompt,
		Text:         Text,
		Formatting:   Formatting,
		Reference:    Reference,
	}
}

func itemsAny(items []script.SceneItem) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// kindOf names the variant of a parsed node, or "" for other values.
func kindOf(v any) string {
	switch x := v.(type) {
	case script.SceneItem:
		return x.Kind()
	case *script.Scene:
		return "Scene"
	case script.Scene:
		return "Scene"
	case script.Text:
		return Text
	case script.Formatting:
		return Formatting
	case script.Reference:
		return Reference
	}
	return ""
}

// textOf returns the display text of a node.
func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case script.RichText:
		return x.AsText()
	case script.RichTextPart:
		return x.AsText()
	case script.ActionLine:
		return x.Content.AsText()
	case script.DialogueLine:
		return x.Content.AsText()
	case script.TaggedAction:
		return x.Content.AsText()
	case script.Speaker:
		return x.Name()
	case script.Prompt:
		return strings.Join(x.Options, ", ")
	case script.Scene:
		return x.Name
	case *script.Scene:
		if x == nil {
			return ""
		}
		return x.Name
	}
	return ""
}
