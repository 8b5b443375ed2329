/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "strings"

// Parse builds a Document from script text. It never fails: lines that match
// no rule fall back to action or dialogue, and lines outside any scene are
// collected as orphans. Parsing the same text twice yields equal documents.
func Parse(text string) *Document {
	doc := &Document{}
	lines := SplitLines(text)

	// leading document property block; blank lines are allowed inside it
	i := 0
	st := DocumentStart()
	for ; i < len(lines); i++ {
		c, next := Classify(lines[i].Text, st)
		if c.Kind == ConstructBlank {
			st = next
			continue
		}
		if c.Kind != ConstructProperty {
			break
		}
		doc.Metadata.Set(c.Label, c.Body)
		st = next
	}

	st = OrphanStart()
	inScene := false
	var cur *Scene
	closeScene := func(at int) {
		if cur != nil {
			cur.To = at
			doc.Scenes = append(doc.Scenes, *cur)
			cur = nil
		}
	}
	for ; i < len(lines); i++ {
		ln := lines[i]
		c, next, now := Step(ln.Text, st, inScene)
		switch {
		case c.Kind == ConstructHeader:
			closeScene(ln.From)
			cur = &Scene{TextRange: TextRange{From: ln.From}, Name: c.Label}
		case inScene && !now:
			// structural mismatch: this line and the ones after it belong to no scene
			closeScene(ln.From)
		}
		if now {
			switch c.Kind {
			case ConstructHeader, ConstructBlank, ConstructComment:
			case ConstructProperty:
				cur.Metadata.Set(c.Label, c.Body)
			default:
				if it, ok := itemFor(c, st, ln.From); ok {
					cur.Items = append(cur.Items, it)
				}
			}
		} else if it, ok := itemFor(c, st, ln.From); ok {
			doc.Orphans = append(doc.Orphans, it)
		}
		st = anchor(c, next, ln.From)
		inScene = now
	}
	closeScene(len(text))
	return doc
}

// OrphanStart is the classifier state for lines outside any scene.
func OrphanStart() State { return State{Mode: ModeAction} }

// Step classifies one line the way Parse does. inScene tells whether the
// previous line was inside a scene; the returned flag tells the same for the
// next line. A line starting with '=' that is not a header ends the scene,
// and it and the lines after it are classified from OrphanStart.
func Step(line string, st State, inScene bool) (Construct, State, bool) {
	if inScene && strings.HasPrefix(line, "=") {
		if c, next := Classify(line, st); c.Kind == ConstructHeader {
			return c, next, true
		}
		st, inScene = OrphanStart(), false
	}
	c, next := Classify(line, st)
	if c.Kind == ConstructHeader {
		inScene = true
	}
	return c, next, inScene
}

// anchor moves the speaker reference recorded by a speaker line from line
// to buffer coordinates.
func anchor(c Construct, next State, lineStart int) State {
	if c.Kind == ConstructSpeaker && next.LastSpeaker != nil {
		ref := *next.LastSpeaker
		ref.TextRange = TextRange{From: lineStart, To: lineStart + c.End}
		next.LastSpeaker = &ref
	}
	return next
}

// itemFor converts a classified line starting at lineStart into a scene
// item. st is the state the line was classified with.
func itemFor(c Construct, st State, lineStart int) (SceneItem, bool) {
	r := TextRange{From: lineStart, To: lineStart + c.End}
	switch c.Kind {
	case ConstructAction:
		return ActionLine{TextRange: r, Content: ParseRichTextAt(c.Body, lineStart+c.BodyRange.From)}, true
	case ConstructDialogue:
		dl := DialogueLine{TextRange: r, Content: ParseRichTextAt(c.Body, lineStart+c.BodyRange.From)}
		if st.LastSpeaker != nil {
			sp := *st.LastSpeaker
			dl.Speaker = &sp
		}
		return dl, true
	case ConstructTaggedAction:
		return TaggedAction{TextRange: r, Tag: c.Label, Content: ParseRichTextAt(c.Body, lineStart+c.BodyRange.From)}, true
	case ConstructPrompt:
		return Prompt{TextRange: r, Options: c.Options}, true
	case ConstructSpeaker:
		sp := c.Speaker
		sp.TextRange = r
		return sp, true
	}
	return nil, false
}
