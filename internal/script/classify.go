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
	"strings"
)

// Mode is the dialogue state of the line classifier.
type Mode int

const (
	ModeAction Mode = iota
	ModeDialogue
)

// PropertyScope tells whether a "key: value" line is still absorbed into a
// metadata block. Document scope tolerates blank lines inside the block,
// scene scope ends at the first line that is not a property.
type PropertyScope int

const (
	PropsClosed PropertyScope = iota
	PropsDocument
	PropsScene
)

// State is threaded from line to line by the classifier.
type State struct {
	Mode        Mode
	LastSpeaker *Reference
	Props       PropertyScope
}

// DocumentStart is the state at offset 0 of a buffer.
func DocumentStart() State { return State{Mode: ModeAction, Props: PropsDocument} }

// ConstructKind enumerates the line constructs in classifier priority order.
type ConstructKind int

const (
	ConstructBlank ConstructKind = iota
	ConstructHeader
	ConstructComment
	ConstructProperty
	ConstructTaggedAction
	ConstructPrompt
	ConstructSpeaker
	ConstructAction
	ConstructDialogue
)

var constructNames = [...]string{"blank", "header", "comment", "property", "tagged", "prompt", "speaker", "action", "dialogue"}

func (k ConstructKind) String() string {
	if int(k) < len(constructNames) {
		return constructNames[k]
	}
	return "unknown"
}

// Construct is the classification of a single line. All ranges are relative
// to the start of the line.
type Construct struct {
	Kind ConstructKind
	// Label is the header name, property key, tag or speaker name.
	Label      string
	LabelRange TextRange
	// Body is the header-free payload: property value, comment text,
	// tagged action content, prompt option list or action/dialogue text.
	Body      string
	BodyRange TextRange
	// Options holds the prompt choices with quotes stripped.
	Options []string
	// Speaker is set for ConstructSpeaker; continuation is resolved.
	Speaker Speaker
	// Parenthetical marks "(...)" action/dialogue lines.
	Parenthetical bool
	// Markers are the syntax tokens of the line ("==", "@", brackets, ...).
	Markers []TextRange
	// End is the length of the line without trailing whitespace.
	End int
}

const (
	promptPrefix       = "%PROMPT "
	continuationMarker = "&"
)

var (
	reHeader        = regexp.MustCompile(`^==\s*([^=\s](?:.*[^=\s])?)\s*==$`)
	reComment       = regexp.MustCompile(`^//\s*(.*)$`)
	reProperty      = regexp.MustCompile(`^(\w+):\s*(.*)$`)
	reTagged        = regexp.MustCompile(`^@(\w+)(?:\s+(.*))?$`)
	reSpeaker       = regexp.MustCompile(`^\[([^\[\]|]+)(?:\|([^\[\]|]*))?\]$`)
	reParenthetical = regexp.MustCompile(`^\(.*\)$`)
)

// Classify decides which construct line represents and returns the state for
// the next line. Rules are tried in fixed priority order and the first match
// wins. The line must not contain a newline.
func Classify(line string, st State) (Construct, State) {
	body := strings.TrimRight(line, " \t\r")
	c := Construct{End: len(body)}
	next := st

	if strings.TrimSpace(body) == "" {
		c.Kind = ConstructBlank
		next.Mode = ModeAction
		if next.Props == PropsScene {
			next.Props = PropsClosed
		}
		return c, next
	}

	if m := reHeader.FindStringSubmatchIndex(body); m != nil {
		c.Kind = ConstructHeader
		c.Label = body[m[2]:m[3]]
		c.LabelRange = TextRange{From: m[2], To: m[3]}
		c.Markers = []TextRange{{From: 0, To: 2}, {From: len(body) - 2, To: len(body)}}
		return c, State{Mode: ModeAction, Props: PropsScene}
	}
	// Everything below closes a pending property run unless it is a property.
	props := next.Props
	next.Props = PropsClosed

	if m := reComment.FindStringSubmatchIndex(body); m != nil {
		c.Kind = ConstructComment
		c.Body = body[m[2]:m[3]]
		c.BodyRange = TextRange{From: m[2], To: m[3]}
		c.Markers = []TextRange{{From: 0, To: 2}}
		return c, next
	}

	if props != PropsClosed {
		if key, value, m := parseProperty(body); m != nil {
			c.Kind = ConstructProperty
			c.Label = key
			c.LabelRange = TextRange{From: m[2], To: m[3]}
			c.Body = value
			c.BodyRange = TextRange{From: m[4], To: m[4] + len(value)}
			c.Markers = []TextRange{{From: m[3], To: m[3] + 1}}
			next.Props = props
			return c, next
		}
	}

	if m := reTagged.FindStringSubmatchIndex(body); m != nil {
		c.Kind = ConstructTaggedAction
		c.Label = body[m[2]:m[3]]
		c.LabelRange = TextRange{From: m[2], To: m[3]}
		if m[4] >= 0 {
			c.Body = body[m[4]:m[5]]
			c.BodyRange = TextRange{From: m[4], To: m[5]}
		} else {
			c.BodyRange = TextRange{From: len(body), To: len(body)}
		}
		c.Markers = []TextRange{{From: 0, To: 1}}
		return c, next
	}

	if strings.HasPrefix(body, promptPrefix) {
		c.Kind = ConstructPrompt
		c.Body = body[len(promptPrefix):]
		c.BodyRange = TextRange{From: len(promptPrefix), To: len(body)}
		c.Options = splitOptions(c.Body)
		c.Markers = []TextRange{{From: 0, To: len(promptPrefix) - 1}}
		return c, next
	}

	if m := reSpeaker.FindStringSubmatchIndex(body); m != nil {
		c.Kind = ConstructSpeaker
		nameFrom, nameTo := trimIndex(body, m[2], m[3])
		referent := body[nameFrom:nameTo]
		sp := Speaker{Reference: Reference{TextRange: TextRange{From: 0, To: len(body)}}}
		if referent == continuationMarker {
			sp.Continued = true
			if st.LastSpeaker != nil {
				sp.Referent = st.LastSpeaker.Referent
				sp.Alias = st.LastSpeaker.Alias
			}
		} else {
			sp.Referent = referent
			if m[4] >= 0 {
				af, at := trimIndex(body, m[4], m[5])
				sp.Alias = body[af:at]
			}
		}
		c.Speaker = sp
		c.Label = sp.Name()
		c.LabelRange = TextRange{From: nameFrom, To: nameTo}
		c.Markers = []TextRange{{From: 0, To: 1}, {From: len(body) - 1, To: len(body)}}
		if m[4] >= 0 {
			// the "|alias" part is syntax when the line is shown raw
			c.Markers = []TextRange{{From: 0, To: 1}, {From: m[4] - 1, To: len(body)}}
		}
		next.Mode = ModeDialogue
		if sp.Continued && st.LastSpeaker == nil {
			next.LastSpeaker = nil
		} else {
			ref := sp.Reference
			next.LastSpeaker = &ref
		}
		return c, next
	}

	c.Kind = ConstructAction
	if st.Mode == ModeDialogue {
		c.Kind = ConstructDialogue
	}
	from, to := trimIndex(body, 0, len(body))
	c.Body = body[from:to]
	c.BodyRange = TextRange{From: from, To: to}
	c.Parenthetical = reParenthetical.MatchString(c.Body)
	return c, next
}

// parseProperty matches a "key: value" line. The returned index slice is the
// regexp submatch index, nil when the line is not a property.
func parseProperty(line string) (key, value string, m []int) {
	m = reProperty.FindStringSubmatchIndex(line)
	if m == nil {
		return "", "", nil
	}
	return line[m[2]:m[3]], strings.TrimRight(line[m[4]:m[5]], " \t\r"), m
}

// splitOptions splits a prompt option list on commas. Options may be wrapped
// in single or double quotes, which are stripped; commas inside quotes are
// kept. Empty options are dropped.
func splitOptions(s string) []string {
	var out []string
	var cur strings.Builder
	var quote byte
	flush := func() {
		opt := strings.TrimSpace(cur.String())
		if len(opt) >= 2 && (opt[0] == '"' || opt[0] == '\'') && opt[len(opt)-1] == opt[0] {
			opt = opt[1 : len(opt)-1]
		}
		if opt != "" {
			out = append(out, opt)
		}
		cur.Reset()
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			cur.WriteByte(ch)
		case ch == '"' || ch == '\'':
			if strings.TrimSpace(cur.String()) == "" {
				quote = ch
			}
			cur.WriteByte(ch)
		case ch == ',':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	return out
}

// trimIndex narrows [from, to) of s to exclude surrounding whitespace.
func trimIndex(s string, from, to int) (int, int) {
	for from < to && isSpace(s[from]) {
		from++
	}
	for to > from && isSpace(s[to-1]) {
		to--
	}
	return from, to
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }
