/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffOp classifies a line in a script diff.
type DiffOp int

const (
	DiffEqual DiffOp = iota
	DiffInsert
	DiffDelete
)

// DiffLine is one line of a line-level diff, without its newline.
type DiffLine struct {
	Op   DiffOp
	Text string
}

// ScriptDiff is the line-level difference between two script versions.
type ScriptDiff struct {
	Lines   []DiffLine
	Added   int
	Removed int
}

// Changed reports whether the two versions differ.
func (d ScriptDiff) Changed() bool { return d.Added > 0 || d.Removed > 0 }

// String renders the diff with "+ ", "- " and "  " prefixes.
func (d ScriptDiff) String() string {
	var b strings.Builder
	for _, l := range d.Lines {
		switch l.Op {
		case DiffInsert:
			b.WriteString("+ ")
		case DiffDelete:
			b.WriteString("- ")
		default:
			b.WriteString("  ")
		}
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// DiffScripts computes a line diff from oldText to newText.
func DiffScripts(oldText, newText string) ScriptDiff {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out ScriptDiff
	for _, d := range diffs {
		op := DiffEqual
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = DiffInsert
		case diffmatchpatch.DiffDelete:
			op = DiffDelete
		}
		for _, line := range splitDiffText(d.Text) {
			out.Lines = append(out.Lines, DiffLine{Op: op, Text: line})
			switch op {
			case DiffInsert:
				out.Added++
			case DiffDelete:
				out.Removed++
			}
		}
	}
	return out
}

// splitDiffText splits a chunk of whole lines. The trailing newline of the
// last line does not produce an extra empty line.
func splitDiffText(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
