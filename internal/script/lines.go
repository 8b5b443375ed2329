/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "strings"

// Line is one source line without its terminating newline. TextRange covers
// the line content in the buffer.
type Line struct {
	TextRange
	Text string
}

// SplitLines splits text on '\n'. A trailing newline does not produce an
// extra empty line.
func SplitLines(text string) []Line {
	lines := make([]Line, 0, strings.Count(text, "\n")+1)
	start := 0
	for start < len(text) {
		end := strings.IndexByte(text[start:], '\n')
		if end < 0 {
			lines = append(lines, Line{TextRange: TextRange{From: start, To: len(text)}, Text: text[start:]})
			break
		}
		end += start
		lines = append(lines, Line{TextRange: TextRange{From: start, To: end}, Text: text[start:end]})
		start = end + 1
	}
	return lines
}

// LinesIn returns the lines of text touched by r, widened to whole lines.
func LinesIn(text string, r TextRange) []Line {
	if r.From < 0 {
		r.From = 0
	}
	if r.To > len(text) {
		r.To = len(text)
	}
	if r.From > r.To {
		return nil
	}
	from := strings.LastIndexByte(text[:r.From], '\n') + 1
	end := r.To
	if end > r.From && text[end-1] == '\n' {
		// a range ending after a newline does not reach into the next line
		end--
	}
	to := len(text)
	if i := strings.IndexByte(text[end:], '\n'); i >= 0 {
		to = end + i
	}
	lines := SplitLines(text[from:to])
	if len(lines) == 0 && to == from {
		// empty last line of the buffer
		return []Line{{TextRange: TextRange{From: from, To: from}}}
	}
	for i := range lines {
		lines[i].From += from
		lines[i].To += from
	}
	return lines
}
