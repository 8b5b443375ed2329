/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"gonovelscript/internal/config"
	"gonovelscript/internal/decorate"
	"gonovelscript/internal/export"
	"gonovelscript/internal/query"
	"gonovelscript/internal/render"
)

var (
	decorateVisible   []string
	decorateSelection []string
	decorateJSON      bool
	decorateFolds     bool
	queryCheck        bool
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse the script and print the document as JSON",
	Args:  cobra.NoArgs,
	RunE:  guard(runParse),
}

var outlineCmd = &cobra.Command{
	Use:   "outline",
	Short: "Print the parsed document as a tree",
	Args:  cobra.NoArgs,
	RunE:  guard(runOutline),
}

var queryCmd = &cobra.Command{
	Use:   "query <expression>",
	Short: "Evaluate a query expression against the document",
	Long: `Evaluates an expression over the parsed document. The environment exposes
doc (scenes, metadata, orphans, cues(tag), speakers(), dialogue(referent),
scene(name)), the kind names ActionLine, DialogueLine, TaggedAction, Speaker,
Prompt, Text, Formatting and Reference, and the helpers items(scene),
is(kind, value), text(value), compare(a, b) and meta(value, key).

Example:
  novelscript query 'map(filter(items(doc.scenes[0]), is(DialogueLine, #)), text(#))'`,
	Args: cobra.ExactArgs(1),
	RunE: guard(runQuery),
}

var decorateCmd = &cobra.Command{
	Use:   "decorate",
	Short: "Preview the decoration overlay of the visible text",
	Long: `Computes decorations as an editor would for the given visible ranges and
selection ("from:to" byte offsets, comma separated; a single offset is a
cursor). Without --visible the whole script is decorated.`,
	Args: cobra.NoArgs,
	RunE: guard(runDecorate),
}

func init() {
	decorateCmd.Flags().StringSliceVar(&decorateVisible, "visible", nil, "Visible ranges as from:to")
	decorateCmd.Flags().StringSliceVar(&decorateSelection, "selection", nil, "Selection ranges as from:to")
	decorateCmd.Flags().BoolVar(&decorateJSON, "json", false, "Print the decoration set as JSON")
	decorateCmd.Flags().BoolVar(&decorateFolds, "folds", false, "Print the fold ranges instead")
	queryCmd.Flags().BoolVar(&queryCheck, "check", false, "Only compile the expression")
	rootCmd.AddCommand(parseCmd, outlineCmd, queryCmd, decorateCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	doc, _, err := loadDocument()
	if err != nil {
		return err
	}
	b, err := export.DocumentJSON(doc)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}

func runOutline(cmd *cobra.Command, args []string) error {
	doc, _, err := loadDocument()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), render.Render(doc).String())
	return err
}

func newEvaluator(c config.AppConfig) *query.Evaluator {
	return query.New(query.Options{CacheSize: c.Query.CacheSize, Timeout: c.Query.Timeout()})
}

func runQuery(cmd *cobra.Command, args []string) error {
	ev := newEvaluator(cfg)
	if queryCheck {
		if err := ev.Check(args[0]); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return err
	}
	doc, _, err := loadDocument()
	if err != nil {
		return err
	}
	v, err := ev.Evaluate(cmdContext(cmd), doc, args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), render.Render(v).String())
	return err
}

func newEngine(c config.AppConfig) *decorate.Engine {
	return decorate.NewEngine(decorate.Options{
		PlayableTags:   c.Decorate.PlayableTags,
		UnknownSpeaker: c.Decorate.UnknownSpeaker,
	})
}

// newTheme applies the configured class overrides over the selected preset.
func newTheme(c config.AppConfig) *decorate.Theme {
	th := decorate.NewTheme(c.General.Theme)
	if len(c.Decorate.Styles) == 0 {
		return th
	}
	over := make(map[string]decorate.StyleSpec, len(c.Decorate.Styles))
	for class, s := range c.Decorate.Styles {
		over[class] = decorate.StyleSpec{
			Foreground: s.Foreground,
			Background: s.Background,
			Bold:       s.Bold,
			Italic:     s.Italic,
			Underline:  s.Underline,
			Faint:      s.Faint,
		}
	}
	return th.WithUser(over)
}

func runDecorate(cmd *cobra.Command, args []string) error {
	doc, text, err := loadDocument()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if decorateFolds {
		folds := decorate.FoldRanges(text, doc)
		sort.Slice(folds, func(i, j int) bool { return folds[i].From < folds[j].From })
		for _, f := range folds {
			if _, err := fmt.Fprintf(out, "%d:%d\n", f.From, f.To); err != nil {
				return err
			}
		}
		return nil
	}
	visible, err := parseRanges(decorateVisible)
	if err != nil {
		return err
	}
	selection, err := parseRanges(decorateSelection)
	if err != nil {
		return err
	}
	set := newEngine(cfg).Decorate(text, decorate.View{Visible: visible, Selection: selection})
	if decorateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(set)
	}
	_, err = fmt.Fprint(out, decorate.Preview(text, set, newTheme(cfg), visible))
	return err
}
