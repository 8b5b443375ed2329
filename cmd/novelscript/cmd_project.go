/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gonovelscript/internal/export"
	applog "gonovelscript/internal/log"
	"gonovelscript/internal/script"
	"gonovelscript/internal/storage"
)

var (
	exportTitlePage bool
	exportPageSize  string
	exportFontSize  float64

	indexRebuild bool

	searchSpeaker   string
	searchScene     string
	searchTags      []string
	searchTypes     []string
	searchLimit     int
	searchOffset    int
	searchWhereUsed string

	snapshotLabel string
	snapshotLimit int
	snapshotKeep  int
)

var initCmd = &cobra.Command{
	Use:   "init <dir> <name>",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(2),
	RunE:  guard(runInit),
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the script",
}

var exportPDFCmd = &cobra.Command{
	Use:   "pdf [out]",
	Short: "Export a screenplay formatted PDF (default exports/script.pdf)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  guard(runExportPDF),
}

var exportJSONCmd = &cobra.Command{
	Use:   "json [out]",
	Short: "Export the document as schema validated JSON (default stdout)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  guard(runExportJSON),
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Update the project search index",
	Args:  cobra.NoArgs,
	RunE:  guard(runIndex),
}

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search the project index",
	Args:  cobra.MaximumNArgs(1),
	RunE:  guard(runSearch),
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save, list and diff script snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Store the current script text as a snapshot",
	Args:  cobra.NoArgs,
	RunE:  guard(runSnapshotSave),
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE:  guard(runSnapshotList),
}

var snapshotDiffCmd = &cobra.Command{
	Use:   "diff [id]",
	Short: "Diff a snapshot (default the latest) against the current script",
	Args:  cobra.MaximumNArgs(1),
	RunE:  guard(runSnapshotDiff),
}

func init() {
	exportPDFCmd.Flags().BoolVar(&exportTitlePage, "title-page", true, "Render a title page from the document metadata")
	exportPDFCmd.Flags().StringVar(&exportPageSize, "page-size", "A4", "Page size (A4, Letter, ...)")
	exportPDFCmd.Flags().Float64Var(&exportFontSize, "font-size", 12, "Font size in points")
	exportCmd.AddCommand(exportPDFCmd, exportJSONCmd)

	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "Drop and rebuild the index")

	searchCmd.Flags().StringVar(&searchSpeaker, "speaker", "", "Only dialogue of this speaker")
	searchCmd.Flags().StringVar(&searchScene, "scene", "", "Only rows of this scene")
	searchCmd.Flags().StringSliceVar(&searchTags, "tag", nil, "Only cues with one of these tags")
	searchCmd.Flags().StringSliceVar(&searchTypes, "type", nil, "Row types: scene, action, dialogue, cue, prompt, metadata")
	searchCmd.Flags().IntVar(&searchLimit, "limit", storage.DefaultSearchLimit, "Maximum number of results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "Results to skip")
	searchCmd.Flags().StringVar(&searchWhereUsed, "where-used", "", "List rows referencing this name instead")

	snapshotSaveCmd.Flags().StringVar(&snapshotLabel, "label", "", "Snapshot label")
	snapshotSaveCmd.Flags().IntVar(&snapshotKeep, "keep", 0, "Prune to the newest N snapshots after saving")
	snapshotListCmd.Flags().IntVar(&snapshotLimit, "limit", 20, "Maximum number of snapshots")
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotListCmd, snapshotDiffCmd)

	rootCmd.AddCommand(initCmd, exportCmd, indexCmd, searchCmd, snapshotCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	applog.WithComponent("cli").Info("init project", slog.String("root", abs), slog.String("name", args[1]))
	ph, err := storage.InitProject(abs, storage.Project{Name: args[1]})
	if err != nil {
		return err
	}
	session.ph = ph
	if err := storage.WriteScript(ph, ""); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Created project at", abs)
	return err
}

// openProjectDocument opens the project and parses its script.
func openProjectDocument() (*storage.ProjectHandle, *script.Document, string, error) {
	if scriptFile != "" {
		return nil, nil, "", errors.New("this command works on a project; drop --file")
	}
	ph, err := openProject()
	if err != nil {
		return nil, nil, "", err
	}
	text, err := storage.ReadScript(ph)
	if err != nil {
		return nil, nil, "", err
	}
	return ph, script.Parse(text), text, nil
}

func runExportPDF(cmd *cobra.Command, args []string) error {
	ph, doc, _, err := openProjectDocument()
	if err != nil {
		return err
	}
	out := "script.pdf"
	if len(args) == 1 {
		out = args[0]
	}
	opt := export.PDFOptions{
		PageSize:       exportPageSize,
		FontSize:       exportFontSize,
		TitlePage:      exportTitlePage,
		UnknownSpeaker: cfg.Decorate.UnknownSpeaker,
	}
	path, err := export.ExportScriptPDF(ph, doc, out, opt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
	return err
}

func runExportJSON(cmd *cobra.Command, args []string) error {
	doc, _, err := loadDocument()
	if err != nil {
		return err
	}
	b, err := export.DocumentJSON(doc)
	if err != nil {
		return err
	}
	if err := export.ValidateJSON(b); err != nil {
		return err
	}
	if len(args) == 0 {
		_, err = cmd.OutOrStdout().Write(b)
		return err
	}
	if err := os.WriteFile(args[0], b, 0o644); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Wrote", args[0])
	return err
}

func runIndex(cmd *cobra.Command, args []string) error {
	ph, doc, _, err := openProjectDocument()
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd)
	defer cancel()
	if indexRebuild {
		err = storage.RebuildIndex(ctx, ph.Root, doc)
	} else {
		var rebuilt bool
		rebuilt, err = storage.DetectAndRebuildIndex(ctx, ph.Root, doc)
		if err == nil && !rebuilt {
			err = storage.UpdateIndex(ctx, ph.Root, doc)
		}
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d rows into %s\n", len(storage.Rows(doc)), storage.IndexPath(ph.Root))
	return err
}

func runSearch(cmd *cobra.Command, args []string) error {
	ph, err := openProject()
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd)
	defer cancel()
	var res []storage.SearchResult
	if searchWhereUsed != "" {
		res, err = storage.WhereUsed(ctx, ph.Root, searchWhereUsed, searchLimit, searchOffset)
	} else {
		q := storage.SearchQuery{
			Speaker: searchSpeaker,
			Scene:   searchScene,
			Tags:    searchTags,
			Types:   searchTypes,
			Limit:   searchLimit,
			Offset:  searchOffset,
		}
		if len(args) == 1 {
			q.Text = args[0]
		}
		res, err = storage.Search(ctx, ph.Root, q)
	}
	if err != nil {
		return err
	}
	return printResults(cmd, res)
}

func printResults(cmd *cobra.Command, res []storage.SearchResult) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PATH\tTYPE\tWHO\tTEXT")
	for _, r := range res {
		who := r.Speaker
		if r.Tag != "" {
			who = "@" + r.Tag
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Path, r.Type, who, r.Snippet)
	}
	return tw.Flush()
}

func runSnapshotSave(cmd *cobra.Command, args []string) error {
	ph, _, text, err := openProjectDocument()
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd)
	defer cancel()
	id, err := storage.SaveScriptSnapshot(ctx, ph, text, snapshotLabel, time.Now())
	if err != nil {
		return err
	}
	if snapshotKeep > 0 {
		if _, err := storage.PruneOldScriptSnapshots(ctx, ph, snapshotKeep); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved snapshot %d\n", id)
	return err
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	ph, err := openProject()
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd)
	defer cancel()
	snaps, err := storage.ListScriptSnapshots(ctx, ph, snapshotLimit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTIME\tLABEL\tLINES")
	for _, s := range snaps {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", s.ID, s.TS.Format(time.RFC3339), s.Label, strings.Count(s.Text, "\n"))
	}
	return tw.Flush()
}

func runSnapshotDiff(cmd *cobra.Command, args []string) error {
	ph, _, text, err := openProjectDocument()
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd)
	defer cancel()
	var snap storage.ScriptSnapshot
	if len(args) == 1 {
		id, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil {
			return fmt.Errorf("snapshot id %q: %w", args[0], perr)
		}
		snap, err = storage.GetScriptSnapshot(ctx, ph, id)
	} else {
		snap, err = storage.GetLatestScriptSnapshot(ctx, ph)
		if err == nil && snap.ID == 0 {
			err = storage.ErrSnapshotNotFound
		}
	}
	if err != nil {
		return err
	}
	d := storage.DiffScripts(snap.Text, text)
	out := cmd.OutOrStdout()
	if !d.Changed() {
		_, err = fmt.Fprintf(out, "No changes since snapshot %d\n", snap.ID)
		return err
	}
	_, err = fmt.Fprintf(out, "snapshot %d -> working script (+%d -%d)\n%s", snap.ID, d.Added, d.Removed, d.String())
	return err
}
