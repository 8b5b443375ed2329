/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes parsed scripts out as script-formatted PDF and as
// schema-checked JSON.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"gonovelscript/internal/decorate"
	"gonovelscript/internal/script"
	"gonovelscript/internal/storage"
)

// PDFOptions controls PDF export behavior.
// Units are points (pt). Built-in Courier keeps text vector without embedding.
type PDFOptions struct {
	// PageSize is a gofpdf size name such as "A4" or "Letter". Defaults to A4.
	PageSize string
	FontSize float64
	Margin   float64
	// TitlePage adds a leading page built from document metadata when a
	// "Title" key is present.
	TitlePage bool
	// UnknownSpeaker names continuation speakers with no prior speaker.
	UnknownSpeaker string
	// CreationDate is embedded when non-zero, which makes output reproducible.
	CreationDate time.Time
}

func (o PDFOptions) withDefaults() PDFOptions {
	if o.PageSize == "" {
		o.PageSize = "A4"
	}
	if o.FontSize <= 0 {
		o.FontSize = 12
	}
	if o.Margin <= 0 {
		o.Margin = 72
	}
	if o.UnknownSpeaker == "" {
		o.UnknownSpeaker = decorate.DefaultUnknownSpeaker
	}
	return o
}

// Layout indents relative to the left margin, in multiples of the font size.
const (
	dialogueIndent      = 10.0
	parentheticalIndent = 13.0
	speakerIndent       = 18.0
)

// ScriptPDF lays out doc in screenplay form and writes the PDF to w. It
// returns the number of pages written.
func ScriptPDF(doc *script.Document, w io.Writer, opt PDFOptions) (int, error) {
	if doc == nil {
		return 0, errors.New("document is nil")
	}
	opt = opt.withDefaults()
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", SizeStr: opt.PageSize})
	if !opt.CreationDate.IsZero() {
		pdf.SetCreationDate(opt.CreationDate)
	}
	pdf.SetMargins(opt.Margin, opt.Margin, opt.Margin)
	pdf.SetAutoPageBreak(true, opt.Margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if title := doc.Metadata.Value("Title"); title != "" {
		pdf.SetTitle(title, true)
	}
	if author := doc.Metadata.Value("Author"); author != "" {
		pdf.SetAuthor(author, true)
	}
	pdf.SetCreator("novelscript", false)

	lw := &layout{pdf: pdf, tr: tr, size: opt.FontSize, line: opt.FontSize * 1.2, unknown: opt.UnknownSpeaker}
	if opt.TitlePage && doc.Metadata.Value("Title") != "" {
		lw.titlePage(doc.Metadata)
	}
	pdf.AddPage()
	for i, sc := range doc.Scenes {
		if i > 0 {
			lw.gap()
		}
		lw.scene(sc)
	}
	if len(doc.Orphans) > 0 {
		lw.gap()
		for _, it := range doc.Orphans {
			lw.item(it)
		}
	}
	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("layout pdf: %w", err)
	}
	pages := pdf.PageCount()
	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("write pdf: %w", err)
	}
	return pages, nil
}

// ExportScriptPDF writes the PDF to outPath. Relative paths are placed under
// the project's exports folder.
func ExportScriptPDF(ph *storage.ProjectHandle, doc *script.Document, outPath string, opt PDFOptions) (string, error) {
	if ph == nil {
		return "", errors.New("project handle is nil")
	}
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(ph.Root, "exports", outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	var buf bytes.Buffer
	if _, err := ScriptPDF(doc, &buf, opt); err != nil {
		return "", err
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return outPath, nil
}

type layout struct {
	pdf     *gofpdf.Fpdf
	tr      func(string) string
	size    float64
	line    float64
	unknown string
}

func (l *layout) font(style string) { l.pdf.SetFont("Courier", style, l.size) }

func (l *layout) gap() { l.pdf.Ln(l.line) }

func (l *layout) block(indent float64, style, text string, align string) {
	left, _, right, _ := l.pdf.GetMargins()
	pageW, _ := l.pdf.GetPageSize()
	x := left + indent*l.size*0.6
	l.font(style)
	l.pdf.SetX(x)
	l.pdf.MultiCell(pageW-right-x, l.line, l.tr(text), "", align, false)
}

func (l *layout) titlePage(meta script.Metadata) {
	l.pdf.AddPage()
	_, pageH := l.pdf.GetPageSize()
	l.pdf.SetY(pageH / 3)
	l.block(0, "B", strings.ToUpper(meta.Value("Title")), "C")
	for _, k := range meta.Keys() {
		if k == "Title" {
			continue
		}
		l.gap()
		l.block(0, "", k+": "+meta.Value(k), "C")
	}
}

func (l *layout) scene(sc script.Scene) {
	l.block(0, "B", strings.ToUpper(sc.Name), "L")
	for _, k := range sc.Metadata.Keys() {
		l.block(0, "I", k+": "+sc.Metadata.Value(k), "L")
	}
	l.gap()
	for _, it := range sc.Items {
		l.item(it)
	}
}

func (l *layout) item(it script.SceneItem) {
	switch v := it.(type) {
	case script.ActionLine:
		l.block(0, "", v.Content.AsText(), "L")
	case script.Speaker:
		l.gap()
		name := strings.ToUpper(v.Name())
		if name == "" {
			name = strings.ToUpper(l.unknown)
		}
		if v.Continued {
			name += " (CONT'D)"
		}
		l.block(speakerIndent, "", name, "L")
	case script.DialogueLine:
		text := v.Content.AsText()
		if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
			l.block(parentheticalIndent, "I", text, "L")
			return
		}
		l.block(dialogueIndent, "", text, "L")
	case script.TaggedAction:
		l.block(0, "I", "["+v.Tag+"] "+v.Content.AsText(), "L")
	case script.Prompt:
		l.gap()
		for i, opt := range v.Options {
			l.block(dialogueIndent, "B", fmt.Sprintf("%d. %s", i+1, opt), "L")
		}
	}
}
