/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gonovelscript/internal/script"
	"gonovelscript/internal/storage"
)

const exportScript = `Title: The Lighthouse
Author: M. Keeper

== Arrival ==
Mood: grey
The boat scrapes onto the **shingle**.
@BGM [[waves.ogg]]
[Keeper|Old Tom]
You're late.
(beat)
[&]
See the [map](https://example.org/map).
%PROMPT "Follow him", 'Stay'
`

func TestScriptPDFWritesPages(t *testing.T) {
	doc := script.Parse(exportScript)
	var buf bytes.Buffer
	pages, err := ScriptPDF(doc, &buf, PDFOptions{TitlePage: true})
	if err != nil {
		t.Fatalf("ScriptPDF: %v", err)
	}
	if pages != 2 {
		t.Fatalf("expected title page plus one script page, got %d", pages)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestScriptPDFReproducible(t *testing.T) {
	doc := script.Parse(exportScript)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var a, b bytes.Buffer
	if _, err := ScriptPDF(doc, &a, PDFOptions{CreationDate: fixed}); err != nil {
		t.Fatal(err)
	}
	if _, err := ScriptPDF(doc, &b, PDFOptions{CreationDate: fixed}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("same document and date should give identical output")
	}
}

func TestScriptPDFNilDocument(t *testing.T) {
	if _, err := ScriptPDF(nil, &bytes.Buffer{}, PDFOptions{}); err == nil {
		t.Fatalf("expected error for nil document")
	}
}

func TestExportScriptPDF_CreatesFile(t *testing.T) {
	root := t.TempDir()
	ph, err := storage.InitProject(root, storage.Project{Name: "Export"})
	if err != nil {
		t.Fatalf("init project: %v", err)
	}
	out, err := ExportScriptPDF(ph, script.Parse(exportScript), "script.pdf", PDFOptions{PageSize: "Letter"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out != filepath.Join(root, "exports", "script.pdf") {
		t.Fatalf("relative path should land in exports, got %s", out)
	}
	st, err := os.Stat(out)
	if err != nil || st.Size() == 0 {
		t.Fatalf("pdf missing or empty: %v", err)
	}
}

func TestDocumentJSONValidates(t *testing.T) {
	data, err := DocumentJSON(script.Parse(exportScript))
	if err != nil {
		t.Fatalf("DocumentJSON: %v", err)
	}
	if err := ValidateJSON(data); err != nil {
		t.Fatalf("ValidateJSON: %v\n%s", err, data)
	}
	var got struct {
		Version  int               `json:"version"`
		Metadata map[string]string `json:"metadata"`
		Scenes   []struct {
			Name  string `json:"name"`
			Items []struct {
				Kind      string   `json:"kind"`
				Text      string   `json:"text"`
				Tag       string   `json:"tag"`
				Options   []string `json:"options"`
				Continued bool     `json:"continued"`
				Speaker   *struct {
					Referent string `json:"referent"`
				} `json:"speaker"`
			} `json:"items"`
		} `json:"scenes"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Version != JSONFormatVersion || got.Metadata["Title"] != "The Lighthouse" || len(got.Scenes) != 1 {
		t.Fatalf("unexpected document header %+v", got)
	}
	it := got.Scenes[0].Items
	var kinds []string
	for _, i := range it {
		kinds = append(kinds, i.Kind)
	}
	want := "ActionLine,TaggedAction,Speaker,DialogueLine,DialogueLine,Speaker,DialogueLine,Prompt"
	if strings.Join(kinds, ",") != want {
		t.Fatalf("kinds = %v", kinds)
	}
	if it[0].Text != "The boat scrapes onto the shingle." || it[1].Tag != "BGM" {
		t.Fatalf("unexpected items %+v %+v", it[0], it[1])
	}
	if !it[5].Continued || it[6].Speaker == nil || it[6].Speaker.Referent != "Keeper" {
		t.Fatalf("continuation not exported: %+v %+v", it[5], it[6])
	}
	if strings.Join(it[7].Options, "|") != "Follow him|Stay" {
		t.Fatalf("prompt options = %v", it[7].Options)
	}
}

func TestDocumentJSONKeepsMetadataOrder(t *testing.T) {
	data, err := DocumentJSON(script.Parse("Zeta: 1\nAlpha: 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if z, a := bytes.Index(data, []byte(`"Zeta"`)), bytes.Index(data, []byte(`"Alpha"`)); z < 0 || a < z {
		t.Fatalf("metadata order lost:\n%s", data)
	}
	again, _ := DocumentJSON(script.Parse("Zeta: 1\nAlpha: 2\n"))
	if !bytes.Equal(data, again) {
		t.Fatalf("output not stable")
	}
}

func TestDocumentJSONNilDocument(t *testing.T) {
	data, err := DocumentJSON(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateJSON(data); err != nil {
		t.Fatalf("empty document should validate: %v", err)
	}
}

func TestValidateJSONRejects(t *testing.T) {
	bad := []string{
		`{"version": 2, "metadata": {}, "scenes": [], "orphans": []}`,
		`{"version": 1, "metadata": {}, "scenes": [{"name": "x"}], "orphans": []}`,
		`{"version": 1, "metadata": {}, "scenes": [], "orphans": [{"kind": "Bogus", "range": {"from": 0, "to": 1}}]}`,
	}
	for _, b := range bad {
		if err := ValidateJSON([]byte(b)); err == nil {
			t.Fatalf("expected schema error for %s", b)
		}
	}
	if err := ValidateJSON([]byte("not json")); err == nil {
		t.Fatalf("expected error for malformed input")
	}
	if len(SchemaJSON()) == 0 {
		t.Fatalf("schema not embedded")
	}
}
