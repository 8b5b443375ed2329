/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitProjectCreatesStructureAndManifest(t *testing.T) {
	root := t.TempDir()
	proj := Project{Name: "Test Project", Metadata: map[string]string{"Author": "M. Keeper"}}

	ph, err := InitProject(root, proj)
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	b, err := os.ReadFile(ph.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var got Project
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if got.Name != proj.Name || got.Metadata["Author"] != "M. Keeper" {
		t.Fatalf("manifest mismatch: %+v", got)
	}
	if got.Script != "script/script.txt" {
		t.Fatalf("default script path = %q", got.Script)
	}
	for _, d := range []string{ScriptDirName, "exports", BackupsDirName} {
		p := filepath.Join(root, d)
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", p)
		}
	}
}

func TestInitProjectRequiresRoot(t *testing.T) {
	if _, err := InitProject("  ", Project{}); err == nil {
		t.Fatalf("expected error for blank root")
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, Project{Name: "Backup Test"})
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	ph.Project.Metadata = map[string]string{"Notes": "changed"}
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(root, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	var bakCount int
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			bakCount++
		}
	}
	if bakCount == 0 {
		t.Fatalf("expected at least one backup file, found 0")
	}
}

func TestOpenFallsBackToLatestBackupOnCorruption(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, Project{Name: "Open From Backup"})
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(ph.ManifestPath, []byte("{ this is not json"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}
	opened, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if opened.Project.Name != "Open From Backup" {
		t.Fatalf("opened project name mismatch: got %q", opened.Project.Name)
	}
}

func TestOpenMissingProjectFails(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatalf("expected error without manifest or backups")
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, Project{Name: "Crash Snapshot"})
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	path, err := AutosaveCrashSnapshot(ph)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var got Project
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.Name != "Crash Snapshot" {
		t.Fatalf("snapshot content mismatch: got %q", got.Name)
	}
}

func TestSaveAsMovesManifestAndScript(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, Project{Name: "Orig"})
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	if err := WriteScript(ph, "== One ==\nHi.\n"); err != nil {
		t.Fatalf("WriteScript: %v", err)
	}
	ph.Project.Name = "Renamed"
	newRoot := filepath.Join(root, "newproj")
	if err := SaveAs(ph, newRoot); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if ph.Root != newRoot || ph.ManifestPath != filepath.Join(newRoot, ManifestFileName) {
		t.Fatalf("ProjectHandle paths not updated: %+v", ph)
	}
	opened, err := Open(newRoot)
	if err != nil || opened.Project.Name != "Renamed" {
		t.Fatalf("reopen: %v %+v", err, opened)
	}
	txt, err := ReadScript(opened)
	if err != nil || txt != "== One ==\nHi.\n" {
		t.Fatalf("script not copied: %q err=%v", txt, err)
	}
}

func TestScriptFilePath_NilHandle(t *testing.T) {
	if p := ScriptFilePath(nil); p != "" {
		t.Fatalf("expected empty path for nil handle, got %q", p)
	}
}

func TestReadScript_MissingReturnsEmpty(t *testing.T) {
	root := t.TempDir()
	ph := &ProjectHandle{Root: root, ManifestPath: filepath.Join(root, ManifestFileName)}
	s, err := ReadScript(ph)
	if err != nil {
		t.Fatalf("ReadScript unexpected error for missing file: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for missing script, got %q", s)
	}
}

func TestWriteScript_AndReadBack(t *testing.T) {
	root := t.TempDir()
	ph := &ProjectHandle{Root: root, ManifestPath: filepath.Join(root, ManifestFileName)}

	text := "== Lab ==\nThe experiment begins."
	if err := WriteScript(ph, text); err != nil {
		t.Fatalf("WriteScript error: %v", err)
	}
	p := ScriptFilePath(ph)
	if filepath.Dir(p) != filepath.Join(root, ScriptDirName) {
		t.Fatalf("script path dir mismatch: %q", p)
	}
	got, err := ReadScript(ph)
	if err != nil {
		t.Fatalf("ReadScript error: %v", err)
	}
	if got != text {
		t.Fatalf("roundtrip mismatch: %q vs %q", got, text)
	}
}
