/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gonovelscript/internal/storage"
)

// silenceStderr redirects os.Stderr for the duration of the test.
func silenceStderr(t *testing.T) {
	t.Helper()
	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stderr = w
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, r)
		close(done)
	}()
	t.Cleanup(func() {
		_ = w.Close()
		<-done
		_ = r.Close()
		os.Stderr = oldStderr
	})
}

func interceptExit(t *testing.T) *int {
	t.Helper()
	code := new(int)
	oldExit := exitFn
	exitFn = func(c int) { *code = c }
	t.Cleanup(func() { exitFn = oldExit })
	return code
}

func TestRecover_WritesReportAndScriptSnapshot(t *testing.T) {
	silenceStderr(t)
	code := interceptExit(t)

	root := t.TempDir()
	ph, err := storage.InitProject(root, storage.Project{Name: "Crashy"})
	if err != nil {
		t.Fatalf("init project: %v", err)
	}

	func() {
		defer Recover(ph, func() string { return "== Unsaved ==\nA line.\n" })
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}

	bdir := filepath.Join(root, storage.BackupsDirName)
	files, err := os.ReadDir(bdir)
	if err != nil {
		t.Fatalf("read backups: %v", err)
	}
	var report, manifest string
	for _, f := range files {
		switch {
		case strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log"):
			report = filepath.Join(bdir, f.Name())
		case strings.HasPrefix(f.Name(), "novel.crash-"):
			manifest = f.Name()
		}
	}
	if report == "" || manifest == "" {
		t.Fatalf("expected report and manifest autosave, got %v", files)
	}
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("report does not contain panic: %s", string(b))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := storage.GetLatestScriptSnapshot(ctx, ph)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if snap.Label != CrashLabel || !strings.Contains(snap.Text, "Unsaved") {
		t.Fatalf("unexpected crash snapshot %+v", snap)
	}
}

func TestRecover_NoPanicIsNoop(t *testing.T) {
	code := interceptExit(t)
	func() {
		defer Recover(nil, nil)
	}()
	if *code != 0 {
		t.Fatalf("exit should not be called, got %d", *code)
	}
}

func TestRecover_NilProjectStillReports(t *testing.T) {
	silenceStderr(t)
	code := interceptExit(t)
	func() {
		defer Recover(nil, func() string { return "ignored" })
		panic("no project")
	}()
	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
}
