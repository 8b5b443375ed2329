/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"testing"
	"time"
)

func TestScriptSnapshotsSaveListPrune(t *testing.T) {
	root := t.TempDir()
	ctx := testCtx(t)
	ph := &ProjectHandle{Root: root}

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, text := range []string{"v1", "v2", "v3"} {
		if _, err := SaveScriptSnapshot(ctx, ph, text, "", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("SaveScriptSnapshot: %v", err)
		}
	}
	latest, err := GetLatestScriptSnapshot(ctx, ph)
	if err != nil || latest.Text != "v3" || !latest.TS.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("latest = %+v err=%v", latest, err)
	}
	list, err := ListScriptSnapshots(ctx, ph, 2)
	if err != nil || len(list) != 2 || list[0].Text != "v3" || list[1].Text != "v2" {
		t.Fatalf("list = %+v err=%v", list, err)
	}
	n, err := PruneOldScriptSnapshots(ctx, ph, 1)
	if err != nil || n != 2 {
		t.Fatalf("prune removed %d err=%v", n, err)
	}
	list, _ = ListScriptSnapshots(ctx, ph, 0)
	if len(list) != 1 || list[0].Text != "v3" {
		t.Fatalf("after prune: %+v", list)
	}
}

func TestGetScriptSnapshotByID(t *testing.T) {
	root := t.TempDir()
	ctx := testCtx(t)
	ph := &ProjectHandle{Root: root}
	id, err := SaveScriptSnapshot(ctx, ph, "== A ==\n", "draft", time.Now())
	if err != nil {
		t.Fatalf("SaveScriptSnapshot: %v", err)
	}
	s, err := GetScriptSnapshot(ctx, ph, id)
	if err != nil || s.Label != "draft" || s.Text != "== A ==\n" {
		t.Fatalf("get = %+v err=%v", s, err)
	}
	if _, err := GetScriptSnapshot(ctx, ph, id+100); err != ErrSnapshotNotFound {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestLatestSnapshotEmpty(t *testing.T) {
	s, err := GetLatestScriptSnapshot(testCtx(t), &ProjectHandle{Root: t.TempDir()})
	if err != nil || s.ID != 0 || s.Text != "" {
		t.Fatalf("expected zero snapshot, got %+v err=%v", s, err)
	}
}

func TestSnapshotsNilHandle(t *testing.T) {
	ctx := testCtx(t)
	if _, err := SaveScriptSnapshot(ctx, nil, "", "", time.Now()); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ListScriptSnapshots(ctx, nil, 1); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDiffScripts(t *testing.T) {
	old := "== A ==\nHello.\n[Mara]\nHi.\n"
	updated := "== A ==\nHello there.\n[Mara]\nHi.\n@BGM [[theme]]\n"
	d := DiffScripts(old, updated)
	if !d.Changed() || d.Added != 2 || d.Removed != 1 {
		t.Fatalf("unexpected stats +%d -%d", d.Added, d.Removed)
	}
	want := "  == A ==\n- Hello.\n+ Hello there.\n  [Mara]\n  Hi.\n+ @BGM [[theme]]\n"
	if got := d.String(); got != want {
		t.Fatalf("diff text:\n%s\nwant:\n%s", got, want)
	}
	if DiffScripts(old, old).Changed() {
		t.Fatalf("identical scripts should not differ")
	}
}
