/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gonovelscript/internal/export"
	"gonovelscript/internal/script"
	"gonovelscript/internal/storage"
)

func TestE2E_PublishRepublishAndSnapshot(t *testing.T) {
	db := openPGForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc := script.Parse(parityScript)
	first, err := PublishDocument(ctx, db, storage.Project{Name: "E2E"}, doc)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if first.Version != 1 || first.Rows != len(storage.Rows(doc)) {
		t.Fatalf("unexpected publication %+v", first)
	}

	smaller := script.Parse("== Only ==\nOne line.\n")
	second, err := PublishDocument(ctx, db, storage.Project{Name: "E2E", RemoteID: first.ProjectID}, smaller)
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if second.ProjectID != first.ProjectID || second.Version != 2 {
		t.Fatalf("republish should bump version on same project: %+v", second)
	}
	res, err := SearchPG(ctx, db, first.ProjectID, storage.SearchQuery{Text: "storm"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("republish should replace old rows, found %d", len(res))
	}

	snap, err := LatestSnapshot(ctx, db, first.ProjectID)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if snap.Version != 2 {
		t.Fatalf("latest snapshot version = %d", snap.Version)
	}
	if err := export.ValidateJSON(snap.JSON); err != nil {
		t.Fatalf("stored snapshot does not validate: %v", err)
	}
	var v map[string]any
	if err := json.Unmarshal(snap.JSON, &v); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}

	projects, err := ListProjects(ctx, db)
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	found := false
	for _, p := range projects {
		if p.ID == first.ProjectID && p.Version == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("project %d missing from listing", first.ProjectID)
	}
}

func TestPublish_UnknownRemoteID(t *testing.T) {
	db := openPGForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := PublishDocument(ctx, db, storage.Project{Name: "x", RemoteID: -42}, script.Parse("")); err == nil {
		t.Fatal("expected error for unknown remote id")
	}
	if _, err := LatestSnapshot(ctx, db, -42); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("001_init.sql"); err != nil || v != 1 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	if _, err := parseVersion("init.sql"); err == nil {
		t.Fatal("expected error without numeric prefix")
	}
}
