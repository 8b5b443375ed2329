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
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gonovelscript/internal/export"
	applog "gonovelscript/internal/log"
	"gonovelscript/internal/script"
	"gonovelscript/internal/storage"
)

// Publication reports the outcome of PublishDocument.
type Publication struct {
	ProjectID int64
	Version   int64
	Rows      int
}

// Project is a minimal projection for listing.
type Project struct {
	ID        int64
	Name      string
	UpdatedAt time.Time
	Version   int64
}

// Snapshot is a stored JSON export of a published document.
type Snapshot struct {
	ProjectID int64
	Version   int64
	CreatedAt time.Time
	JSON      []byte
}

// ErrNoSnapshot is returned by LatestSnapshot for a project never published.
var ErrNoSnapshot = errors.New("backend: no snapshot")

// PublishDocument replaces the mirrored rows of the project with those of doc
// and stores a JSON snapshot, all in one transaction. A project with
// RemoteID 0 is created; otherwise its version is bumped.
func PublishDocument(ctx context.Context, db *sql.DB, proj storage.Project, doc *script.Document) (Publication, error) {
	l := applog.WithOperation(applog.WithComponent("backend"), "publish")
	snap, err := export.DocumentJSON(doc)
	if err != nil {
		return Publication{}, err
	}
	rows := storage.Rows(doc)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Publication{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var pub Publication
	if proj.RemoteID == 0 {
		err = tx.QueryRowContext(ctx, `INSERT INTO projects(name, version) VALUES($1, 1) RETURNING id, version`, proj.Name).Scan(&pub.ProjectID, &pub.Version)
	} else {
		err = tx.QueryRowContext(ctx, `UPDATE projects SET name=$2, version=version+1, updated_at=now() WHERE id=$1 RETURNING id, version`, proj.RemoteID, proj.Name).Scan(&pub.ProjectID, &pub.Version)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Publication{}, fmt.Errorf("project %d not found", proj.RemoteID)
	}
	if err != nil {
		return Publication{}, fmt.Errorf("upsert project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE project_id=$1`, pub.ProjectID); err != nil {
		return Publication{}, fmt.Errorf("clear documents: %w", err)
	}
	for _, r := range rows {
		var id int64
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO documents(project_id, doc_type, path, scene, speaker, tag, pos, raw_text) VALUES($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
			pub.ProjectID, r.Type, r.Path, nullString(r.Scene), nullString(r.Speaker), nullString(r.Tag), r.Pos, r.Text,
		).Scan(&id); err != nil {
			return Publication{}, fmt.Errorf("insert document: %w", err)
		}
		for _, ref := range r.Refs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO doc_refs(document_id, referent) VALUES($1,$2) ON CONFLICT DO NOTHING`, id, ref); err != nil {
				return Publication{}, fmt.Errorf("insert ref: %w", err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO index_snapshots(project_id, version, snapshot) VALUES($1,$2,$3)`, pub.ProjectID, pub.Version, string(snap)); err != nil {
		return Publication{}, fmt.Errorf("insert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Publication{}, fmt.Errorf("commit: %w", err)
	}
	pub.Rows = len(rows)
	l.InfoContext(ctx, "document published", slog.Int64("project", pub.ProjectID), slog.Int64("version", pub.Version), slog.Int("rows", pub.Rows))
	return pub, nil
}

// ListProjects returns mirrored projects, most recently updated first.
func ListProjects(ctx context.Context, db *sql.DB) ([]Project, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, updated_at, version FROM projects ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.UpdatedAt, &p.Version); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the newest stored JSON export of a project.
func LatestSnapshot(ctx context.Context, db *sql.DB, projectID int64) (Snapshot, error) {
	s := Snapshot{ProjectID: projectID}
	var raw string
	err := db.QueryRowContext(ctx, `SELECT version, snapshot::text, created_at FROM index_snapshots WHERE project_id = $1 ORDER BY version DESC, id DESC LIMIT 1`, projectID).Scan(&s.Version, &raw, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("select snapshot: %w", err)
	}
	s.JSON = []byte(raw)
	return s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
