/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// language=SQL
// dialect=SQLite
const insertScriptSnapshotSQL = `INSERT INTO script_snapshots(ts, label, text) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestScriptSnapshotSQL = `SELECT id, ts, label, text FROM script_snapshots ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const selectScriptSnapshotSQL = `SELECT id, ts, label, text FROM script_snapshots WHERE id = ?`

// language=SQL
// dialect=SQLite
const listScriptSnapshotsSQL = `SELECT id, ts, label, text FROM script_snapshots ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldScriptSnapshotsSQL = `DELETE FROM script_snapshots WHERE id NOT IN (
	SELECT id FROM script_snapshots ORDER BY ts DESC, id DESC LIMIT ?
)`

// ScriptSnapshot is one saved version of the script text.
type ScriptSnapshot struct {
	ID    int64
	TS    time.Time
	Label string
	Text  string
}

// ErrSnapshotNotFound is returned by GetScriptSnapshot for an unknown id.
var ErrSnapshotNotFound = errors.New("script snapshot not found")

// SaveScriptSnapshot persists the full script text with a timestamp and an optional label.
// The index database is derived; this history is meant for change tracking, not canonical storage.
func SaveScriptSnapshot(ctx context.Context, ph *ProjectHandle, text, label string, ts time.Time) (int64, error) {
	if ph == nil {
		return 0, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, insertScriptSnapshotSQL, ts.UTC().Format(time.RFC3339Nano), label, text)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetLatestScriptSnapshot returns the latest snapshot, or a zero value if none exists.
func GetLatestScriptSnapshot(ctx context.Context, ph *ProjectHandle) (ScriptSnapshot, error) {
	if ph == nil {
		return ScriptSnapshot{}, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return ScriptSnapshot{}, err
	}
	defer func() { _ = db.Close() }()
	s, err := scanSnapshot(db.QueryRowContext(ctx, selectLatestScriptSnapshotSQL))
	if errors.Is(err, sql.ErrNoRows) {
		return ScriptSnapshot{}, nil
	}
	return s, err
}

// GetScriptSnapshot returns the snapshot with the given id.
func GetScriptSnapshot(ctx context.Context, ph *ProjectHandle, id int64) (ScriptSnapshot, error) {
	if ph == nil {
		return ScriptSnapshot{}, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return ScriptSnapshot{}, err
	}
	defer func() { _ = db.Close() }()
	s, err := scanSnapshot(db.QueryRowContext(ctx, selectScriptSnapshotSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ScriptSnapshot{}, ErrSnapshotNotFound
	}
	return s, err
}

// ListScriptSnapshots returns up to limit most recent script snapshots, newest first.
func ListScriptSnapshots(ctx context.Context, ph *ProjectHandle, limit int) ([]ScriptSnapshot, error) {
	if ph == nil {
		return nil, errors.New("nil ProjectHandle")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listScriptSnapshotsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []ScriptSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneOldScriptSnapshots keeps at most keepLast snapshots and deletes older ones.
func PruneOldScriptSnapshots(ctx context.Context, ph *ProjectHandle, keepLast int) (int64, error) {
	if ph == nil {
		return 0, errors.New("nil ProjectHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldScriptSnapshotsSQL, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r rowScanner) (ScriptSnapshot, error) {
	var s ScriptSnapshot
	var tsStr string
	if err := r.Scan(&s.ID, &tsStr, &s.Label, &s.Text); err != nil {
		return ScriptSnapshot{}, err
	}
	// A malformed timestamp leaves TS zero; the text is still usable.
	s.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
	return s, nil
}
