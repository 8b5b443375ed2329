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
	"fmt"
	"strings"
)

// SearchQuery describes a search request.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Filters are optional and compared case-insensitively. Tags match cue rows
// carrying any of the given tags, without the leading @.
// Types restrict to row kinds: scene, action, dialogue, cue, prompt, metadata.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text    string
	Speaker string
	Scene   string
	Tags    []string
	Types   []string
	Limit   int
	Offset  int
}

// SearchResult represents a single match row. The FTS table is contentless,
// so Snippet carries the stored row text.
type SearchResult struct {
	DocID   int64
	Type    string
	Path    string
	Scene   string
	Speaker string
	Tag     string
	Pos     int
	Snippet string
}

// DefaultSearchLimit applies when SearchQuery.Limit is zero.
const DefaultSearchLimit = 100

// Search performs full-text search with optional filters over the embedded index.
// When q.Text is empty, it falls back to a non-FTS scan over documents with filters applied.
func Search(ctx context.Context, projectRoot string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

// Normalized returns q with filters trimmed and lowercased, empty tags
// dropped and paging defaults applied. Both search backends run it first.
func (q SearchQuery) Normalized() SearchQuery {
	n := SearchQuery{
		Text:    strings.TrimSpace(q.Text),
		Speaker: strings.ToLower(strings.TrimSpace(q.Speaker)),
		Scene:   strings.ToLower(strings.TrimSpace(q.Scene)),
		Tags:    normalizeTags(q.Tags),
	}
	for _, t := range q.Types {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			n.Types = append(n.Types, t)
		}
	}
	n.Limit, n.Offset = page(q.Limit, q.Offset)
	return n
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	q = q.Normalized()
	var args []any
	var sb strings.Builder
	if q.Text != "" {
		sb.WriteString("SELECT d.doc_id, d.type, d.path, COALESCE(d.scene,''), COALESCE(d.speaker,''), COALESCE(d.tag,''), d.pos, COALESCE(d.text,'')\n")
		sb.WriteString("FROM fts_documents JOIN documents d ON fts_documents.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_documents MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT d.doc_id, d.type, d.path, COALESCE(d.scene,''), COALESCE(d.speaker,''), COALESCE(d.tag,''), d.pos, COALESCE(d.text,'')\n")
		sb.WriteString("FROM documents d\nWHERE 1=1\n")
	}
	if len(q.Types) > 0 {
		sb.WriteString(" AND d.type IN (" + placeholders(len(q.Types)) + ")\n")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	if q.Speaker != "" {
		sb.WriteString(" AND lower(d.speaker) = ?\n")
		args = append(args, q.Speaker)
	}
	if q.Scene != "" {
		sb.WriteString(" AND lower(d.scene) = ?\n")
		args = append(args, q.Scene)
	}
	if len(q.Tags) > 0 {
		sb.WriteString(" AND lower(d.tag) IN (" + placeholders(len(q.Tags)) + ")\n")
		for _, t := range q.Tags {
			args = append(args, t)
		}
	}
	sb.WriteString("ORDER BY d.pos, d.doc_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, q.Limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// WhereUsed returns the rows that reference the given referent name, such as
// the dialogue of a speaker or every wikilink to a concept.
func WhereUsed(ctx context.Context, projectRoot string, referent string, limit, offset int) ([]SearchResult, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	if strings.TrimSpace(referent) == "" {
		return []SearchResult{}, nil
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	limit, offset = page(limit, offset)
	q := `SELECT d.doc_id, d.type, d.path, COALESCE(d.scene,''), COALESCE(d.speaker,''), COALESCE(d.tag,''), d.pos, COALESCE(d.text,'')
		FROM cross_refs x
		JOIN documents d ON d.doc_id = x.from_id
		WHERE x.referent = ?
		ORDER BY d.pos, d.doc_id
		LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, q, referent, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("where-used query: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.DocID, &r.Type, &r.Path, &r.Scene, &r.Speaker, &r.Tag, &r.Pos, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func normalizeTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "@"))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
