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
	"fmt"
	"strings"

	"gonovelscript/internal/storage"
)

const selectColumns = "SELECT d.id, d.doc_type, d.path, COALESCE(d.scene,''), COALESCE(d.speaker,''), COALESCE(d.tag,''), d.pos, COALESCE(d.raw_text,'') "

// SearchPG executes a search over the Postgres documents table using tsvector and filters
// and returns results mapped to storage.SearchResult to ease parity checks.
func SearchPG(ctx context.Context, db *sql.DB, projectID int64, q storage.SearchQuery) ([]storage.SearchResult, error) {
	q = q.Normalized()
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	b.WriteString(selectColumns)
	b.WriteString("FROM documents d WHERE d.project_id = " + place(projectID) + " ")
	if q.Text != "" {
		b.WriteString(" AND d.search_vector @@ plainto_tsquery('simple', " + place(q.Text) + ") ")
	}
	if len(q.Types) > 0 {
		b.WriteString(" AND d.doc_type = ANY (" + place(q.Types) + ") ")
	}
	if q.Speaker != "" {
		b.WriteString(" AND lower(d.speaker) = " + place(q.Speaker) + " ")
	}
	if q.Scene != "" {
		b.WriteString(" AND lower(d.scene) = " + place(q.Scene) + " ")
	}
	if len(q.Tags) > 0 {
		b.WriteString(" AND lower(d.tag) = ANY (" + place(q.Tags) + ") ")
	}
	b.WriteString(" ORDER BY d.pos, d.id ")
	b.WriteString(" LIMIT " + place(q.Limit) + " OFFSET " + place(q.Offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scan(rows)
}

// WhereUsedPG mirrors storage.WhereUsed over doc_refs.
func WhereUsedPG(ctx context.Context, db *sql.DB, projectID int64, referent string, limit, offset int) ([]storage.SearchResult, error) {
	if strings.TrimSpace(referent) == "" {
		return []storage.SearchResult{}, nil
	}
	page := storage.SearchQuery{Limit: limit, Offset: offset}.Normalized()
	rows, err := db.QueryContext(ctx, selectColumns+
		`FROM doc_refs x JOIN documents d ON d.id = x.document_id
		WHERE d.project_id = $1 AND x.referent = $2
		ORDER BY d.pos, d.id LIMIT $3 OFFSET $4`,
		projectID, referent, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("where-used pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scan(rows)
}

func scan(rows *sql.Rows) ([]storage.SearchResult, error) {
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.DocID, &r.Type, &r.Path, &r.Scene, &r.Speaker, &r.Tag, &r.Pos, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
