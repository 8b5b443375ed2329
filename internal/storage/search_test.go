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
	"strings"
	"testing"
	"time"

	"gonovelscript/internal/script"
)

func seedIndex(t testing.TB, root string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := UpdateIndex(ctx, root, script.Parse(indexScript)); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
}

func paths(res []SearchResult) []string {
	out := make([]string, 0, len(res))
	for _, r := range res {
		out = append(out, r.Path)
	}
	return out
}

func TestSearchFilters(t *testing.T) {
	root := t.TempDir()
	seedIndex(t, root)
	ctx := testCtx(t)

	tests := []struct {
		name string
		q    SearchQuery
		want []string
	}{
		{"fts term", SearchQuery{Text: "storm"}, []string{"scene:1/item:7"}},
		{"speaker", SearchQuery{Speaker: "KEEPER"}, []string{"scene:1/item:4", "scene:1/item:5"}},
		{"speaker continued", SearchQuery{Speaker: "mara"}, []string{"scene:1/item:7", "scene:1/item:9"}},
		{"tag", SearchQuery{Tags: []string{"@bgm"}}, []string{"scene:1/item:2"}},
		{"tags any", SearchQuery{Tags: []string{"BGM", "SFX", " "}}, []string{"scene:1/item:2", "scene:2/item:1"}},
		{"scene", SearchQuery{Scene: "the lamp"}, []string{"scene:2", "scene:2/item:1", "scene:2/item:2"}},
		{"types", SearchQuery{Types: []string{"Prompt"}}, []string{"scene:1/item:10"}},
		{"fts with type", SearchQuery{Text: "grey OR light", Types: []string{TypeMetadata}}, []string{"scene:1/meta:Mood"}},
		{"paging", SearchQuery{Types: []string{TypeDialogue}, Limit: 2, Offset: 1}, []string{"scene:1/item:5", "scene:1/item:7"}},
		{"no match", SearchQuery{Text: "zebra"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Search(ctx, root, tt.q)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			got := paths(res)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchResultFields(t *testing.T) {
	root := t.TempDir()
	seedIndex(t, root)
	res, err := Search(testCtx(t), root, SearchQuery{Text: "storm"})
	if err != nil || len(res) != 1 {
		t.Fatalf("Search: %v %+v", err, res)
	}
	r := res[0]
	if r.Type != TypeDialogue || r.Speaker != "Mara" || r.Scene != "Arrival" || r.Pos == 0 {
		t.Fatalf("unexpected result %+v", r)
	}
	if !strings.Contains(r.Snippet, "storm") {
		t.Fatalf("snippet should contain the term, got %q", r.Snippet)
	}
}

func TestSearchRequiresRoot(t *testing.T) {
	if _, err := Search(context.Background(), "", SearchQuery{}); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestWhereUsed(t *testing.T) {
	root := t.TempDir()
	seedIndex(t, root)
	ctx := testCtx(t)

	res, err := WhereUsed(ctx, root, "Keeper", 0, 0)
	if err != nil {
		t.Fatalf("WhereUsed: %v", err)
	}
	if got := strings.Join(paths(res), ","); got != "scene:1/item:4,scene:1/item:5" {
		t.Fatalf("Keeper used at %s", got)
	}
	res, err = WhereUsed(ctx, root, "lens", 10, 0)
	if err != nil || len(res) != 1 || res[0].Type != TypeAction {
		t.Fatalf("lens where-used: %v %+v", err, res)
	}
	res, err = WhereUsed(ctx, root, "  ", 10, 0)
	if err != nil || len(res) != 0 {
		t.Fatalf("blank referent: %v %+v", err, res)
	}
}

func TestNormalized(t *testing.T) {
	n := SearchQuery{Speaker: " Mara ", Tags: []string{"@BGM", ""}, Types: []string{" Cue "}, Offset: -3}.Normalized()
	if n.Speaker != "mara" || len(n.Tags) != 1 || n.Tags[0] != "bgm" || n.Types[0] != "cue" {
		t.Fatalf("unexpected normalization %+v", n)
	}
	if n.Limit != DefaultSearchLimit || n.Offset != 0 {
		t.Fatalf("paging defaults not applied: %+v", n)
	}
}

func BenchmarkSearchFTS(b *testing.B) {
	root := b.TempDir()
	seedIndex(b, root)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Search(ctx, root, SearchQuery{Text: "storm"}); err != nil {
			b.Fatalf("Search: %v", err)
		}
	}
}

func BenchmarkRebuildIndex(b *testing.B) {
	root := b.TempDir()
	doc := script.Parse(indexScript)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = RebuildIndex(ctx, root, doc)
		cancel()
	}
}
