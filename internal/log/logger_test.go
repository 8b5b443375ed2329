/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func lastJSON(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var last string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines in %q", b)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", last, err)
	}
	return m
}

func TestFileSinkCarriesProject(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "nvs.log")
	var console bytes.Buffer
	Init(Options{Level: "debug", Format: "json", File: fpath, Writer: &console})

	ctx := WithProject(context.Background(), "/tmp/lighthouse", "script/script.txt")
	WithOperation(WithComponent("storage"), "index").InfoContext(ctx, "index updated", slog.Int("rows", 4))

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for name, m := range map[string]map[string]any{"file": lastJSON(t, b), "console": lastJSON(t, console.Bytes())} {
		if m["app"] != "novelscript" || m["component"] != "storage" || m["op"] != "index" {
			t.Fatalf("%s: static attrs missing: %v", name, m)
		}
		if m["project"] != "/tmp/lighthouse" || m["script"] != "script/script.txt" {
			t.Fatalf("%s: project attrs missing: %v", name, m)
		}
		if m["msg"] != "index updated" || m["rows"] != float64(4) {
			t.Fatalf("%s: record mismatch: %v", name, m)
		}
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", Writer: &buf})
	l := WithComponent("parser")
	l.Info("dropped")
	l.WithGroup("grp").Error("boom", slog.Int("n", 42), slog.Float64("pi", 3.14))

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record passed a warn logger: %q", out)
	}
	for _, want := range []string{"level=ERR", "msg=boom", "component=parser", "grp.n=42", "grp.pi=3.14", "app=novelscript"} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output %q missing %q", out, want)
		}
	}
}

func TestRecordsWithoutProjectContext(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Format: "json", Writer: &buf})
	L().InfoContext(WithProject(context.Background(), "", "loose.txt"), "parsed")
	m := lastJSON(t, buf.Bytes())
	if _, ok := m["project"]; ok {
		t.Fatalf("empty root should be omitted: %v", m)
	}
	if m["script"] != "loose.txt" {
		t.Fatalf("script attr missing: %v", m)
	}

	buf.Reset()
	L().Info("plain")
	if m := lastJSON(t, buf.Bytes()); m["script"] != nil {
		t.Fatalf("record without context gained project attrs: %v", m)
	}
	if _, _, ok := Project(context.Background()); ok {
		t.Fatalf("Project reported values for a bare context")
	}
}

func TestFanoutSkipsDisabledSinks(t *testing.T) {
	var quiet, loud bytes.Buffer
	f := fanout{
		slog.NewTextHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewTextHandler(&loud, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	l := slog.New(f).With(slog.String("k", "v"))
	l.Debug("detail")
	if quiet.Len() != 0 {
		t.Fatalf("warn sink got a debug record: %q", quiet.String())
	}
	if !strings.Contains(loud.String(), "k=v") {
		t.Fatalf("debug sink missing record: %q", loud.String())
	}
	if f.Enabled(context.Background(), slog.LevelDebug-4) {
		t.Fatalf("no sink accepts that level")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("NVS_LOG_LEVEL", "warn")
	t.Setenv("NVS_LOG_FORMAT", "json")
	t.Setenv("NVS_LOG_SOURCE", "true")
	t.Setenv("NVS_LOG_FILE", "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if v := getenv("NVS_TEST_UNSET_VAR", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
	if parseLevel(" Warning ") != slog.LevelWarn || parseLevel("loud") != slog.LevelInfo {
		t.Fatalf("parseLevel mismatch")
	}
}
