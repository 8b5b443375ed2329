/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log configures the process-wide slog logger for novelscript.
//
// Console records go through slog's text handler with short level tags; an
// optional JSON file sink rotates through lumberjack. Both sinks add the
// project root and script file carried by a context from WithProject, so
// callers that hold a context should log with the *Context methods.
package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gonovelscript/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization. FromEnv reads them from
// NVS_LOG_LEVEL, NVS_LOG_FORMAT, NVS_LOG_FILE and NVS_LOG_SOURCE.
type Options struct {
	Level     string // debug, info, warn or error
	Format    string // console or json
	AddSource bool
	// File enables a rotated JSON log next to the console output.
	File string
	// Writer replaces stderr for console output; tests use it.
	Writer io.Writer
}

var (
	mu      sync.RWMutex
	current *slog.Logger
)

// L returns the application logger, initializing it from the environment
// on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l == nil {
		l = Init(FromEnv())
	}
	return l
}

// Init replaces the application logger and slog.Default.
func Init(opts Options) *slog.Logger {
	ho := &slog.HandlerOptions{Level: parseLevel(opts.Level), AddSource: opts.AddSource}
	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}

	var sinks fanout
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		sinks = append(sinks, slog.NewJSONHandler(out, ho))
	} else {
		console := *ho
		console.ReplaceAttr = consoleAttr
		sinks = append(sinks, slog.NewTextHandler(out, &console))
	}
	if f := strings.TrimSpace(opts.File); f != "" {
		w := &lj.Logger{Filename: f, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		sinks = append(sinks, slog.NewJSONHandler(w, ho))
	}

	var h slog.Handler = sinks
	if len(sinks) == 1 {
		h = sinks[0]
	}
	l := slog.New(projectHandler{h}).With(
		slog.String("app", "novelscript"),
		slog.String("ver", version.Version),
	)

	mu.Lock()
	current = l
	mu.Unlock()
	slog.SetDefault(l)
	return l
}

// FromEnv builds Options from NVS_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("NVS_LOG_LEVEL", "info"),
		Format:    getenv("NVS_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("NVS_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("NVS_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

type projectKey struct{}

type project struct{ root, script string }

// WithProject returns a context whose log records carry the project root
// and script file. Either may be empty.
func WithProject(ctx context.Context, root, script string) context.Context {
	return context.WithValue(ctx, projectKey{}, project{root: root, script: script})
}

// Project returns the values stored by WithProject.
func Project(ctx context.Context) (root, script string, ok bool) {
	if ctx == nil {
		return "", "", false
	}
	p, ok := ctx.Value(projectKey{}).(project)
	return p.root, p.script, ok
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

var levelTags = map[slog.Level]string{
	slog.LevelDebug: "DBG",
	slog.LevelInfo:  "INF",
	slog.LevelWarn:  "WRN",
	slog.LevelError: "ERR",
}

// consoleAttr shortens the top-level time and level of console records.
func consoleAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		if t, ok := a.Value.Any().(time.Time); ok {
			return slog.String(slog.TimeKey, t.Format("15:04:05.000"))
		}
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			if tag, ok := levelTags[lvl]; ok {
				return slog.String(slog.LevelKey, tag)
			}
		}
	}
	return a
}

// projectHandler adds the WithProject values to each record.
type projectHandler struct{ next slog.Handler }

func (h projectHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h projectHandler) Handle(ctx context.Context, r slog.Record) error {
	if root, script, ok := Project(ctx); ok {
		if root != "" {
			r.AddAttrs(slog.String("project", root))
		}
		if script != "" {
			r.AddAttrs(slog.String("script", script))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h projectHandler) WithAttrs(as []slog.Attr) slog.Handler {
	return projectHandler{h.next.WithAttrs(as)}
}

func (h projectHandler) WithGroup(name string) slog.Handler {
	return projectHandler{h.next.WithGroup(name)}
}

// fanout sends each record to every sink that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(as []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(as)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
