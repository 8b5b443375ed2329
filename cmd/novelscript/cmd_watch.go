/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	applog "gonovelscript/internal/log"
	"gonovelscript/internal/query"
	"gonovelscript/internal/render"
	"gonovelscript/internal/schedule"
	"gonovelscript/internal/script"
	"gonovelscript/internal/storage"
)

var (
	watchQuery string
	watchIndex bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reparse the script whenever it changes on disk",
	Long: `Watches the script file and reparses it after edits settle. Each new
document is summarised; with --query the expression is re-evaluated and with
--index the project search index is updated.`,
	Args: cobra.NoArgs,
	RunE: guard(runWatch),
}

func init() {
	watchCmd.Flags().StringVar(&watchQuery, "query", "", "Expression to evaluate after every reparse")
	watchCmd.Flags().BoolVar(&watchIndex, "index", false, "Update the search index after every reparse")
	rootCmd.AddCommand(watchCmd)
}

// textRecorder remembers the last text handed to the scheduler.
type textRecorder struct {
	last atomic.Pointer[string]
	next schedule.Editor
}

func (r *textRecorder) Edit(text string) {
	r.last.Store(&text)
	r.next.Edit(text)
}

func (r *textRecorder) Text() string {
	if p := r.last.Load(); p != nil {
		return *p
	}
	return ""
}

// swapReporter prints one summary per published document.
type swapReporter struct {
	mu   sync.Mutex
	out  io.Writer
	ev   *query.Evaluator
	expr string
	ctx  context.Context
	root string
	log  *slog.Logger
}

func (s *swapReporter) report(doc *script.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.out, "parsed: %d scenes, %d speakers, %d orphans\n", len(doc.Scenes), len(doc.Speakers()), len(doc.Orphans))
	if s.ev != nil {
		v, err := s.ev.Evaluate(s.ctx, doc, s.expr)
		if err != nil {
			_, _ = fmt.Fprintf(s.out, "query: %v\n", err)
		} else {
			_, _ = fmt.Fprintln(s.out, render.Render(v).String())
		}
	}
	if s.root != "" {
		if err := storage.UpdateIndex(s.ctx, s.root, doc); err != nil {
			s.log.Error("index update failed", slog.Any("err", err))
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	path, text, err := loadSource()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watch(ctx, cmd.OutOrStdout(), path, text)
}

// watch runs until ctx is done.
func watch(ctx context.Context, out io.Writer, path, text string) error {
	l := applog.WithOperation(applog.WithComponent("cli"), "watch")
	rep := &swapReporter{out: out, ctx: ctx, log: l}
	if watchQuery != "" {
		rep.ev = newEvaluator(cfg)
		if err := rep.ev.Check(watchQuery); err != nil {
			return err
		}
		rep.expr = watchQuery
	}
	if watchIndex {
		if session.ph == nil {
			return errors.New("--index needs a project, not --file")
		}
		rep.root = session.ph.Root
	}

	sched := schedule.New(schedule.Options{Debounce: cfg.General.Debounce(), OnSwap: rep.report})
	rec := &textRecorder{next: sched}
	rec.last.Store(&text)
	session.live = rec.Text
	defer func() { session.live = nil }()

	sched.Load(text)
	sched.Start(ctx)
	defer sched.Stop()

	w, err := schedule.NewWatcher(path, rec)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()
	l.Info("watching", slog.String("path", w.Path()))

	<-ctx.Done()
	return nil
}
