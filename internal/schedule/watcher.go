/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package schedule

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	applog "gonovelscript/internal/log"
)

// Editor receives the content of the watched file on every change.
type Editor interface {
	Edit(text string)
}

// Watcher feeds a script file into an Editor whenever it changes on disk.
// The parent directory is watched so that editors which save by renaming a
// temporary file are still observed.
type Watcher struct {
	mu      sync.Mutex
	path    string
	editor  Editor
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	log     *slog.Logger
}

// NewWatcher prepares a watcher for path. Call Start to begin watching.
func NewWatcher(path string, ed Editor) (*Watcher, error) {
	if ed == nil {
		return nil, errors.New("schedule: nil editor")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:   filepath.Clean(abs),
		editor: ed,
		log:    applog.WithComponent("watcher").With(slog.String("path", abs)),
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Start begins watching. It returns once the watch is registered.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	go w.run(ctx)
	w.log.InfoContext(ctx, "watching script file")
	return nil
}

// Stop ends watching and releases the inotify handle.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done, fw := w.doneCh, w.watcher
	w.mu.Unlock()
	<-done
	_ = fw.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WarnContext(ctx, "watch error", slog.Any("err", err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	b, err := os.ReadFile(w.path)
	if err != nil {
		// The file may be mid-rename; the following Create delivers it.
		w.log.DebugContext(ctx, "read after change failed", slog.Any("err", err))
		return
	}
	w.editor.Edit(string(b))
}
