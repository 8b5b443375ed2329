/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package schedule coalesces edits into debounced reparses and publishes the
// resulting document through an atomic pointer. At most one reparse request
// is pending at any time: a new edit replaces it and restarts the debounce.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	applog "gonovelscript/internal/log"
	"gonovelscript/internal/script"
)

// ErrNotRunning is returned by Flush when the scheduler loop has stopped.
var ErrNotRunning = errors.New("schedule: scheduler not running")

// Options configures a Scheduler.
type Options struct {
	// Debounce is the settle interval after the last edit.
	Debounce time.Duration
	// OnSwap is called on the loop goroutine after each new document is
	// published.
	OnSwap func(*script.Document)
	// Parse replaces script.Parse; tests use it to count parses.
	Parse func(string) *script.Document
}

// Scheduler owns the current document. Readers call Current at any time and
// always see a complete document.
type Scheduler struct {
	opts    Options
	current atomic.Pointer[script.Document]
	parses  atomic.Uint64

	mu      sync.Mutex
	pending *string
	running bool
	started bool

	kick     chan struct{}
	flushReq chan chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	log      *slog.Logger
}

// New returns a stopped scheduler.
func New(opts Options) *Scheduler {
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.Parse == nil {
		opts.Parse = script.Parse
	}
	return &Scheduler{
		opts:     opts,
		kick:     make(chan struct{}, 1),
		flushReq: make(chan chan struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      applog.WithComponent("schedule"),
	}
}

// Start runs the scheduler loop until ctx is cancelled or Stop is called.
// It does not block. A scheduler runs at most once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.running = true
	s.mu.Unlock()
	go s.run(ctx)
}

// Stop ends the loop and waits for it. A pending edit is dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	close(s.stopCh)
	<-s.doneCh
}

// Load parses text right away and publishes the result. It is used for the
// initial file load.
func (s *Scheduler) Load(text string) *script.Document {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	return s.publish(text)
}

// Edit records text as the pending reparse request, replacing any earlier
// one, and restarts the debounce interval.
func (s *Scheduler) Edit(text string) {
	s.mu.Lock()
	s.pending = &text
	s.mu.Unlock()
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Pending reports whether an edit is waiting for its reparse.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Flush runs the pending reparse now and waits for it to be published.
// A scheduler that was never started settles on the calling goroutine.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		s.settle()
		return nil
	}
	done := make(chan struct{})
	select {
	case s.flushReq <- done:
	case <-s.doneCh:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the last published document, or nil before the first parse.
func (s *Scheduler) Current() *script.Document { return s.current.Load() }

// Parses returns the number of completed parses.
func (s *Scheduler) Parses() uint64 { return s.parses.Load() }

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	timer := time.NewTimer(s.opts.Debounce)
	timer.Stop()
	defer timer.Stop()
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-s.stopCh:
			return
		case <-s.kick:
			timer.Reset(s.opts.Debounce)
			settle = timer.C
		case <-settle:
			settle = nil
			s.settle()
		case done := <-s.flushReq:
			timer.Stop()
			settle = nil
			s.settle()
			close(done)
		}
	}
}

func (s *Scheduler) settle() {
	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()
	if p == nil {
		return
	}
	s.publish(*p)
}

func (s *Scheduler) publish(text string) *script.Document {
	start := time.Now()
	doc := s.opts.Parse(text)
	s.current.Store(doc)
	s.parses.Add(1)
	s.log.Debug("document swapped",
		slog.Int("scenes", len(doc.Scenes)),
		slog.Int("bytes", len(text)),
		slog.Duration("took", time.Since(start)))
	if s.opts.OnSwap != nil {
		s.opts.OnSwap(doc)
	}
	return doc
}
