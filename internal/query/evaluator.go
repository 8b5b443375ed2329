/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package query evaluates read-only expressions against a parsed document.
//
// Expressions use the expr language (github.com/expr-lang/expr): no
// assignments, no loops beyond the collection built-ins, and only the
// bindings enumerated in Env plus the helpers items, is, compare, text and
// meta. Every compile error, runtime error, panic or timeout is returned as a
// *Fault and never escapes to the caller.
//
// The kind test takes the value explicitly: the predicate is(Kind) over the
// current element is written is(Kind, #) inside filter, all, any or count,
// and is(Kind, x) anywhere else. Kind names such as Speaker or DialogueLine
// are bound as string constants.
//
// A timeout ends Evaluate but not the evaluation: expr programs cannot be
// interrupted, so the goroutine running one keeps going until it finishes
// and its result is dropped. Callers bound that work through the document
// size, not through the context.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"golang.org/x/sync/singleflight"

	applog "gonovelscript/internal/log"
	"gonovelscript/internal/script"
)

// Stage names where evaluation failed.
type Stage string

const (
	StageCompile Stage = "compile"
	StageRun     Stage = "run"
	StageTimeout Stage = "timeout"
)

// Fault is the diagnostic returned for a failed evaluation. Message is meant
// to be shown to the user verbatim.
type Fault struct {
	Stage      Stage
	Expression string
	Message    string
}

func (f *Fault) Error() string { return fmt.Sprintf("%s error: %s", f.Stage, f.Message) }

// AsFault extracts a *Fault from err.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	ok := errors.As(err, &f)
	return f, ok
}

// Options tunes an Evaluator. Zero values select the defaults.
type Options struct {
	// CacheSize bounds the number of compiled programs kept.
	CacheSize int
	// Timeout bounds a single evaluation.
	Timeout time.Duration
	// MaxNodes bounds the size of a compiled expression.
	MaxNodes uint
}

const (
	defaultCacheSize = 64
	defaultTimeout   = 2 * time.Second
	defaultMaxNodes  = 2000
)

// Evaluator compiles and runs query expressions. It is safe for concurrent
// use; compiled programs are cached by source text.
type Evaluator struct {
	opts  Options
	cache *programCache
	group singleflight.Group
	log   *slog.Logger
}

// New returns an Evaluator with opts applied over the defaults.
func New(opts Options) *Evaluator {
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxNodes == 0 {
		opts.MaxNodes = defaultMaxNodes
	}
	return &Evaluator{opts: opts, cache: newProgramCache(opts.CacheSize), log: applog.WithComponent("query")}
}

// Evaluate runs expression against doc and returns its value. A nil doc is
// treated as an empty document. The returned error is always a *Fault.
func (e *Evaluator) Evaluate(ctx context.Context, doc *script.Document, expression string) (any, error) {
	src := strings.TrimSpace(expression)
	if src == "" {
		return nil, &Fault{Stage: StageCompile, Expression: expression, Message: "empty expression"}
	}
	prg, err := e.compile(src)
	if err != nil {
		e.log.DebugContext(ctx, "compile failed", slog.String("expr", src), slog.String("err", err.Error()))
		return nil, &Fault{Stage: StageCompile, Expression: src, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	env := newEnv(doc)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := expr.Run(prg, env)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			e.log.DebugContext(ctx, "evaluation failed", slog.String("expr", src), slog.String("err", r.err.Error()))
			return nil, &Fault{Stage: StageRun, Expression: src, Message: r.err.Error()}
		}
		return r.v, nil
	case <-ctx.Done():
		e.log.WarnContext(ctx, "evaluation abandoned", slog.String("expr", src), slog.String("err", ctx.Err().Error()))
		return nil, &Fault{Stage: StageTimeout, Expression: src, Message: ctx.Err().Error()}
	}
}

// Check compiles expression without running it.
func (e *Evaluator) Check(expression string) error {
	src := strings.TrimSpace(expression)
	if src == "" {
		return &Fault{Stage: StageCompile, Expression: expression, Message: "empty expression"}
	}
	if _, err := e.compile(src); err != nil {
		return &Fault{Stage: StageCompile, Expression: src, Message: err.Error()}
	}
	return nil
}

func (e *Evaluator) compile(src string) (*vm.Program, error) {
	if p, ok := e.cache.get(src); ok {
		return p, nil
	}
	v, err, _ := e.group.Do(src, func() (out any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		p, err := expr.Compile(src, e.exprOpts()...)
		if err != nil {
			return nil, err
		}
		e.cache.put(src, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*vm.Program), nil
}

func (e *Evaluator) exprOpts() []expr.Option {
	return []expr.Option{
		expr.Env(Env{}),
		expr.MaxNodes(e.opts.MaxNodes),
		expr.Function("items", func(params ...any) (any, error) {
			switch sc := params[0].(type) {
			case script.Scene:
				return itemsAny(sc.Items), nil
			case *script.Scene:
				if sc == nil {
					return []any{}, nil
				}
				return itemsAny(sc.Items), nil
			case nil:
				return []any{}, nil
			}
			return nil, fmt.Errorf("items: expected a scene, got %T", params[0])
		},
			new(func(any) []any)),
		expr.Function("is", func(params ...any) (any, error) {
			kind, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("is: kind must be a string, got %T", params[0])
			}
			return kindOf(params[1]) == kind, nil
		},
			new(func(string, any) bool)),
		expr.Function("compare", func(params ...any) (any, error) {
			return strings.Compare(textOf(params[0]), textOf(params[1])), nil
		},
			new(func(any, any) int)),
		expr.Function("text", func(params ...any) (any, error) {
			return textOf(params[0]), nil
		},
			new(func(any) string)),
		expr.Function("meta", func(params ...any) (any, error) {
			key, _ := params[1].(string)
			switch v := params[0].(type) {
			case script.Scene:
				return v.Metadata.Value(key), nil
			case *script.Scene:
				if v != nil {
					return v.Metadata.Value(key), nil
				}
			case DocView:
				return v.Metadata[key], nil
			}
			return "", nil
		},
			new(func(any, string) string)),
	}
}
