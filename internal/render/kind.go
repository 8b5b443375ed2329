/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render turns arbitrary query results into text or a visual tree.
// Values are dispatched on an explicit Kind computed by Classify.
package render

import (
	"fmt"
	"reflect"
)

// Kind is the closed set of value shapes the renderer knows.
type Kind int

const (
	KindScalar Kind = iota
	KindRenderable
	KindSequence
	KindSet
	KindMapping
	KindCallable
)

var kindNames = [...]string{"scalar", "renderable", "sequence", "set", "mapping", "callable"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// TextRenderer is implemented by values that render as a single line.
type TextRenderer interface {
	RenderText() string
}

// NodeRenderer is implemented by values that render as a labeled group.
type NodeRenderer interface {
	RenderLabel() string
	RenderChildren() []any
}

var emptyStruct = reflect.TypeOf(struct{}{})

// Classify returns the Kind used to render v. Checks run in a fixed order:
// renderable, sequence, set, mapping, callable, scalar.
func Classify(v any) Kind {
	if isNilPointer(v) {
		return KindScalar
	}
	switch v.(type) {
	case nil:
		return KindScalar
	case NodeRenderer, TextRenderer:
		return KindRenderable
	case []byte, string, error, fmt.Stringer:
		return KindScalar
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return KindScalar
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return KindSequence
	case reflect.Map:
		if et := rv.Type().Elem(); et == emptyStruct || et.Kind() == reflect.Bool {
			return KindSet
		}
		return KindMapping
	case reflect.Struct:
		if rv.Type().NumField() > 0 {
			return KindMapping
		}
	case reflect.Func:
		return KindCallable
	}
	return KindScalar
}

// isNilPointer reports a typed nil pointer. Value-receiver methods reached
// through one panic, so such values render as null before any method is used.
func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
